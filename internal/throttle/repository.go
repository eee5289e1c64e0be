package throttle

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/database"
)

type Repository interface {
	// Get returns nil and no error when the key has no record.
	Get(ctx context.Context, key string) (*LoginAttempt, error)
	// RecordFailure increments the counter for key in one statement and sets
	// lockUntil once the incremented count reaches maxAttempts.
	RecordFailure(ctx context.Context, key string, now time.Time, maxAttempts int, lockUntil time.Time) (*LoginAttempt, error)
	Clear(ctx context.Context, key string) error
	// Purge deletes records with no attempt and no lock after the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

const upsertFailure = `INSERT INTO login_attempts (key_str, attempts, last_try_at, lock_until)
VALUES (?, 1, ?, ?)
ON CONFLICT (key_str) DO UPDATE SET
	attempts = login_attempts.attempts + 1,
	last_try_at = EXCLUDED.last_try_at,
	lock_until = CASE WHEN login_attempts.attempts + 1 >= ? THEN ? ELSE login_attempts.lock_until END
RETURNING key_str, attempts, last_try_at, lock_until`

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Get(ctx context.Context, key string) (*LoginAttempt, error) {
	var rec LoginAttempt
	err := database.Conn(ctx, r.db).Where("key_str = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) RecordFailure(ctx context.Context, key string, now time.Time, maxAttempts int, lockUntil time.Time) (*LoginAttempt, error) {
	var initialLock *time.Time
	if maxAttempts <= 1 {
		initialLock = &lockUntil
	}

	var rec LoginAttempt
	err := database.Conn(ctx, r.db).
		Raw(upsertFailure, key, now, initialLock, maxAttempts, lockUntil).
		Scan(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *repository) Clear(ctx context.Context, key string) error {
	return database.Conn(ctx, r.db).Where("key_str = ?", key).Delete(&LoginAttempt{}).Error
}

func (r *repository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := database.Conn(ctx, r.db).
		Where("last_try_at < ? AND (lock_until IS NULL OR lock_until < ?)", before, before).
		Delete(&LoginAttempt{})
	return res.RowsAffected, res.Error
}
