package remember

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/elskow/backoffice/internal/database"
)

var ErrSessionNotFound = errors.New("remember session not found")

type Repository interface {
	Create(ctx context.Context, session *Session) error
	FindBySelector(ctx context.Context, selector string) (*Session, error)
	// RevokeIfActive reports whether this call was the one that revoked the
	// row. A row that was already revoked yields false.
	RevokeIfActive(ctx context.Context, id int64, now time.Time) (bool, error)
	RevokeBySelector(ctx context.Context, selector string, now time.Time) error
	RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error)
	// Purge deletes rows that expired or were revoked before the cutoff.
	Purge(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, session *Session) error {
	return database.Conn(ctx, r.db).Create(session).Error
}

func (r *repository) FindBySelector(ctx context.Context, selector string) (*Session, error) {
	var session Session
	if err := database.Conn(ctx, r.db).Where("selector = ?", selector).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *repository) RevokeIfActive(ctx context.Context, id int64, now time.Time) (bool, error) {
	res := database.Conn(ctx, r.db).Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", now)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) RevokeBySelector(ctx context.Context, selector string, now time.Time) error {
	return database.Conn(ctx, r.db).Model(&Session{}).
		Where("selector = ? AND revoked_at IS NULL", selector).
		Update("revoked_at", now).Error
}

func (r *repository) RevokeAllForUser(ctx context.Context, userID int64, now time.Time) (int64, error) {
	res := database.Conn(ctx, r.db).Model(&Session{}).
		Where("user_id = ? AND revoked_at IS NULL", userID).
		Update("revoked_at", now)
	return res.RowsAffected, res.Error
}

func (r *repository) Purge(ctx context.Context, before time.Time) (int64, error) {
	res := database.Conn(ctx, r.db).
		Where("expires_at < ? OR revoked_at < ?", before, before).
		Delete(&Session{})
	return res.RowsAffected, res.Error
}
