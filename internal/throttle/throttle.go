// Package throttle locks out an identifier+origin pair after repeated
// login failures.
package throttle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
)

type Throttle struct {
	repo        Repository
	log         *zap.Logger
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

type Option func(*Throttle)

func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

func New(cfg *config.SecurityConfig, log *zap.Logger, repo Repository, opts ...Option) *Throttle {
	t := &Throttle{
		repo:        repo,
		log:         log,
		maxAttempts: cfg.LoginMaxAttempts,
		window:      cfg.LoginLockWindow,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key joins the normalized identifier and the origin address.
func Key(identifier, origin string) string {
	return identifier + ":" + origin
}

func (t *Throttle) IsLocked(ctx context.Context, key string) (bool, error) {
	rec, err := t.repo.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read login attempts: %w", err)
	}
	return rec.LockedAt(t.now()), nil
}

// RecordFailure reports whether this failure locked the key.
func (t *Throttle) RecordFailure(ctx context.Context, key string) (bool, error) {
	now := t.now()
	rec, err := t.repo.RecordFailure(ctx, key, now, t.maxAttempts, now.Add(t.window))
	if err != nil {
		return false, fmt.Errorf("failed to record login failure: %w", err)
	}

	locked := rec.LockedAt(now)
	if locked {
		t.log.Warn("login key locked",
			zap.String("key", key),
			zap.Int("attempts", rec.Attempts),
			zap.Time("lock_until", *rec.LockUntil))
	}
	return locked, nil
}

func (t *Throttle) Clear(ctx context.Context, key string) error {
	if err := t.repo.Clear(ctx, key); err != nil {
		return fmt.Errorf("failed to clear login attempts: %w", err)
	}
	return nil
}
