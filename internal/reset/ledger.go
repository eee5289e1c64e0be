// Package reset issues and redeems single use password reset tokens.
package reset

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
)

const (
	tokenBytes     = 32
	minTokenLength = 32
)

// The three token failures look the same from outside.
var (
	ErrTokenNotFound  = apperr.New(apperr.TokenInvalid, "reset token not found")
	ErrTokenUsed      = apperr.New(apperr.TokenInvalid, "reset token already used")
	ErrTokenExpired   = apperr.New(apperr.TokenInvalid, "reset token expired")
	ErrTokenMalformed = apperr.New(apperr.TokenInvalid, "reset token malformed")
)

// SessionRevoker drops every long lived session of a user.
type SessionRevoker interface {
	RevokeAll(ctx context.Context, userID int64) error
}

type Ledger struct {
	repo      Repository
	users     credential.Repository
	hasher    credential.Hasher
	sessions  SessionRevoker
	tx        database.Transactor
	log       *zap.Logger
	lifetime  time.Duration
	minLength int
	now       func() time.Time
	random    io.Reader
}

type Option func(*Ledger)

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func NewLedger(
	cfg *config.SecurityConfig,
	log *zap.Logger,
	repo Repository,
	users credential.Repository,
	hasher credential.Hasher,
	sessions SessionRevoker,
	tx database.Transactor,
	opts ...Option,
) *Ledger {
	l := &Ledger{
		repo:      repo,
		users:     users,
		hasher:    hasher,
		sessions:  sessions,
		tx:        tx,
		log:       log,
		lifetime:  cfg.ResetTokenLifetime,
		minLength: cfg.PasswordMinLength,
		now:       time.Now,
		random:    rand.Reader,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Create issues a token for the active user owning email. It returns a nil
// Request and no error when there is no such user; the caller must respond
// identically in both cases.
func (l *Ledger) Create(ctx context.Context, email string) (*Request, error) {
	email = credential.NormalizeEmail(email)

	raw, err := l.newToken()
	if err != nil {
		return nil, err
	}
	hash := hashToken(raw)

	user, err := l.users.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, credential.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up reset target: %w", err)
	}
	if !user.Active() {
		return nil, nil
	}

	now := l.now()
	token := &Token{
		UserID:    user.ID,
		TokenHash: hash,
		CreatedAt: now,
		ExpiresAt: now.Add(l.lifetime),
	}
	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := l.repo.DeleteUnused(ctx, user.ID); err != nil {
			return err
		}
		return l.repo.Create(ctx, token)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}

	l.log.Info("password reset token issued", zap.Int64("user_id", user.ID))
	return &Request{
		UserID:    user.ID,
		Email:     user.Email,
		Token:     raw,
		ExpiresAt: token.ExpiresAt,
	}, nil
}

// Redeem sets a new password using raw, consumes the token and revokes all
// remember sessions of its owner. It returns the owner's id.
func (l *Ledger) Redeem(ctx context.Context, raw, newPassword string) (int64, error) {
	if len(raw) < minTokenLength {
		return 0, ErrTokenMalformed
	}
	if err := credential.ValidatePassword(newPassword, l.minLength); err != nil {
		return 0, err
	}

	token, err := l.repo.FindByHash(ctx, hashToken(raw))
	if err != nil {
		return 0, err
	}
	now := l.now()
	if token.UsedAt != nil {
		return 0, ErrTokenUsed
	}
	if !now.Before(token.ExpiresAt) {
		return 0, ErrTokenExpired
	}

	user, err := l.users.GetByID(ctx, token.UserID)
	if err != nil {
		if errors.Is(err, credential.ErrUserNotFound) {
			return 0, ErrTokenNotFound
		}
		return 0, err
	}
	if !user.Active() {
		return 0, ErrTokenNotFound
	}

	passHash, err := l.hasher.Hash(newPassword)
	if err != nil {
		return 0, err
	}

	err = l.tx.WithinTx(ctx, func(ctx context.Context) error {
		won, err := l.repo.MarkUsed(ctx, token.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return ErrTokenUsed
		}
		if err := l.users.SetPasswordHash(ctx, token.UserID, passHash); err != nil {
			return err
		}
		return l.sessions.RevokeAll(ctx, token.UserID)
	})
	if err != nil {
		return 0, err
	}

	l.log.Info("password reset redeemed", zap.Int64("user_id", token.UserID))
	return token.UserID, nil
}

func (l *Ledger) newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(l.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
