// Package remember implements long lived "remember me" tokens using a
// public selector and a secret validator. Each token restores a session
// once and is rotated on use.
package remember

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/database"
)

const (
	selectorBytes  = 12
	validatorBytes = 32
	maxUserAgent   = 255
)

var errRaceLost = errors.New("remember session consumed concurrently")

// Client describes the device presenting a token.
type Client struct {
	IP        string
	UserAgent string
}

// Issued is a freshly minted token. Value goes to the client verbatim.
type Issued struct {
	UserID    int64
	Value     string
	ExpiresAt time.Time
}

type Vault struct {
	repo       Repository
	users      credential.Repository
	tx         database.Transactor
	log        *zap.Logger
	cookieName string
	lifetime   time.Duration
	now        func() time.Time
	random     io.Reader
}

type Option func(*Vault)

func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

func WithRandom(r io.Reader) Option {
	return func(v *Vault) { v.random = r }
}

func NewVault(
	cfg *config.SecurityConfig,
	log *zap.Logger,
	repo Repository,
	users credential.Repository,
	tx database.Transactor,
	opts ...Option,
) *Vault {
	v := &Vault{
		repo:       repo,
		users:      users,
		tx:         tx,
		log:        log,
		cookieName: cfg.RememberCookieName,
		lifetime:   cfg.RememberLifetime,
		now:        time.Now,
		random:     rand.Reader,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

func (v *Vault) CookieName() string {
	return v.cookieName
}

// Issue stores a new token for userID and returns the cookie value.
func (v *Vault) Issue(ctx context.Context, userID int64, client Client) (*Issued, error) {
	selector, err := v.randomHex(selectorBytes)
	if err != nil {
		return nil, err
	}
	validator, err := v.randomHex(validatorBytes)
	if err != nil {
		return nil, err
	}

	now := v.now()
	session := &Session{
		UserID:        userID,
		Selector:      selector,
		ValidatorHash: hashValidator(validator),
		IP:            client.IP,
		UserAgent:     truncate(client.UserAgent, maxUserAgent),
		CreatedAt:     now,
		ExpiresAt:     now.Add(v.lifetime),
	}
	if err := v.repo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store remember session: %w", err)
	}

	return &Issued{
		UserID:    userID,
		Value:     selector + ":" + validator,
		ExpiresAt: session.ExpiresAt,
	}, nil
}

// Restore exchanges a cookie value for a rotated token. It returns false for
// every kind of rejection and never reports why to the caller.
func (v *Vault) Restore(ctx context.Context, value string, client Client) (*Issued, bool) {
	selector, validator, ok := parse(value)
	if !ok {
		return nil, false
	}

	session, err := v.repo.FindBySelector(ctx, selector)
	if err != nil {
		if !errors.Is(err, ErrSessionNotFound) {
			v.log.Error("failed to look up remember session", zap.Error(err))
		}
		return nil, false
	}

	now := v.now()
	if !session.usableAt(now) {
		return nil, false
	}

	if subtle.ConstantTimeCompare([]byte(hashValidator(validator)), []byte(session.ValidatorHash)) != 1 {
		// a known selector with the wrong validator means the cookie leaked
		v.log.Warn("remember validator mismatch, revoking session",
			zap.Int64("session_id", session.ID),
			zap.Int64("user_id", session.UserID),
			zap.String("ip", client.IP))
		v.burn(ctx, session.ID, now)
		return nil, false
	}

	user, err := v.users.GetByID(ctx, session.UserID)
	if err != nil || !user.Active() {
		if err != nil && !errors.Is(err, credential.ErrUserNotFound) {
			v.log.Error("failed to load remember session owner", zap.Error(err))
			return nil, false
		}
		v.burn(ctx, session.ID, now)
		return nil, false
	}

	var issued *Issued
	err = v.tx.WithinTx(ctx, func(ctx context.Context) error {
		won, err := v.repo.RevokeIfActive(ctx, session.ID, now)
		if err != nil {
			return err
		}
		if !won {
			return errRaceLost
		}
		issued, err = v.Issue(ctx, session.UserID, client)
		return err
	})
	if err != nil {
		if !errors.Is(err, errRaceLost) {
			v.log.Error("failed to rotate remember session", zap.Error(err))
		}
		return nil, false
	}

	return issued, true
}

// Revoke invalidates the token named by a presented cookie value. Unknown
// or malformed values are ignored.
func (v *Vault) Revoke(ctx context.Context, value string) error {
	selector, _, ok := parse(value)
	if !ok {
		return nil
	}
	if err := v.repo.RevokeBySelector(ctx, selector, v.now()); err != nil {
		return fmt.Errorf("failed to revoke remember session: %w", err)
	}
	return nil
}

// RevokeAll invalidates every token of userID.
func (v *Vault) RevokeAll(ctx context.Context, userID int64) error {
	n, err := v.repo.RevokeAllForUser(ctx, userID, v.now())
	if err != nil {
		return fmt.Errorf("failed to revoke remember sessions: %w", err)
	}
	v.log.Info("revoked remember sessions", zap.Int64("user_id", userID), zap.Int64("count", n))
	return nil
}

// Cookie builds the remember cookie for an issued token.
func (v *Vault) Cookie(issued *Issued, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     v.cookieName,
		Value:    issued.Value,
		Path:     "/",
		Expires:  issued.ExpiresAt,
		MaxAge:   int(issued.ExpiresAt.Sub(v.now()).Seconds()),
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the remember cookie on the client.
func (v *Vault) ClearCookie(secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     v.cookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (v *Vault) burn(ctx context.Context, id int64, now time.Time) {
	if _, err := v.repo.RevokeIfActive(ctx, id, now); err != nil {
		v.log.Error("failed to revoke remember session", zap.Int64("session_id", id), zap.Error(err))
	}
}

func (v *Vault) randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(v.random, buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func parse(value string) (selector, validator string, ok bool) {
	selector, validator, ok = strings.Cut(value, ":")
	if !ok || len(selector) != 2*selectorBytes || validator == "" {
		return "", "", false
	}
	return selector, validator, true
}

func hashValidator(validator string) string {
	sum := sha256.Sum256([]byte(validator))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return strings.ToValidUTF8(s[:n], "")
}
