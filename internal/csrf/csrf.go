// Package csrf binds one anti-forgery token to each interactive session.
package csrf

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/session"
)

const (
	FieldName  = "_csrf"
	HeaderName = "X-CSRF-Token"
	tokenBytes = 32
)

var ErrInvalidToken = apperr.New(apperr.Csrf, "csrf token missing or mismatched")

type Guard struct {
	random io.Reader
}

func NewGuard() *Guard {
	return &Guard{random: rand.Reader}
}

// Token returns the session's token, creating it on first use. The caller
// persists the session.
func (g *Guard) Token(s *session.Session) (string, error) {
	if s.Data.CSRF != "" {
		return s.Data.CSRF, nil
	}
	buf := make([]byte, tokenBytes)
	if _, err := io.ReadFull(g.random, buf); err != nil {
		return "", fmt.Errorf("failed to generate csrf token: %w", err)
	}
	s.Data.CSRF = hex.EncodeToString(buf)
	return s.Data.CSRF, nil
}

// Validate fails unless both tokens are present and equal.
func (g *Guard) Validate(s *session.Session, submitted string) error {
	if s == nil || s.Data.CSRF == "" || submitted == "" {
		return ErrInvalidToken
	}
	if subtle.ConstantTimeCompare([]byte(s.Data.CSRF), []byte(submitted)) != 1 {
		return ErrInvalidToken
	}
	return nil
}
