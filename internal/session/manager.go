// Package session keeps the interactive (browser) session in Redis, keyed
// by a random id carried in a signed cookie.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Session struct {
	ID   string
	Data Data
	// New is true when no stored session matched the request.
	New bool
}

func (s *Session) Authenticated() bool {
	return s != nil && s.Data.UserID != 0
}

type Manager struct {
	store      Store
	codec      *CookieCodec
	log        *zap.Logger
	cookieName string
	now        func() time.Time
}

func NewManager(store Store, codec *CookieCodec, log *zap.Logger, cookieName string) *Manager {
	return &Manager{
		store:      store,
		codec:      codec,
		log:        log,
		cookieName: cookieName,
		now:        time.Now,
	}
}

func (m *Manager) CookieName() string {
	return m.cookieName
}

// Start returns the session named by the cookie value, or a fresh one.
func (m *Manager) Start(ctx context.Context, cookieValue string) *Session {
	if cookieValue != "" {
		id, err := m.codec.Decode(cookieValue)
		if err == nil {
			data, err := m.store.Load(ctx, id)
			if err == nil {
				return &Session{ID: id, Data: *data}
			}
			if !errors.Is(err, ErrSessionNotFound) {
				m.log.Error("failed to load interactive session", zap.Error(err))
			}
		}
	}
	return &Session{
		ID:   uuid.NewString(),
		Data: Data{CreatedAt: m.now()},
		New:  true,
	}
}

func (m *Manager) Save(ctx context.Context, s *Session) error {
	return m.store.Save(ctx, s.ID, &s.Data)
}

// Regenerate gives s a new id and drops the old record, keeping the data.
func (m *Manager) Regenerate(ctx context.Context, s *Session) error {
	oldID := s.ID
	if s.New {
		oldID = ""
	}
	newID := uuid.NewString()
	if err := m.store.Move(ctx, oldID, newID, &s.Data); err != nil {
		return err
	}
	s.ID = newID
	s.New = false
	return nil
}

// Destroy drops the stored record and resets s to an anonymous session.
func (m *Manager) Destroy(ctx context.Context, s *Session) error {
	if err := m.store.Destroy(ctx, s.ID); err != nil {
		return err
	}
	s.ID = uuid.NewString()
	s.Data = Data{CreatedAt: m.now()}
	s.New = true
	return nil
}

// Cookie is a browser session cookie (no expiry) carrying the signed id.
func (m *Manager) Cookie(s *Session, secure bool) (*http.Cookie, error) {
	value, err := m.codec.Encode(s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session cookie: %w", err)
	}
	return &http.Cookie{
		Name:     m.cookieName,
		Value:    value,
		Path:     "/",
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}, nil
}
