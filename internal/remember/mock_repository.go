package remember

import (
	"context"
	"sync"
	"time"
)

type MockRepository struct {
	mu       sync.Mutex
	nextID   int64
	sessions map[int64]*Session
}

func NewMockRepository() *MockRepository {
	return &MockRepository{sessions: make(map[int64]*Session)}
}

func (r *MockRepository) Create(_ context.Context, session *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	session.ID = r.nextID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	c := *session
	r.sessions[c.ID] = &c
	return nil
}

func (r *MockRepository) FindBySelector(_ context.Context, selector string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.Selector == selector {
			c := *s
			return &c, nil
		}
	}
	return nil, ErrSessionNotFound
}

func (r *MockRepository) RevokeIfActive(_ context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	t := now
	s.RevokedAt = &t
	return true, nil
}

func (r *MockRepository) RevokeBySelector(_ context.Context, selector string, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.sessions {
		if s.Selector == selector && s.RevokedAt == nil {
			t := now
			s.RevokedAt = &t
		}
	}
	return nil
}

func (r *MockRepository) RevokeAllForUser(_ context.Context, userID int64, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, s := range r.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			t := now
			s.RevokedAt = &t
			n++
		}
	}
	return n, nil
}

// Active counts unrevoked, unexpired rows of a user.
func (r *MockRepository) Active(userID int64, now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, s := range r.sessions {
		if s.UserID == userID && s.usableAt(now) {
			n++
		}
	}
	return n
}

func (r *MockRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, s := range r.sessions {
		if s.ExpiresAt.Before(before) || (s.RevokedAt != nil && s.RevokedAt.Before(before)) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}
