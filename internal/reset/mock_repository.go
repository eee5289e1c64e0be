package reset

import (
	"context"
	"sync"
	"time"
)

type MockRepository struct {
	mu     sync.Mutex
	nextID int64
	tokens map[int64]*Token
}

func NewMockRepository() *MockRepository {
	return &MockRepository{tokens: make(map[int64]*Token)}
}

func (r *MockRepository) DeleteUnused(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, t := range r.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			delete(r.tokens, id)
		}
	}
	return nil
}

func (r *MockRepository) Create(_ context.Context, token *Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	token.ID = r.nextID
	c := *token
	r.tokens[c.ID] = &c
	return nil
}

func (r *MockRepository) FindByHash(_ context.Context, hash string) (*Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, t := range r.tokens {
		if t.TokenHash == hash {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrTokenNotFound
}

func (r *MockRepository) MarkUsed(_ context.Context, id int64, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok || t.UsedAt != nil {
		return false, nil
	}
	used := now
	t.UsedAt = &used
	return true, nil
}

// Unused counts tokens of userID that can still be redeemed.
func (r *MockRepository) Unused(userID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, t := range r.tokens {
		if t.UserID == userID && t.UsedAt == nil {
			n++
		}
	}
	return n
}

func (r *MockRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, t := range r.tokens {
		if t.ExpiresAt.Before(before) || (t.UsedAt != nil && t.UsedAt.Before(before)) {
			delete(r.tokens, id)
			n++
		}
	}
	return n, nil
}
