package throttle

import (
	"context"
	"sync"
	"time"
)

type MockRepository struct {
	mu      sync.Mutex
	records map[string]*LoginAttempt
}

func NewMockRepository() *MockRepository {
	return &MockRepository{records: make(map[string]*LoginAttempt)}
}

func (r *MockRepository) Get(_ context.Context, key string) (*LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		return nil, nil
	}
	c := *rec
	return &c, nil
}

func (r *MockRepository) RecordFailure(_ context.Context, key string, now time.Time, maxAttempts int, lockUntil time.Time) (*LoginAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[key]
	if !ok {
		rec = &LoginAttempt{Key: key}
		r.records[key] = rec
	}
	rec.Attempts++
	rec.LastTryAt = now
	if rec.Attempts >= maxAttempts {
		until := lockUntil
		rec.LockUntil = &until
	}
	c := *rec
	return &c, nil
}

func (r *MockRepository) Clear(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, key)
	return nil
}

func (r *MockRepository) Purge(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for key, rec := range r.records {
		if rec.LastTryAt.Before(before) && (rec.LockUntil == nil || rec.LockUntil.Before(before)) {
			delete(r.records, key)
			n++
		}
	}
	return n, nil
}
