package credential

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockRepository is an in-memory Repository for tests in this and other
// packages.
type MockRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]*User
	grants map[int64][]Grant
	roles  map[string]int
}

func NewMockRepository() *MockRepository {
	return &MockRepository{
		users:  make(map[int64]*User),
		grants: make(map[int64][]Grant),
		roles:  map[string]int{"admin": 10, "manager": 20, "user": 30},
	}
}

// Seed stores a copy of user, assigning an id when it has none, and grants
// the listed role codes.
func (r *MockRepository) Seed(user User, roles ...string) *User {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user.ID == 0 {
		r.nextID++
		user.ID = r.nextID
	} else if user.ID > r.nextID {
		r.nextID = user.ID
	}
	if user.Status == "" {
		user.Status = StatusActive
	}
	r.users[user.ID] = &user
	for _, code := range roles {
		r.grants[user.ID] = append(r.grants[user.ID], Grant{Code: code, Sort: r.sortOf(code)})
	}
	c := user
	return &c
}

// GrantRaw adds a grant without validating the role code.
func (r *MockRepository) GrantRaw(userID int64, grant Grant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.grants[userID] = append(r.grants[userID], grant)
}

func (r *MockRepository) sortOf(code string) int {
	if s, ok := r.roles[code]; ok {
		return s
	}
	return 1000
}

func (r *MockRepository) find(match func(*User) bool) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, ErrUserNotFound
}

func (r *MockRepository) GetByID(_ context.Context, id int64) (*User, error) {
	return r.find(func(u *User) bool { return u.ID == id })
}

func (r *MockRepository) GetByPhone(_ context.Context, phone string) (*User, error) {
	return r.find(func(u *User) bool { return u.Phone == phone })
}

func (r *MockRepository) GetByEmail(_ context.Context, email string) (*User, error) {
	return r.find(func(u *User) bool { return u.Email == email })
}

func (r *MockRepository) conflicts(user *User) bool {
	for _, u := range r.users {
		if u.ID == user.ID {
			continue
		}
		if u.Email == user.Email || u.Phone == user.Phone {
			return true
		}
	}
	return false
}

func (r *MockRepository) Create(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conflicts(user) {
		return ErrUserExists
	}
	r.nextID++
	user.ID = r.nextID
	if user.Status == "" {
		user.Status = StatusActive
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *MockRepository) Update(_ context.Context, user *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}
	if r.conflicts(user) {
		return ErrUserExists
	}
	stored.Email = user.Email
	stored.Phone = user.Phone
	stored.Name = user.Name
	stored.UpdatedAt = time.Now()
	return nil
}

func (r *MockRepository) mutate(userID int64, fn func(*User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[userID]
	if !ok {
		return ErrUserNotFound
	}
	fn(u)
	return nil
}

func (r *MockRepository) SetPasswordHash(_ context.Context, userID int64, hash string) error {
	return r.mutate(userID, func(u *User) { u.PassHash = hash })
}

func (r *MockRepository) SetStatus(_ context.Context, userID int64, status string) error {
	return r.mutate(userID, func(u *User) { u.Status = status })
}

func (r *MockRepository) Delete(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	delete(r.users, userID)
	delete(r.grants, userID)
	return nil
}

func (r *MockRepository) Grants(_ context.Context, userID int64) ([]Grant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	grants := append([]Grant(nil), r.grants[userID]...)
	sort.SliceStable(grants, func(i, j int) bool { return grants[i].Sort < grants[j].Sort })
	return grants, nil
}

func (r *MockRepository) SetRole(_ context.Context, userID int64, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.users[userID]; !ok {
		return ErrUserNotFound
	}
	r.grants[userID] = []Grant{{Code: code, Sort: r.sortOf(code)}}
	return nil
}
