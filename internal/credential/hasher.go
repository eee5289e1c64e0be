package credential

import (
	"fmt"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
	// CompareDummy spends the same time as a real Compare. Callers use it
	// when there is no user, so timing does not reveal that.
	CompareDummy(password string)
}

type bcryptHasher struct {
	cost int

	once  sync.Once
	dummy []byte
}

func NewHasher() Hasher {
	return NewHasherWithCost(bcrypt.DefaultCost)
}

// NewHasherWithCost is mostly for tests, which use bcrypt.MinCost.
func NewHasherWithCost(cost int) Hasher {
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

func (h *bcryptHasher) Compare(hash, password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func (h *bcryptHasher) CompareDummy(password string) {
	h.once.Do(func() {
		h.dummy, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), h.cost)
	})
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}
