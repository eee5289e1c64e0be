package capability

import (
	"fmt"

	"github.com/elskow/backoffice/internal/apperr"
)

// Set holds the services activated for one request.
type Set struct {
	items map[string]any
	order []string
}

func newSet() *Set {
	return &Set{items: make(map[string]any)}
}

func (s *Set) put(alias string, v any) {
	s.items[alias] = v
	s.order = append(s.order, alias)
}

func (s *Set) Has(alias string) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[alias]
	return ok
}

// Aliases lists activated aliases in activation order.
func (s *Set) Aliases() []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s.order...)
}

// Get returns the service behind alias as T. Asking for an alias the module
// did not require is a configuration error, as is a type mismatch.
func Get[T any](s *Set, alias string) (T, error) {
	var zero T
	if s == nil {
		return zero, apperr.New(apperr.Configuration, fmt.Sprintf("capability %s not activated", alias))
	}
	v, ok := s.items[alias]
	if !ok {
		return zero, apperr.New(apperr.Configuration, fmt.Sprintf("capability %s not activated", alias))
	}
	t, ok := v.(T)
	if !ok {
		return zero, apperr.New(apperr.Configuration, fmt.Sprintf("capability %s has type %T, want %T", alias, v, zero))
	}
	return t, nil
}
