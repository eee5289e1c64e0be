// Package acl resolves a user's single effective role and enforces role
// allow-lists.
package acl

import (
	"github.com/elskow/backoffice/internal/apperr"
)

var (
	ErrUnauthorized = apperr.New(apperr.Unauthorized, "no identity")
	ErrForbidden    = apperr.New(apperr.Forbidden, "role not allowed")
)

// Identity is the caller as seen by a guard.
type Identity interface {
	Authenticated() bool
	Role() Role
}

// Require fails with ErrUnauthorized for an anonymous caller and with
// ErrForbidden when the caller's role is not in allowed.
func Require(allowed []Role, who Identity) error {
	if who == nil || !who.Authenticated() {
		return ErrUnauthorized
	}
	if !who.Role().In(allowed...) {
		return ErrForbidden
	}
	return nil
}

// RequireAuthenticated allows any role but no anonymous caller.
func RequireAuthenticated(who Identity) error {
	return Require(All, who)
}

// RoleIdentity is an authenticated caller known only by role.
type RoleIdentity Role

func (r RoleIdentity) Authenticated() bool { return true }

func (r RoleIdentity) Role() Role { return Role(r) }
