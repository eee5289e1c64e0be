package acl

import (
	"context"
	"fmt"

	"github.com/elskow/backoffice/internal/credential"
)

// GrantSource lists the role grants of a user.
type GrantSource interface {
	Grants(ctx context.Context, userID int64) ([]credential.Grant, error)
}

type Resolver struct {
	grants GrantSource
}

func NewResolver(grants GrantSource) *Resolver {
	return &Resolver{grants: grants}
}

// Resolve picks the grant with the lowest sort. A user with no grant, or
// whose top grant is not a known role, is RoleUser.
func (r *Resolver) Resolve(ctx context.Context, userID int64) (Role, error) {
	grants, err := r.grants.Grants(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	if len(grants) == 0 {
		return RoleUser, nil
	}
	top := grants[0]
	for _, g := range grants[1:] {
		if g.Sort < top.Sort {
			top = g
		}
	}
	role, ok := ParseRole(top.Code)
	if !ok {
		return RoleUser, nil
	}
	return role, nil
}
