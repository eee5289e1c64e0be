package auth

import (
	"context"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/credential"
	"github.com/elskow/backoffice/internal/remember"
	"github.com/elskow/backoffice/internal/session"
)

type contextKey string

const securityContextKey contextKey = "security"

// SecurityContext is built once per request from validated inputs and
// handed to every handler explicitly.
type SecurityContext struct {
	UserID    int64
	User      *credential.User
	UserRole  acl.Role
	Client    remember.Client
	Secure    bool
	Session   *session.Session
	Caps      *capability.Set
	Module    string
	Action    string
	RequestID string
}

func (c *SecurityContext) Authenticated() bool {
	return c != nil && c.UserID != 0
}

func (c *SecurityContext) Role() acl.Role {
	if !c.Authenticated() {
		return ""
	}
	return c.UserRole
}

func WithSecurityContext(ctx context.Context, sc *SecurityContext) context.Context {
	return context.WithValue(ctx, securityContextKey, sc)
}

// FromContext returns the request's SecurityContext, or nil.
func FromContext(ctx context.Context) *SecurityContext {
	sc, _ := ctx.Value(securityContextKey).(*SecurityContext)
	return sc
}
