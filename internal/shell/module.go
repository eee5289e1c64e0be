package shell

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/audit"
	"github.com/elskow/backoffice/internal/auth"
	"github.com/elskow/backoffice/internal/capability"
)

// Module is the code behind one modules/<code> directory.
type Module interface {
	Code() string
	// View describes the module screen. The shell adds module and csrf.
	View(req *Request) (gin.H, error)
	// Action returns the handler for a named action.
	Action(name string) (Action, bool)
}

type Action func(req *Request) (gin.H, error)

// ActionMap is a Module helper for static action tables.
type ActionMap map[string]Action

func (m ActionMap) Action(name string) (Action, bool) {
	a, ok := m[name]
	return a, ok
}

// Request is what a module handler gets: the gin context for I/O and the
// SecurityContext for every decision.
type Request struct {
	C        *gin.Context
	Security *auth.SecurityContext
}

func (r *Request) Ctx() context.Context {
	return r.C.Request.Context()
}

// Form returns a trimmed form value.
func (r *Request) Form(key string) string {
	return strings.TrimSpace(r.C.PostForm(key))
}

// RawForm returns a form value as sent. Use it for secrets.
func (r *Request) RawForm(key string) string {
	return r.C.PostForm(key)
}

func (r *Request) Caps() *capability.Set {
	return r.Security.Caps
}

func (r *Request) Cookie(name string) string {
	v, err := r.C.Cookie(name)
	if err != nil {
		return ""
	}
	return v
}

func (r *Request) SetCookie(c *http.Cookie) {
	http.SetCookie(r.C.Writer, c)
}

// Require re-checks the caller's role for a sub-action.
func (r *Request) Require(allowed ...acl.Role) error {
	return acl.Require(allowed, r.Security)
}

// Event starts an audit event attributed to the caller.
func (r *Request) Event(action, outcome, level string) audit.Event {
	sc := r.Security
	ev := audit.Event{
		Role:      sc.Role().String(),
		Module:    sc.Module,
		Action:    action,
		Outcome:   outcome,
		Level:     level,
		IP:        sc.Client.IP,
		UserAgent: sc.Client.UserAgent,
	}
	if sc.Authenticated() {
		uid := sc.UserID
		ev.UserID = &uid
	}
	return ev
}
