// Package catalog serves the modules screen, where admins switch modules
// on and off at runtime.
package catalog

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/api"
	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/audit"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/shell"
)

var (
	ErrProtected    = apperr.New(apperr.InvalidInput, "module cannot be disabled")
	ErrInvalidCode  = apperr.New(apperr.InvalidInput, "invalid module code")
	ErrInvalidValue = apperr.New(apperr.InvalidInput, "invalid enabled flag")
)

// protected modules keep the admin area reachable.
var protected = map[string]bool{
	api.ModuleAuth:    true,
	api.ModuleModules: true,
}

type Module struct {
	shell.ActionMap
}

func New() *Module {
	m := &Module{}
	m.ActionMap = shell.ActionMap{
		api.ModulesToggle: m.toggle,
	}
	return m
}

func (m *Module) Code() string {
	return api.ModuleModules
}

type entry struct {
	Code      string   `json:"code"`
	Name      string   `json:"name"`
	Enabled   bool     `json:"enabled"`
	Menu      bool     `json:"menu"`
	Sort      int      `json:"sort"`
	Roles     []string `json:"roles"`
	Protected bool     `json:"protected"`
}

func (m *Module) View(req *shell.Request) (gin.H, error) {
	modules, err := capability.Get[capability.Modules](req.Caps(), capability.CoreModules)
	if err != nil {
		return nil, err
	}
	snap, err := modules.Snapshot(req.Ctx())
	if err != nil {
		return nil, err
	}
	list := make([]entry, 0, len(snap.Modules()))
	for _, mf := range snap.Modules() {
		list = append(list, entry{
			Code:      mf.Code,
			Name:      mf.Name,
			Enabled:   mf.Enabled,
			Menu:      mf.Menu,
			Sort:      mf.Sort,
			Roles:     mf.Roles,
			Protected: protected[mf.Code],
		})
	}
	return gin.H{"modules": list}, nil
}

func (m *Module) toggle(req *shell.Request) (gin.H, error) {
	if err := req.Require(acl.RoleAdmin); err != nil {
		return nil, err
	}
	modules, err := capability.Get[capability.Modules](req.Caps(), capability.CoreModules)
	if err != nil {
		return nil, err
	}
	rec, err := capability.Get[audit.Recorder](req.Caps(), capability.CoreAudit)
	if err != nil {
		return nil, err
	}

	code := req.Form(api.FieldCode)
	enabled, err := strconv.ParseBool(req.Form(api.FieldEnabled))
	switch {
	case !capability.ValidCode(code):
		return nil, ErrInvalidCode
	case err != nil:
		return nil, ErrInvalidValue
	case protected[code] && !enabled:
		return nil, ErrProtected
	}

	ev := req.Event(api.ModulesToggle, audit.OutcomeSuccess, audit.LevelInfo)
	ev.Entity, ev.EntityID = "module", code
	ev.Payload = audit.Payload{"enabled": enabled}
	if err := modules.SetEnabled(req.Ctx(), code, enabled); err != nil {
		ev.Outcome, ev.Level = audit.OutcomeFailure, audit.LevelWarn
		rec.Record(req.Ctx(), ev)
		return nil, err
	}
	rec.Record(req.Ctx(), ev)
	return gin.H{"code": code, "enabled": enabled}, nil
}
