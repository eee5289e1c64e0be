// Package dashboard builds the landing screen menu.
package dashboard

import (
	"sort"

	"github.com/gin-gonic/gin"

	"github.com/elskow/backoffice/internal/acl"
	"github.com/elskow/backoffice/internal/api"
	"github.com/elskow/backoffice/internal/capability"
	"github.com/elskow/backoffice/internal/shell"
)

type Module struct {
	shell.ActionMap
}

func New() *Module {
	return &Module{ActionMap: shell.ActionMap{}}
}

func (m *Module) Code() string {
	return api.ModuleDashboard
}

type MenuItem struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// View lists the enabled menu modules the caller's role can open.
func (m *Module) View(req *shell.Request) (gin.H, error) {
	modules, err := capability.Get[capability.Modules](req.Caps(), capability.CoreModules)
	if err != nil {
		return nil, err
	}
	snap, err := modules.Snapshot(req.Ctx())
	if err != nil {
		return nil, err
	}
	return gin.H{"menu": Menu(snap.Modules(), req.Security.Role())}, nil
}

// Menu filters manifests down to what role may see, ordered by sort then
// code.
func Menu(manifests []*capability.Manifest, role acl.Role) []MenuItem {
	visible := make([]*capability.Manifest, 0, len(manifests))
	for _, mf := range manifests {
		if mf.Enabled && mf.Menu && allows(mf.Roles, role) {
			visible = append(visible, mf)
		}
	}
	sort.SliceStable(visible, func(i, j int) bool {
		if visible[i].Sort != visible[j].Sort {
			return visible[i].Sort < visible[j].Sort
		}
		return visible[i].Code < visible[j].Code
	})

	items := make([]MenuItem, 0, len(visible))
	for _, mf := range visible {
		items = append(items, MenuItem{Code: mf.Code, Name: mf.Name, Path: "/adm/" + mf.Code})
	}
	return items
}

func allows(roles capability.RoleList, role acl.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, name := range roles {
		if r, ok := acl.ParseRole(name); ok && r == role {
			return true
		}
	}
	return false
}
