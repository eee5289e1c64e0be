package capability

import (
	"fmt"
	"sort"
	"strings"
)

// Core services a module may require. The list is closed: RegisterCore
// rejects anything else.
const (
	CoreDB       = "core:db"
	CoreSecurity = "core:security"
	CoreCSRF     = "core:csrf"
	CoreAuth     = "core:auth"
	CoreACL      = "core:acl"
	CoreAudit    = "core:audit"
	CoreRemember = "core:remember"
	CoreReset    = "core:reset"
	CoreNotify   = "core:notify"
	CoreModules  = "core:modules"
)

var coreWhitelist = map[string]bool{
	CoreDB:       true,
	CoreSecurity: true,
	CoreCSRF:     true,
	CoreAuth:     true,
	CoreACL:      true,
	CoreAudit:    true,
	CoreRemember: true,
	CoreReset:    true,
	CoreNotify:   true,
	CoreModules:  true,
}

// Factory produces the service behind an alias.
type Factory func() (any, error)

// Registry maps aliases to Go factories. It is filled at startup and read
// only afterwards.
type Registry struct {
	core    map[string]Factory
	modules map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{
		core:    make(map[string]Factory),
		modules: make(map[string]Factory),
	}
}

func (r *Registry) RegisterCore(alias string, f Factory) error {
	if !coreWhitelist[alias] {
		return fmt.Errorf("core alias %q is not whitelisted", alias)
	}
	if _, dup := r.core[alias]; dup {
		return fmt.Errorf("core alias %q registered twice", alias)
	}
	r.core[alias] = f
	return nil
}

// RegisterModule binds a module:* alias to its implementation. The alias is
// still only usable once a manifest exports it.
func (r *Registry) RegisterModule(alias string, f Factory) error {
	if !strings.HasPrefix(alias, ModulePrefix) || len(alias) == len(ModulePrefix) {
		return fmt.Errorf("module alias %q must start with %q", alias, ModulePrefix)
	}
	if _, dup := r.modules[alias]; dup {
		return fmt.Errorf("module alias %q registered twice", alias)
	}
	r.modules[alias] = f
	return nil
}

func (r *Registry) coreFactory(alias string) (Factory, bool) {
	f, ok := r.core[alias]
	return f, ok
}

func (r *Registry) moduleFactory(alias string) (Factory, bool) {
	f, ok := r.modules[alias]
	return f, ok
}

// ModuleAliases lists registered module:* aliases in order.
func (r *Registry) ModuleAliases() []string {
	return sortedKeys(r.modules)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Value is a Factory for a service built once at startup.
func Value(v any) Factory {
	return func() (any, error) { return v, nil }
}
