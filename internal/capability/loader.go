// Package capability decides which server side services a module may use
// while serving a request. Services are reachable only through aliases:
// core:* from a fixed whitelist, module:* from exports declared in module
// manifests and backed by a file inside the exporting module.
package capability

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"go.uber.org/zap"

	"github.com/elskow/backoffice/internal/apperr"
)

// Snapshot is the module view for one request: manifests overlaid with
// the runtime state from the modules table.
type Snapshot struct {
	modules []*Manifest
	byCode  map[string]*Manifest
	exports map[string]Export
	skipped []Skipped
}

func (s *Snapshot) Module(code string) (*Manifest, bool) {
	m, ok := s.byCode[code]
	return m, ok
}

func (s *Snapshot) Modules() []*Manifest {
	return s.modules
}

func (s *Snapshot) Exports() map[string]Export {
	return s.exports
}

func (s *Snapshot) Skipped() []Skipped {
	return s.skipped
}

// Modules is the service behind core:modules: the module view for a
// request and the runtime switch that turns a module on or off.
type Modules interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
	SetEnabled(ctx context.Context, code string, enabled bool) error
}

type Loader struct {
	registry  *Registry
	fsys      fs.FS
	manifests []*Manifest
	states    StateStore
	log       *zap.Logger
}

func NewLoader(registry *Registry, fsys fs.FS, manifests []*Manifest, states StateStore, log *zap.Logger) *Loader {
	return &Loader{
		registry:  registry,
		fsys:      fsys,
		manifests: manifests,
		states:    states,
		log:       log,
	}
}

func (l *Loader) Manifests() []*Manifest {
	return l.manifests
}

// Snapshot reads module state fresh on every call. A module with no row in
// the table is treated as disabled.
func (l *Loader) Snapshot(ctx context.Context) (*Snapshot, error) {
	records, err := l.states.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load module state: %w", err)
	}
	state := make(map[string]ModuleRecord, len(records))
	for _, r := range records {
		state[r.Code] = r
	}

	snap := &Snapshot{byCode: make(map[string]*Manifest, len(l.manifests))}
	for _, m := range l.manifests {
		overlaid := *m
		if r, ok := state[m.Code]; ok {
			overlaid.Enabled = r.Enabled
			overlaid.Menu = r.Menu
			overlaid.Sort = r.Sort
			overlaid.Roles = r.Roles
			if r.Name != "" {
				overlaid.Name = r.Name
			}
		} else {
			overlaid.Enabled = false
		}
		snap.modules = append(snap.modules, &overlaid)
		snap.byCode[m.Code] = &overlaid
	}
	snap.exports, snap.skipped = CollectExports(snap.modules, l.fsys)
	return snap, nil
}

func (l *Loader) SetEnabled(ctx context.Context, code string, enabled bool) error {
	return l.states.SetEnabled(ctx, code, enabled)
}

// Activate instantiates every alias the module requires, once each.
// Anything that cannot be resolved aborts with a Configuration error.
func (l *Loader) Activate(snap *Snapshot, code string) (*Set, error) {
	m, ok := snap.Module(code)
	if !ok {
		return nil, ErrModuleNotFound
	}

	set := newSet()
	for _, alias := range m.Requires {
		alias = strings.TrimSpace(alias)
		if alias == "" || set.Has(alias) {
			continue
		}

		f, err := l.resolve(snap, alias)
		if err != nil {
			l.log.Error("capability resolution failed",
				zap.String("module", code),
				zap.String("alias", alias),
				zap.Error(err))
			return nil, err
		}

		v, err := f()
		if err != nil {
			l.log.Error("capability factory failed",
				zap.String("module", code),
				zap.String("alias", alias),
				zap.Error(err))
			return nil, apperr.Wrap(apperr.Configuration, fmt.Sprintf("capability %s", alias), err)
		}
		set.put(alias, v)
	}
	return set, nil
}

func (l *Loader) resolve(snap *Snapshot, alias string) (Factory, error) {
	if f, ok := l.registry.coreFactory(alias); ok {
		return f, nil
	}
	if coreWhitelist[alias] {
		return nil, apperr.New(apperr.Configuration, fmt.Sprintf("core alias %s has no implementation", alias))
	}

	exp, ok := snap.exports[alias]
	if !ok {
		return nil, apperr.New(apperr.Configuration, fmt.Sprintf("unknown require alias %s", alias))
	}
	f, ok := l.registry.moduleFactory(alias)
	if !ok {
		return nil, apperr.New(apperr.Configuration,
			fmt.Sprintf("alias %s exported by %s (%s) has no implementation", alias, exp.Module, exp.Path))
	}
	return f, nil
}

// Validate checks every enabled module against the registry and the
// export map, as Activate would per request.
func (l *Loader) Validate(ctx context.Context) []error {
	snap, err := l.Snapshot(ctx)
	if err != nil {
		return []error{err}
	}

	for _, s := range snap.skipped {
		if s.Reason == SkipDisabled {
			continue
		}
		l.log.Warn("module export skipped",
			zap.String("module", s.Module),
			zap.String("alias", s.Alias),
			zap.String("reason", string(s.Reason)))
	}

	var errs []error
	for _, m := range snap.modules {
		if !m.Enabled {
			continue
		}
		for _, alias := range m.Requires {
			alias = strings.TrimSpace(alias)
			if alias == "" {
				continue
			}
			if _, err := l.resolve(snap, alias); err != nil {
				errs = append(errs, fmt.Errorf("module %s: %w", m.Code, err))
			}
		}
	}
	for _, alias := range l.registry.ModuleAliases() {
		if _, ok := snap.exports[alias]; !ok {
			l.log.Info("module alias registered but not exported", zap.String("alias", alias))
		}
	}
	return errs
}
