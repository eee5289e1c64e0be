package capability

import (
	"io/fs"
	"path"
	"path/filepath"
	"strings"
)

const (
	CorePrefix   = "core:"
	ModulePrefix = "module:"
)

// Export is a module:* alias that passed every collection check.
type Export struct {
	Alias  string
	Module string
	Path   string
}

type SkipReason string

const (
	SkipDisabled  SkipReason = "module disabled"
	SkipNamespace SkipReason = "alias outside module namespace"
	SkipEmpty     SkipReason = "empty alias or path"
	SkipParent    SkipReason = "path leaves module directory"
	SkipAbsolute  SkipReason = "absolute path"
	SkipMissing   SkipReason = "file does not exist"
	SkipCollision SkipReason = "alias already exported"
)

// Skipped records an export that was not collected.
type Skipped struct {
	Module string
	Alias  string
	Reason SkipReason
}

// CollectExports builds the module:* alias map from enabled manifests.
// Manifests are visited in the given order, so the first module to export
// an alias keeps it.
func CollectExports(manifests []*Manifest, fsys fs.FS) (map[string]Export, []Skipped) {
	exports := make(map[string]Export)
	var skipped []Skipped

	for _, m := range manifests {
		for _, alias := range sortedKeys(m.Exports) {
			rel := strings.TrimSpace(m.Exports[alias])
			alias = strings.TrimSpace(alias)
			skip := func(reason SkipReason) {
				skipped = append(skipped, Skipped{Module: m.Code, Alias: alias, Reason: reason})
			}

			switch {
			case !m.Enabled:
				skip(SkipDisabled)
				continue
			case alias == "" || rel == "":
				skip(SkipEmpty)
				continue
			case !strings.HasPrefix(alias, ModulePrefix):
				skip(SkipNamespace)
				continue
			case strings.Contains(rel, ".."):
				skip(SkipParent)
				continue
			case strings.HasPrefix(rel, "/") || strings.ContainsRune(rel, '\\') || filepath.IsAbs(rel):
				skip(SkipAbsolute)
				continue
			}

			full := path.Join(m.Code, rel)
			if !fs.ValidPath(full) {
				skip(SkipParent)
				continue
			}
			info, err := fs.Stat(fsys, full)
			if err != nil || !info.Mode().IsRegular() {
				skip(SkipMissing)
				continue
			}

			if _, taken := exports[alias]; taken {
				skip(SkipCollision)
				continue
			}
			exports[alias] = Export{Alias: alias, Module: m.Code, Path: full}
		}
	}
	return exports, skipped
}
