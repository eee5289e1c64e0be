package capability

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const ManifestFile = "manifest.yaml"

var codePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// ValidCode reports whether code can name a module.
func ValidCode(code string) bool {
	return codePattern.MatchString(code)
}

// Manifest is the declaration found in modules/<code>/manifest.yaml.
type Manifest struct {
	Code     string            `yaml:"-"`
	Name     string            `yaml:"name"`
	Enabled  bool              `yaml:"enabled"`
	Menu     bool              `yaml:"menu"`
	Sort     int               `yaml:"sort"`
	Roles    RoleList          `yaml:"roles"`
	Exports  map[string]string `yaml:"exports"`
	Requires []string          `yaml:"requires"`
}

// RoleList accepts either a YAML sequence or a comma separated string. It
// is stored as a JSON array.
type RoleList []string

// DenyAll names no role. A stored roles value that cannot be read scans to
// RoleList{DenyAll}, so the module stays closed instead of opening to every
// role.
const DenyAll = "!deny"

func (r *RoleList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*r = splitRoles(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		*r = cleanRoles(items)
		return nil
	default:
		return fmt.Errorf("roles: expected list or string at line %d", value.Line)
	}
}

func (r RoleList) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(r))
	return string(b), err
}

func (r *RoleList) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("roles: unsupported type %T", src)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		*r = nil
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		*r = RoleList{DenyAll}
		return nil
	}
	*r = cleanRoles(items)
	return nil
}

func splitRoles(s string) RoleList {
	return cleanRoles(strings.Split(s, ","))
}

func cleanRoles(items []string) RoleList {
	var out RoleList
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Scan reads the manifest of every module directory in fsys, in name
// order. A directory without a manifest is not a module. Broken manifests
// are skipped and reported in the joined error; the rest are still
// returned.
func Scan(fsys fs.FS) ([]*Manifest, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read modules directory: %w", err)
	}

	var (
		manifests []*Manifest
		errs      []error
	)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		code := entry.Name()
		if !ValidCode(code) {
			continue
		}

		raw, err := fs.ReadFile(fsys, path.Join(code, ManifestFile))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("module %s: %w", code, err))
			continue
		}

		m := &Manifest{Sort: 100}
		if err := yaml.Unmarshal(raw, m); err != nil {
			errs = append(errs, fmt.Errorf("module %s: invalid manifest: %w", code, err))
			continue
		}
		m.Code = code
		if m.Name == "" {
			m.Name = code
		}
		manifests = append(manifests, m)
	}
	return manifests, errors.Join(errs...)
}
