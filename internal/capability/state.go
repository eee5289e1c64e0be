package capability

import (
	"context"
	"sort"
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/elskow/backoffice/internal/apperr"
	"github.com/elskow/backoffice/internal/database"
)

var ErrModuleNotFound = apperr.New(apperr.NotFound, "module not found")

// ModuleRecord is the runtime state of a module. The table, not the
// manifest, decides whether a module is enabled and who may open it.
type ModuleRecord struct {
	Code    string   `gorm:"primaryKey"`
	Name    string   `gorm:"not null"`
	Enabled bool     `gorm:"not null"`
	Menu    bool     `gorm:"not null"`
	Sort    int      `gorm:"not null"`
	Roles   RoleList `gorm:"type:jsonb;not null"`
}

func (ModuleRecord) TableName() string {
	return "modules"
}

type StateStore interface {
	List(ctx context.Context) ([]ModuleRecord, error)
	SetEnabled(ctx context.Context, code string, enabled bool) error
	// Seed inserts a row for every manifest that has none. Existing rows
	// are left as they are.
	Seed(ctx context.Context, manifests []*Manifest) error
}

type stateStore struct {
	db *gorm.DB
}

func NewStateStore(db *gorm.DB) StateStore {
	return &stateStore{db: db}
}

func (s *stateStore) List(ctx context.Context) ([]ModuleRecord, error) {
	var records []ModuleRecord
	if err := database.Conn(ctx, s.db).Order("sort ASC, code ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *stateStore) SetEnabled(ctx context.Context, code string, enabled bool) error {
	res := database.Conn(ctx, s.db).Model(&ModuleRecord{}).Where("code = ?", code).Update("enabled", enabled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrModuleNotFound
	}
	return nil
}

func (s *stateStore) Seed(ctx context.Context, manifests []*Manifest) error {
	if len(manifests) == 0 {
		return nil
	}
	records := make([]ModuleRecord, 0, len(manifests))
	for _, m := range manifests {
		records = append(records, recordFromManifest(m))
	}
	return database.Conn(ctx, s.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "code"}}, DoNothing: true}).
		Create(&records).Error
}

func recordFromManifest(m *Manifest) ModuleRecord {
	roles := m.Roles
	if roles == nil {
		roles = RoleList{}
	}
	return ModuleRecord{
		Code:    m.Code,
		Name:    m.Name,
		Enabled: m.Enabled,
		Menu:    m.Menu,
		Sort:    m.Sort,
		Roles:   roles,
	}
}

// MockStateStore keeps module state in memory.
type MockStateStore struct {
	mu      sync.Mutex
	records map[string]ModuleRecord
	Err     error
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{records: make(map[string]ModuleRecord)}
}

func (s *MockStateStore) Put(record ModuleRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.Code] = record
}

func (s *MockStateStore) List(_ context.Context) ([]ModuleRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return nil, s.Err
	}
	out := make([]ModuleRecord, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sort != out[j].Sort {
			return out[i].Sort < out[j].Sort
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (s *MockStateStore) SetEnabled(_ context.Context, code string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.records[code]
	if !ok {
		return ErrModuleNotFound
	}
	r.Enabled = enabled
	s.records[code] = r
	return nil
}

func (s *MockStateStore) Seed(_ context.Context, manifests []*Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range manifests {
		if _, ok := s.records[m.Code]; !ok {
			s.records[m.Code] = recordFromManifest(m)
		}
	}
	return nil
}
