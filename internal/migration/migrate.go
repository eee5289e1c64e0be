package migration

import (
	"database/sql"
	"fmt"
	"io/fs"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/elskow/backoffice/internal/config"
	"github.com/elskow/backoffice/internal/database"
	"github.com/elskow/backoffice/migrations"
)

type Migrator struct {
	db     *sql.DB
	config *config.DatabaseConfig
	fsys   fs.FS
	dir    string
}

// NewMigrator runs the migrations embedded in the binary.
func NewMigrator(config *config.DatabaseConfig) (*Migrator, error) {
	return newMigrator(config, migrations.FS, ".")
}

// NewDirMigrator runs the migrations found in the repository's migrations
// directory, so a developer can iterate without rebuilding.
func NewDirMigrator(config *config.DatabaseConfig) (*Migrator, error) {
	dir, err := getMigrationsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get migrations directory: %w", err)
	}
	return newMigrator(config, nil, dir)
}

func newMigrator(config *config.DatabaseConfig, fsys fs.FS, dir string) (*Migrator, error) {
	db, err := sql.Open("postgres", database.DSN(config))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &Migrator{
		db:     db,
		config: config,
		fsys:   fsys,
		dir:    dir,
	}, nil
}

func (m *Migrator) prepare() error {
	goose.SetBaseFS(m.fsys)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	return nil
}

func (m *Migrator) Up() error {
	if err := m.prepare(); err != nil {
		return err
	}

	if err := goose.Up(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

func (m *Migrator) Down() error {
	if err := m.prepare(); err != nil {
		return err
	}

	if err := goose.Down(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to rollback migrations: %w", err)
	}

	return nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}

// GetCurrentVersion returns the current migration version
func (m *Migrator) GetCurrentVersion() (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}
	return goose.GetDBVersion(m.db)
}

// GetLatestVersion returns the latest available migration version
func (m *Migrator) GetLatestVersion() (int64, error) {
	if err := m.prepare(); err != nil {
		return 0, err
	}

	found, err := goose.CollectMigrations(m.dir, 0, goose.MaxVersion)
	if err != nil {
		return 0, err
	}

	if len(found) == 0 {
		return 0, nil
	}

	return found[len(found)-1].Version, nil
}

func (m *Migrator) Status() error {
	if err := m.prepare(); err != nil {
		return err
	}

	if err := goose.Status(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}

func (m *Migrator) Reset() error {
	if err := m.prepare(); err != nil {
		return err
	}
	if err := goose.Reset(m.db, m.dir); err != nil {
		return fmt.Errorf("failed to reset migrations: %w", err)
	}
	return m.Up()
}
