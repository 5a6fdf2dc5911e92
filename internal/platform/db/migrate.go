package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// MigrationStatus represents the status of a migration (applied or pending).
type MigrationStatus struct {
	Version int64
	Name    string
	Applied bool
}

// Migrator applies the embedded SQL migrations with goose.
type Migrator struct {
	db *sql.DB
}

func init() {
	goose.SetBaseFS(migrationsFS)
}

// NewMigrator wraps pool in a *sql.DB for goose. The pool stays owned by
// the caller; Close only releases the wrapper.
func NewMigrator(pool *pgxpool.Pool) (*Migrator, error) {
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	return &Migrator{db: stdlib.OpenDBFromPool(pool)}, nil
}

// Up applies all pending migrations and returns the resulting version.
func (m *Migrator) Up(ctx context.Context) (int64, error) {
	if err := goose.UpContext(ctx, m.db, migrationsDir); err != nil {
		return 0, fmt.Errorf("apply migrations: %w", err)
	}
	return m.Version(ctx)
}

// Version returns the version of the last applied migration.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// Status lists every embedded migration and whether it has been applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	statuses, err := Migrations()
	if err != nil {
		return nil, err
	}
	for i := range statuses {
		statuses[i].Applied = statuses[i].Version <= current
	}
	return statuses, nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}

// Migrations lists the embedded migrations in version order, all pending.
func Migrations() ([]MigrationStatus, error) {
	migrations, err := goose.CollectMigrations(migrationsDir, 0, goose.MaxVersion)
	if err != nil {
		return nil, fmt.Errorf("collect migrations: %w", err)
	}
	statuses := make([]MigrationStatus, len(migrations))
	for i, mig := range migrations {
		statuses[i] = MigrationStatus{Version: mig.Version, Name: filepath.Base(mig.Source)}
	}
	return statuses, nil
}
