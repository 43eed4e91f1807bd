// Package migrations applies versioned schema changes to the activity index.
// Each migration runs in its own transaction and is recorded in the
// schema_version table, so re-opening an index only applies what is new.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one schema change. Version must be unique and positive.
type Migration struct {
	Version     int
	Description string
	Up          string
	Down        string
}

// Manager holds the registered migrations.
type Manager struct {
	migrations []Migration
}

// NewManager creates a manager with ms registered.
func NewManager(ms ...Migration) *Manager {
	m := &Manager{}
	for _, mig := range ms {
		m.Register(mig)
	}
	return m
}

// Register adds a migration.
func (m *Manager) Register(migration Migration) {
	m.migrations = append(m.migrations, migration)
}

// ordered returns the migrations by ascending version, rejecting duplicates
// and non-positive versions.
func (m *Manager) ordered() ([]Migration, error) {
	out := append([]Migration(nil), m.migrations...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i, mig := range out {
		if mig.Version < 1 {
			return nil, fmt.Errorf("migration %q has invalid version %d", mig.Description, mig.Version)
		}
		if i > 0 && out[i-1].Version == mig.Version {
			return nil, fmt.Errorf("duplicate migration version %d", mig.Version)
		}
	}
	return out, nil
}

// ApplySQLite applies every migration newer than the recorded version.
func (m *Manager) ApplySQLite(ctx context.Context, db *sql.DB) error {
	ordered, err := m.ordered()
	if err != nil {
		return err
	}
	current, err := m.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, mig := range ordered {
		if mig.Version <= current {
			continue
		}
		err := inTx(ctx, db, mig.Up,
			"INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
			mig.Version, mig.Description, time.Now().UTC().Format(time.RFC3339Nano))
		if err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", mig.Version, mig.Description, err)
		}
	}
	return nil
}

// RollbackSQLite reverts the most recently applied migration.
func (m *Manager) RollbackSQLite(ctx context.Context, db *sql.DB) error {
	current, err := m.CurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	if current == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	for _, mig := range m.migrations {
		if mig.Version != current {
			continue
		}
		if err := inTx(ctx, db, mig.Down, "DELETE FROM schema_version WHERE version = ?", mig.Version); err != nil {
			return fmt.Errorf("failed to rollback migration %d: %w", mig.Version, err)
		}
		return nil
	}
	return fmt.Errorf("migration %d not found", current)
}

// CurrentVersion returns the highest applied migration version, or 0 for a
// fresh database.
func (m *Manager) CurrentVersion(ctx context.Context, db *sql.DB) (int, error) {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TEXT NOT NULL
		)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create version table: %w", err)
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// inTx runs script and the bookkeeping statement in one transaction.
func inTx(ctx context.Context, db *sql.DB, script, record string, args ...interface{}) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, record, args...); err != nil {
		return fmt.Errorf("updating schema_version: %w", err)
	}
	return tx.Commit()
}
