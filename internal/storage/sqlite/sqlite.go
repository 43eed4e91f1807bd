// Package sqlite is the queryable index of the activity log and of lesson
// transitions. The JSONL journals stay authoritative; the index can be
// rebuilt from them at any time.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/steveyegge/govern/internal/storage/migrations"
)

// Index is a SQLite-backed activity index.
type Index struct {
	db *sql.DB
}

// Open opens (creating if needed) the index at path and applies pending
// schema migrations. ":memory:" opens a private in-memory index.
func Open(ctx context.Context, path string) (*Index, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrations.NewManager(schemaMigrations...).ApplySQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Index{db: db}, nil
}

// Close releases the database.
func (s *Index) Close() error {
	return s.db.Close()
}

// SchemaVersion returns the highest applied schema migration.
func (s *Index) SchemaVersion(ctx context.Context) (int, error) {
	return migrations.NewManager().CurrentVersion(ctx, s.db)
}

// Reset rolls back every applied schema migration and applies them again,
// leaving an empty index at the current schema. Recorded lesson transitions
// are dropped with the log entries.
func (s *Index) Reset(ctx context.Context) error {
	m := migrations.NewManager(schemaMigrations...)
	for {
		current, err := m.CurrentVersion(ctx, s.db)
		if err != nil {
			return err
		}
		if current == 0 {
			break
		}
		if err := m.RollbackSQLite(ctx, s.db); err != nil {
			return err
		}
	}
	if err := m.ApplySQLite(ctx, s.db); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}
