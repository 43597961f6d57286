package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	lenserr "github.com/hyperjump/medialens/pkg/errors"
)

// SQLiteCatalog implements Catalog using SQLite.
type SQLiteCatalog struct {
	db *sql.DB
}

// NewSQLiteCatalog opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to create catalog directory", lenserr.FieldPath(dir))
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to open catalog", lenserr.FieldPath(dbPath))
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to enable WAL")
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to initialize schema")
	}

	return &SQLiteCatalog{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS registrations (
		path TEXT PRIMARY KEY,
		size_bytes INTEGER NOT NULL,
		mod_time_ns INTEGER NOT NULL,
		entry_index INTEGER NOT NULL,
		kind TEXT NOT NULL,
		registered_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_registrations_entry_index ON registrations(entry_index);
	`
	_, err := db.Exec(schema)
	return err
}

// Upsert stores entry, replacing any previous entry for the same path.
func (s *SQLiteCatalog) Upsert(ctx context.Context, entry *CatalogEntry) error {
	if entry.RegisteredAt.IsZero() {
		entry.RegisteredAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO registrations (path, size_bytes, mod_time_ns, entry_index, kind, registered_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		   size_bytes = excluded.size_bytes,
		   mod_time_ns = excluded.mod_time_ns,
		   entry_index = excluded.entry_index,
		   kind = excluded.kind,
		   registered_at = excluded.registered_at`,
		entry.Path, entry.SizeBytes, entry.ModTime.UnixNano(), entry.Index, entry.Kind, entry.RegisteredAt,
	)
	if err != nil {
		return lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to upsert catalog entry", lenserr.FieldPath(entry.Path))
	}
	return nil
}

// Get returns the entry for path, or nil if there is none.
func (s *SQLiteCatalog) Get(ctx context.Context, path string) (*CatalogEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT path, size_bytes, mod_time_ns, entry_index, kind, registered_at
		 FROM registrations WHERE path = ?`, path)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to read catalog entry", lenserr.FieldPath(path))
	}
	return e, nil
}

// List returns entries ordered by index with offset and limit.
func (s *SQLiteCatalog) List(ctx context.Context, offset, limit int) ([]*CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT path, size_bytes, mod_time_ns, entry_index, kind, registered_at
		 FROM registrations ORDER BY entry_index ASC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to list catalog")
	}
	defer rows.Close()

	var entries []*CatalogEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to scan catalog entry")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Count returns the number of catalogued paths.
func (s *SQLiteCatalog) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM registrations`).Scan(&n); err != nil {
		return 0, lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to count catalog")
	}
	return n, nil
}

// Clear removes every entry.
func (s *SQLiteCatalog) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM registrations`); err != nil {
		return lenserr.Wrap(err, lenserr.CodeCatalogFailure, "failed to clear catalog")
	}
	return nil
}

// Close closes the database.
func (s *SQLiteCatalog) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*CatalogEntry, error) {
	var e CatalogEntry
	var modNs int64
	if err := row.Scan(&e.Path, &e.SizeBytes, &modNs, &e.Index, &e.Kind, &e.RegisteredAt); err != nil {
		return nil, err
	}
	e.ModTime = time.Unix(0, modNs)
	return &e, nil
}
