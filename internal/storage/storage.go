// Package storage keeps the registration catalog and reports disk usage of
// storage paths.
package storage

import (
	"context"
	"time"
)

// CatalogEntry records the file state a registration was computed from.
type CatalogEntry struct {
	Path         string
	SizeBytes    int64
	ModTime      time.Time
	Index        int
	Kind         string
	RegisteredAt time.Time
}

// Unchanged reports whether a file with the given size and modification time
// matches the catalogued state.
func (e *CatalogEntry) Unchanged(size int64, modTime time.Time) bool {
	return e.SizeBytes == size && e.ModTime.Equal(modTime)
}

// Catalog maps source paths to the most recent registration of that path.
type Catalog interface {
	Upsert(ctx context.Context, entry *CatalogEntry) error
	// Get returns the entry for path, or nil when the path is not catalogued.
	Get(ctx context.Context, path string) (*CatalogEntry, error)
	List(ctx context.Context, offset, limit int) ([]*CatalogEntry, error)
	Count(ctx context.Context) (int64, error)
	Clear(ctx context.Context) error
	Close() error
}
