// Package versions tracks per-key invalidation versions. A writer that wants
// every loader to stop serving a record bumps its key; records stamped with
// an older version are then treated as absent.
package versions

import (
	"context"
	"time"
)

// Store abstracts where versions live.
// Use Local for a single process or Redis to share versions across replicas.
type Store interface {
	// Current returns the current version; missing => 0.
	Current(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new version.
	Bump(ctx context.Context, key string) (uint64, error)
	// Prune drops metadata untouched for longer than retention (no-op for Redis).
	Prune(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
