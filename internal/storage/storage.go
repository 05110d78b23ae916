// Package storage implements the pluggable cache backends behind
// cachemgr.Manager: an in-memory map, a Postgres-backed table with a
// TTL sweep, an S3/MinIO object store, and a no-op null backend.
package storage

import "context"

// Backend is the storage device a cachemgr.Manager delegates to. Every
// implementation must be safe for concurrent use.
type Backend interface {
	// Retrieve returns the stored value for key, or nil if absent.
	Retrieve(ctx context.Context, key string) (map[string]any, error)
	// RetrieveAll returns every stored record keyed by its cache key.
	RetrieveAll(ctx context.Context) (map[string]map[string]any, error)
	// RetrieveKeys returns every key currently in the backend.
	RetrieveKeys(ctx context.Context) ([]string, error)
	// Update stores data under key, overwriting any existing record.
	Update(ctx context.Context, key string, data map[string]any) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteAll clears every record from the backend.
	DeleteAll(ctx context.Context) error
	// Verify reports whether key exists in the backend.
	Verify(ctx context.Context, key string) (bool, error)
	// IsAvailable reports whether the backend is currently reachable.
	IsAvailable(ctx context.Context) bool
}
