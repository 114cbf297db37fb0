// Package storage persists finished audio clips and resolves the public
// URLs they are served from.
//
// An ObjectStore is a flat namespace of byte blobs addressed by
// forward-slash paths. Bucket layers a public base URL on top of a store so
// that uploads return a URL and fetches of such a URL go back through the
// store instead of the network.
package storage

import (
	"context"
)

// ObjectStore is a minimal interface for blob storage.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type ObjectStore interface {
	// Put stores data at path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte, contentType string) error

	// Get returns the object at path. If it does not exist, an error
	// wrapping os.ErrNotExist is returned.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object. Deleting a missing object returns nil.
	Delete(ctx context.Context, path string) error

	// Exists reports whether the object exists.
	Exists(ctx context.Context, path string) (bool, error)
}
