package storage

import (
	"context"
	"errors"
)

// Common errors
var (
	ErrNotFound = errors.New("storage: key not found")
	ErrClosed   = errors.New("storage: store closed")
)

// Store is a key-scoped blob store.
//
// Room snapshots live under "rooms/{roomId}" and per-instance state
// under "instance/{roomKey}/{name}". Every Put is a full replace of the
// value stored under the key; callers never observe a partial write.
//
// Implementations must be safe for concurrent use. Operations on
// different keys must not block each other beyond what the backend
// itself imposes.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put replaces the value stored under key.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys that start with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases the backend.
	Close() error
}

// InstanceKey returns the storage key of a per-instance state entry.
func InstanceKey(roomKey, name string) string {
	return "instance/" + roomKey + "/" + name
}
