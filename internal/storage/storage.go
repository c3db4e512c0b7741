// Package storage defines the durable key/value collaborator used by the
// history store, plus its SQLite-backed and in-memory implementations.
package storage

import "context"

// Store is an arbitrary durable key/value store. The history store is the
// only core component that talks to it directly, and it stores a single
// serialized blob per key.
type Store interface {
	// Get returns the value for key. The second result is false when the
	// key has never been set.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes the value for key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
}
