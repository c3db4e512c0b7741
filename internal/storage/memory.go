package storage

import "context"

// MemoryStore is an in-memory Store for tests and for runs that should
// not persist anything.
type MemoryStore struct {
	values map[string]string

	// FailReads / FailWrites make the store return the given error, for
	// exercising degraded-persistence paths in tests.
	FailReads  error
	FailWrites error
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	if m.FailReads != nil {
		return "", false, m.FailReads
	}
	v, ok := m.values[key]
	return v, ok, nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.values[key] = value
	return nil
}
