// Package history implements the bounded, insertion-ordered association
// store mapping event fingerprints to work-item ids.
package history

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"worklink/internal/model"
	"worklink/internal/storage"
)

const (
	// DefaultStorageKey is the key under which the serialized store is
	// kept in the persistence collaborator.
	DefaultStorageKey = "worklink-history"
	// DefaultMaxSize bounds the number of retained associations.
	DefaultMaxSize = 300
)

// Config tunes the store. Zero values fall back to the defaults above.
type Config struct {
	StorageKey string
	MaxSize    int
}

// Store holds the fingerprint → work-item-id associations. Insertion
// order is kept in an explicit key slice so that "oldest" is an O(1)
// lookup rather than a property of map iteration.
//
// The store is not safe for concurrent mutation; callers must serialize
// reconciliation runs against one Store instance.
type Store struct {
	storageKey string
	maxSize    int

	store  storage.Store
	logger *zap.Logger

	keys    []string // escaped fingerprints, oldest first
	entries map[string]string
}

// NewStore creates a Store over the given persistence collaborator.
func NewStore(st storage.Store, logger *zap.Logger, cfg Config) *Store {
	if cfg.StorageKey == "" {
		cfg.StorageKey = DefaultStorageKey
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultMaxSize
	}
	return &Store{
		storageKey: cfg.StorageKey,
		maxSize:    cfg.MaxSize,
		store:      st,
		logger:     logger,
		entries:    make(map[string]string),
	}
}

// escapeKey makes a fingerprint safe for the key=value line format.
func escapeKey(fingerprint string) string {
	return strings.ReplaceAll(fingerprint, "=", "%3D")
}

// unescapeKey restores a serialized key for external presentation.
func unescapeKey(key string) string {
	return strings.ReplaceAll(key, "%3D", "=")
}

// Load replaces the in-memory state with the persisted form. Read
// failures and malformed lines are logged and recovered from: a lost
// history only means events fall through to the next linking tier.
func (s *Store) Load(ctx context.Context) {
	s.keys = nil
	s.entries = make(map[string]string)

	blob, ok, err := s.store.Get(ctx, s.storageKey)
	if err != nil {
		s.logger.Warn("history load failed, starting empty", zap.Error(err))
		return
	}
	if !ok {
		s.logger.Debug("no persisted history found")
		return
	}

	for _, line := range strings.Split(blob, "\n") {
		if len(s.keys) >= s.maxSize {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			s.logger.Warn("skipping malformed history line", zap.String("line", line))
			continue
		}
		if _, exists := s.entries[parts[0]]; !exists {
			s.keys = append(s.keys, parts[0])
		}
		s.entries[parts[0]] = parts[1]
	}

	s.logger.Debug("history loaded", zap.Int("entries", len(s.keys)))
}

// Persist serializes the current entries back to storage. Write failures
// degrade persistence but never fail the caller.
func (s *Store) Persist(ctx context.Context) {
	lines := make([]string, 0, len(s.keys))
	for _, key := range s.keys {
		lines = append(lines, key+"="+s.entries[key])
	}
	if err := s.store.Set(ctx, s.storageKey, strings.Join(lines, "\n")); err != nil {
		s.logger.Error("history persist failed", zap.Error(err))
	}
}

// Lookup returns the work-item id previously associated with the event.
func (s *Store) Lookup(event model.Event) (string, bool) {
	id, ok := s.entries[escapeKey(event.Fingerprint())]
	return id, ok
}

// Record associates the event with a work-item id. Overwriting an
// existing fingerprint updates its value but keeps its insertion rank;
// a genuinely new fingerprint evicts the single oldest entry first when
// the store is at capacity.
func (s *Store) Record(event model.Event, workItemID string) {
	key := escapeKey(event.Fingerprint())

	if _, exists := s.entries[key]; exists {
		s.entries[key] = workItemID
		return
	}

	if len(s.keys) >= s.maxSize {
		oldest := s.keys[0]
		s.keys = s.keys[1:]
		s.logger.Debug("evicting oldest history entry",
			zap.String("key", unescapeKey(oldest)),
			zap.String("work_item_id", s.entries[oldest]),
		)
		delete(s.entries, oldest)
	}

	s.keys = append(s.keys, key)
	s.entries[key] = workItemID
}

// ReconcileAgainst removes every entry whose work-item id is not in the
// given set. This self-heals the store after work items are renamed or
// retired.
func (s *Store) ReconcileAgainst(validWorkItemIDs map[string]struct{}) {
	kept := s.keys[:0]
	for _, key := range s.keys {
		id := s.entries[key]
		if _, ok := validWorkItemIDs[id]; ok {
			kept = append(kept, key)
			continue
		}
		s.logger.Debug("purging stale history entry",
			zap.String("key", unescapeKey(key)),
			zap.String("work_item_id", id),
		)
		delete(s.entries, key)
	}
	s.keys = kept
}

// Len returns the number of retained associations.
func (s *Store) Len() int { return len(s.keys) }

// Entry is one association in presentation form (fingerprint unescaped).
type Entry struct {
	Fingerprint string
	WorkItemID  string
}

// Entries returns all associations, oldest first.
func (s *Store) Entries() []Entry {
	out := make([]Entry, 0, len(s.keys))
	for _, key := range s.keys {
		out = append(out, Entry{Fingerprint: unescapeKey(key), WorkItemID: s.entries[key]})
	}
	return out
}
