package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pbaille/listkeep/internal/domain"
	"github.com/pbaille/listkeep/internal/kv"
)

const (
	// DefaultKey is the backend key the document lives under
	DefaultKey = "listkeep_data"

	// Quota recovery prunes documents holding more than RecoveryThreshold
	// items down to the RecoveryKeep most recently created ones.
	RecoveryThreshold = 100
	RecoveryKeep      = 50

	probeKey = "__listkeep_probe__"
)

// Store reads and writes the whole list document through a kv.Backend.
// Every operation loads the full document, changes it in memory and saves
// it back in one write. Nothing is locked: two stores sharing a backend
// race and the last write wins.
type Store struct {
	backend kv.Backend
	key     string
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string
}

// Option configures a Store
type Option func(*Store)

// WithKey sets the backend key of the document
func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

// WithLogger sets the logger persistence failures are reported to
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithClock replaces the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the item id generator
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// New creates a Store over backend
func New(backend kv.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		log:     zerolog.Nop(),
		now:     func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the backend key of the document
func (s *Store) Key() string {
	return s.key
}

// Load returns the stored document. A missing, unreadable or malformed
// document yields a fresh default one. Invalid items are dropped.
func (s *Store) Load() *domain.Document {
	b, err := s.backend.Get(s.key)
	if err != nil {
		if !errors.Is(err, kv.ErrNotFound) {
			s.log.Error().Err(err).Str("key", s.key).Str("op", "load").Msg("read failed")
		}
		return domain.NewDocument(s.now())
	}

	doc, err := s.decodeDocument(b)
	if err != nil {
		s.log.Warn().Err(err).Str("key", s.key).Msg("stored document unusable, using default")
		return domain.NewDocument(s.now())
	}
	return doc
}

// Save stamps doc with the current time and schema version and writes it.
// A quota failure triggers recovery before the error is returned.
func (s *Store) Save(doc *domain.Document) error {
	if doc == nil || doc.Items == nil {
		return ErrInvalidDocument
	}

	doc.LastUpdated = s.now()
	doc.Version = domain.SchemaVersion

	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}

	if err := s.backend.Set(s.key, b); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Str("op", "save").Int("items", len(doc.Items)).Msg("write failed")
		if errors.Is(err, kv.ErrQuotaExceeded) {
			s.recoverQuota()
		}
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// recoverQuota prunes the stored document to its most recent items and
// writes it directly. Failures are only logged. Items outside the kept set
// are lost, including one a failed save was adding.
func (s *Store) recoverQuota() {
	doc := s.Load()
	before := len(doc.Items)
	if before <= RecoveryThreshold {
		return
	}

	doc.Items = mostRecent(doc.Items, RecoveryKeep)

	b, err := json.Marshal(doc)
	if err != nil {
		s.log.Error().Err(err).Msg("quota recovery: marshal failed")
		return
	}
	if err := s.backend.Set(s.key, b); err != nil {
		s.log.Error().Err(err).Str("key", s.key).Msg("quota recovery: write failed")
		return
	}
	s.log.Warn().Str("key", s.key).Int("before", before).Int("after", len(doc.Items)).Msg("quota exceeded, pruned old items")
}

// mostRecent returns the n items with the latest CreatedAt, keeping their
// original order
func mostRecent(items []domain.Item, n int) []domain.Item {
	if len(items) <= n {
		return items
	}

	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].CreatedAt.After(items[idx[b]].CreatedAt)
	})

	keep := idx[:n]
	sort.Ints(keep)

	out := make([]domain.Item, 0, n)
	for _, i := range keep {
		out = append(out, items[i])
	}
	return out
}

// IsStorageAvailable reports whether the backend accepts a write
func (s *Store) IsStorageAvailable() bool {
	if err := s.backend.Set(probeKey, []byte("probe")); err != nil {
		s.log.Debug().Err(err).Msg("storage probe failed")
		return false
	}
	if err := s.backend.Remove(probeKey); err != nil {
		s.log.Debug().Err(err).Msg("storage probe cleanup failed")
		return false
	}
	return true
}
