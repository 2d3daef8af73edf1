package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/pbaille/listkeep/internal/domain"
	"github.com/pbaille/listkeep/internal/kv"
)

// UnwatchedTTL is how long a Mirror over a backend that cannot report
// changes keeps its copy before reloading.
const UnwatchedTTL = 2 * time.Second

// Mirror keeps a read copy of the document for a long-lived caller (the
// HTTP server, a watching terminal). When the backend reports a write to
// the key the copy is thrown away whole and reloaded on next use; it is
// never merged.
type Mirror struct {
	store *Store
	cache *cache.Cache
	ttl   time.Duration

	mu   sync.Mutex
	gen  uint64
	subs map[int]chan struct{}
	next int
}

// MirrorOption configures a Mirror
type MirrorOption func(*Mirror)

// WithTTL bounds how long a loaded copy is served. Zero or less keeps it
// until invalidated.
func WithTTL(d time.Duration) MirrorOption {
	return func(m *Mirror) {
		m.ttl = d
	}
}

// NewMirror creates a Mirror over s. Over a backend without change
// notification the copy expires after UnwatchedTTL.
func NewMirror(s *Store, opts ...MirrorOption) *Mirror {
	m := &Mirror{
		store: s,
		ttl:   cache.NoExpiration,
		subs:  make(map[int]chan struct{}),
	}
	if _, ok := s.backend.(kv.Watcher); !ok {
		m.ttl = UnwatchedTTL
	}
	for _, opt := range opts {
		opt(m)
	}
	var cleanup time.Duration
	if m.ttl <= 0 {
		m.ttl = cache.NoExpiration
	} else {
		cleanup = time.Minute
	}
	m.cache = cache.New(m.ttl, cleanup)
	return m
}

// Document returns a copy of the mirrored document, loading it if needed.
// A load that raced with Invalidate is returned but not cached.
func (m *Mirror) Document() *domain.Document {
	if v, ok := m.cache.Get(m.store.key); ok {
		return v.(*domain.Document).Clone()
	}

	m.mu.Lock()
	gen := m.gen
	m.mu.Unlock()

	doc := m.store.Load()

	m.mu.Lock()
	if gen == m.gen {
		m.cache.Set(m.store.key, doc, m.ttl)
	}
	m.mu.Unlock()
	return doc.Clone()
}

// Invalidate drops the mirrored copy
func (m *Mirror) Invalidate() {
	m.mu.Lock()
	m.gen++
	m.cache.Delete(m.store.key)
	m.mu.Unlock()
}

// Subscribe returns a channel that receives a value after every reload
// trigger, and a func to stop receiving.
func (m *Mirror) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	m.mu.Lock()
	id := m.next
	m.next++
	m.subs[id] = ch
	m.mu.Unlock()

	return ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if _, ok := m.subs[id]; ok {
			delete(m.subs, id)
			close(ch)
		}
	}
}

func (m *Mirror) broadcast() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Run follows backend changes until ctx is done. It returns
// ErrWatchUnsupported when the backend cannot report changes.
func (m *Mirror) Run(ctx context.Context) error {
	w, ok := m.store.backend.(kv.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}

	changes, err := w.Watch(ctx, m.store.key)
	if err != nil {
		return fmt.Errorf("watch %s: %w", m.store.key, err)
	}

	for c := range changes {
		if c.Key != m.store.key {
			continue
		}
		m.Invalidate()
		m.store.log.Debug().Str("key", c.Key).Time("at", c.At).Msg("document changed, reloading")
		m.broadcast()
	}
	return ctx.Err()
}
