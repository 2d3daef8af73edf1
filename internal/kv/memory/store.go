package memory

import (
	"context"
	"sync"
	"time"

	"github.com/pbaille/listkeep/internal/kv"
)

// Store keeps values in process memory. It is shared by every store that
// holds it, which makes it a stand-in for several tabs over one storage.
type Store struct {
	mu       sync.RWMutex
	now      func() time.Time
	quota    int64
	size     int64
	values   map[string][]byte
	watchers map[string][]chan kv.Change
}

// New creates an empty store. quota bounds the total bytes held; zero
// means unlimited.
func New(quota int64) *Store {
	return &Store{
		now:      time.Now,
		quota:    quota,
		values:   make(map[string][]byte),
		watchers: make(map[string][]chan kv.Change),
	}
}

func (s *Store) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *Store) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.size - int64(len(s.values[key])) + int64(len(value))
	if err := kv.CheckQuota(key, total, s.quota); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)
	s.values[key] = v
	s.size = total
	s.notify(key)
	return nil
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.values[key]
	if !ok {
		return nil
	}
	delete(s.values, key)
	s.size -= int64(len(v))
	s.notify(key)
	return nil
}

// Size returns the number of bytes currently held
func (s *Store) Size() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// SetQuota changes the byte limit for subsequent writes
func (s *Store) SetQuota(quota int64) {
	s.mu.Lock()
	s.quota = quota
	s.mu.Unlock()
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan kv.Change, error) {
	ch := make(chan kv.Change, 1)

	s.mu.Lock()
	s.watchers[key] = append(s.watchers[key], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		defer s.mu.Unlock()
		list := s.watchers[key]
		for i := range list {
			if list[i] == ch {
				s.watchers[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch, nil
}

// notify must be called with mu held. A watcher that has not drained its
// previous change is not blocked on; one pending change is enough to make
// it reload.
func (s *Store) notify(key string) {
	c := kv.Change{Key: key, At: s.now()}
	for _, ch := range s.watchers[key] {
		select {
		case ch <- c:
		default:
		}
	}
}
