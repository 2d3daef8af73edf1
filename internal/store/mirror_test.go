package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/listkeep/internal/kv"
	"github.com/pbaille/listkeep/internal/kv/memory"
)

type plainBackend struct{ kv.Backend }

// gatedBackend holds the next Get after it has read its value until the
// gate is opened.
type gatedBackend struct {
	*memory.Store

	mu      sync.Mutex
	reached chan struct{}
	gate    chan struct{}
}

func (b *gatedBackend) holdNextGet() (reached <-chan struct{}, open func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reached = make(chan struct{})
	b.gate = make(chan struct{})
	gate := b.gate
	return b.reached, func() { close(gate) }
}

func (b *gatedBackend) Get(key string) ([]byte, error) {
	v, err := b.Store.Get(key)

	b.mu.Lock()
	reached, gate := b.reached, b.gate
	b.reached, b.gate = nil, nil
	b.mu.Unlock()

	if gate != nil {
		close(reached)
		<-gate
	}
	return v, err
}

func TestMirrorReloadsOnChange(t *testing.T) {
	backend := memory.New(0)
	tab := New(backend)
	other := New(backend)

	m := NewMirror(tab)
	assert.Empty(t, m.Document().Items)

	changed, stop := m.Subscribe()
	defer stop()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	// Run registers its watcher asynchronously
	require.Eventually(t, func() bool {
		if _, err := other.AddItem("from elsewhere"); err != nil {
			return false
		}
		select {
		case <-changed:
			return true
		case <-time.After(10 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 20*time.Millisecond)

	doc := m.Document()
	require.NotEmpty(t, doc.Items)
	assert.Equal(t, "from elsewhere", doc.Items[0].Text)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("mirror did not stop")
	}
}

func TestMirrorDocumentIsACopy(t *testing.T) {
	s := New(memory.New(0))
	_, err := s.AddItem("a")
	require.NoError(t, err)

	m := NewMirror(s)
	doc := m.Document()
	doc.Items[0].Text = "changed"

	assert.Equal(t, "a", m.Document().Items[0].Text)
}

func TestMirrorWithoutWatcher(t *testing.T) {
	s := New(plainBackend{memory.New(0)})
	m := NewMirror(s)

	assert.ErrorIs(t, m.Run(context.Background()), ErrWatchUnsupported)
}

func TestMirrorDoesNotCacheLoadOlderThanInvalidate(t *testing.T) {
	backend := &gatedBackend{Store: memory.New(0)}
	s := New(backend)
	m := NewMirror(s)

	reached, open := backend.holdNextGet()
	read := make(chan int, 1)
	go func() { read <- len(m.Document().Items) }()
	<-reached

	_, err := s.AddItem("written meanwhile")
	require.NoError(t, err)
	m.Invalidate()
	open()

	// the slow reader still sees what it read
	assert.Equal(t, 0, <-read)

	assert.Len(t, s.Load().Items, 1)
	assert.Len(t, m.Document().Items, 1)
}

func TestMirrorExpiresWithoutWatcher(t *testing.T) {
	backend := plainBackend{memory.New(0)}
	m := NewMirror(New(backend), WithTTL(20*time.Millisecond))
	other := New(backend)

	assert.Empty(t, m.Document().Items)

	_, err := other.AddItem("from elsewhere")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(m.Document().Items) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMirrorKeepsCopyUntilInvalidated(t *testing.T) {
	backend := memory.New(0)
	m := NewMirror(New(backend))
	other := New(backend)

	assert.Empty(t, m.Document().Items)

	_, err := other.AddItem("from elsewhere")
	require.NoError(t, err)
	assert.Empty(t, m.Document().Items)

	m.Invalidate()
	assert.Len(t, m.Document().Items, 1)
}
