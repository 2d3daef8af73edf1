package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pbaille/listkeep/internal/kv"
)

func TestGetSetRemove(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0, 0)
	require.NoError(t, err)

	_, err = s.Get("k")
	assert.ErrorIs(t, err, kv.ErrNotFound)

	require.NoError(t, s.Set("k", []byte(`{"items":[]}`)))
	assert.FileExists(t, filepath.Join(dir, "k.json"))

	v, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(v))

	require.NoError(t, s.Remove("k"))
	require.NoError(t, s.Remove("k"))
	assert.NoFileExists(t, filepath.Join(dir, "k.json"))
}

func TestSetLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0, 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Set("k", []byte{'a' + byte(i)}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestInvalidKey(t *testing.T) {
	s, err := New(t.TempDir(), 0, 0)
	require.NoError(t, err)

	assert.Error(t, s.Set("../escape", []byte("x")))
	_, err = s.Get("a/b")
	assert.Error(t, err)
}

func TestQuota(t *testing.T) {
	s, err := New(t.TempDir(), 6, 0)
	require.NoError(t, err)

	require.NoError(t, s.Set("a", []byte("123")))
	require.NoError(t, s.Set("b", []byte("123")))
	assert.ErrorIs(t, s.Set("b", []byte("1234")), kv.ErrQuotaExceeded)

	v, err := s.Get("b")
	require.NoError(t, err)
	assert.Equal(t, "123", string(v))
}

func receive(t *testing.T, ch <-chan kv.Change) kv.Change {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
		return kv.Change{}
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	// an hour between polls, so only directory events can deliver in time
	watcher, err := New(dir, 0, time.Hour)
	require.NoError(t, err)
	writer, err := New(dir, 0, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := watcher.Watch(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, writer.Set("k", []byte("hello")))
	assert.Equal(t, "k", receive(t, ch).Key)

	require.NoError(t, writer.Set("k", []byte("again")))
	assert.Equal(t, "k", receive(t, ch).Key)

	require.NoError(t, writer.Remove("k"))
	assert.Equal(t, "k", receive(t, ch).Key)
}

func TestWatchIgnoresOtherKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := s.Watch(ctx, "k")
	require.NoError(t, err)

	require.NoError(t, s.Set("other", []byte("x")))
	select {
	case c := <-ch:
		t.Fatalf("unexpected change for %q", c.Key)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWatchStopsWithContext(t *testing.T) {
	s, err := New(t.TempDir(), 0, time.Hour)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.Watch(ctx, "k")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}

func TestPollFallback(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, 0, 10*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.poll(ctx, "k", filepath.Join(dir, "k.json"))

	require.NoError(t, s.Set("k", []byte("hello")))
	assert.Equal(t, "k", receive(t, ch).Key)

	require.NoError(t, s.Remove("k"))
	assert.Equal(t, "k", receive(t, ch).Key)
}
