package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pbaille/listkeep/internal/kv"
)

// JSON-backed storage. One file per key, human-readable, portable.
// Writes go to a temp file that is renamed over the old one, so readers
// never see a half-written document.

const ext = ".json"

// Store keeps each key in <dir>/<key>.json
type Store struct {
	dir       string
	quota     int64
	pollEvery time.Duration
}

// New creates the directory if needed. quota bounds the total bytes of all
// keys in dir; zero means unlimited. poll is only used when the platform
// cannot watch the directory.
func New(dir string, quota int64, poll time.Duration) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if poll <= 0 {
		poll = 500 * time.Millisecond
	}
	return &Store{dir: dir, quota: quota, pollEvery: poll}, nil
}

func (s *Store) path(key string) (string, error) {
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.dir, key+ext), nil
}

func (s *Store) Get(key string) ([]byte, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, kv.ErrNotFound
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return b, nil
}

func (s *Store) Set(key string, value []byte) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if s.quota > 0 {
		others, err := s.usage(p)
		if err != nil {
			return err
		}
		if err := kv.CheckQuota(key, others+int64(len(value)), s.quota); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(s.dir, "."+key+"-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// usage sums the size of every key file except skip
func (s *Store) usage(skip string) (int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read dir: %w", err)
	}
	var total int64
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ext) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if filepath.Join(s.dir, e.Name()) == skip {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// Watch reports writes and removals of key. It follows the directory
// rather than the file since every Set replaces the file. When no file
// watcher can be started it falls back to polling the file's size and
// modification time.
func (s *Store) Watch(ctx context.Context, key string) (<-chan kv.Change, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err == nil {
		if err = w.Add(s.dir); err != nil {
			w.Close()
		}
	}
	if err != nil {
		return s.poll(ctx, key, p), nil
	}
	return s.follow(ctx, w, key, p), nil
}

const changeOps = fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename

func (s *Store) follow(ctx context.Context, w *fsnotify.Watcher, key, p string) <-chan kv.Change {
	ch := make(chan kv.Change, 1)
	go func() {
		defer close(ch)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != p || ev.Op&changeOps == 0 {
					continue
				}
				select {
				case ch <- kv.Change{Key: key, At: time.Now()}:
				default:
				}
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return ch
}

type stamp struct {
	exists  bool
	size    int64
	modTime time.Time
}

func (a stamp) same(b stamp) bool {
	return a.exists == b.exists && a.size == b.size && a.modTime.Equal(b.modTime)
}

func (s *Store) stat(p string) stamp {
	info, err := os.Stat(p)
	if err != nil {
		return stamp{}
	}
	return stamp{exists: true, size: info.Size(), modTime: info.ModTime()}
}

func (s *Store) poll(ctx context.Context, key, p string) <-chan kv.Change {
	last := s.stat(p)

	ch := make(chan kv.Change, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.pollEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cur := s.stat(p)
			if cur.same(last) {
				continue
			}
			last = cur

			select {
			case ch <- kv.Change{Key: key, At: time.Now()}:
			default:
			}
		}
	}()
	return ch
}
