package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pbaille/listkeep/internal/kv"
)

//go:embed schema.sql
var schema string

// DefaultPollInterval is how often Watch checks for writes
const DefaultPollInterval = 500 * time.Millisecond

// Store is a key-value table in a SQLite database. Several processes may
// open the same file; Watch observes their writes through the rev column.
type Store struct {
	db    *sql.DB
	quota int64
	poll  time.Duration
	now   func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithQuota bounds the total bytes stored; zero means unlimited
func WithQuota(quota int64) Option {
	return func(s *Store) { s.quota = quota }
}

// WithPollInterval sets how often Watch checks for writes
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.poll = d
		}
	}
}

// New opens (and creates if needed) the database at dbPath
func New(dbPath string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Initialize schema
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &Store{db: db, poll: DefaultPollInterval, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Get(key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Set(key string, value []byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var others int64
	err = tx.QueryRow(
		"SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv WHERE key <> ?",
		key,
	).Scan(&others)
	if err != nil {
		return fmt.Errorf("measure usage: %w", err)
	}
	if err := kv.CheckQuota(key, others+int64(len(value)), s.quota); err != nil {
		return err
	}

	var rev int64
	err = tx.QueryRow("SELECT rev FROM kv_tombstones WHERE key = ?", key).Scan(&rev)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read tombstone: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO kv (key, value, rev, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			rev = kv.rev + 1,
			updated_at = excluded.updated_at
	`, key, value, rev+1, s.now().UTC())
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	if _, err := tx.Exec("DELETE FROM kv_tombstones WHERE key = ?", key); err != nil {
		return fmt.Errorf("clear tombstone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Remove deletes key, leaving a tombstone so watchers see the revision move
func (s *Store) Remove(key string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var rev int64
	err = tx.QueryRow("SELECT rev FROM kv WHERE key = ?", key).Scan(&rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read rev: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM kv WHERE key = ?", key); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	_, err = tx.Exec(
		"INSERT OR REPLACE INTO kv_tombstones (key, rev) VALUES (?, ?)",
		key, rev+1,
	)
	if err != nil {
		return fmt.Errorf("write tombstone: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// revision returns the current revision of key, live or removed
func (s *Store) revision(key string) (int64, error) {
	var rev int64
	err := s.db.QueryRow(`
		SELECT COALESCE(
			(SELECT rev FROM kv WHERE key = ?),
			(SELECT rev FROM kv_tombstones WHERE key = ?),
			0)
	`, key, key).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("read rev: %w", err)
	}
	return rev, nil
}

func (s *Store) Watch(ctx context.Context, key string) (<-chan kv.Change, error) {
	last, err := s.revision(key)
	if err != nil {
		return nil, err
	}

	ch := make(chan kv.Change, 1)
	go func() {
		defer close(ch)
		ticker := time.NewTicker(s.poll)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			rev, err := s.revision(key)
			if err != nil || rev == last {
				continue
			}
			last = rev

			select {
			case ch <- kv.Change{Key: key, At: s.now()}:
			default:
			}
		}
	}()
	return ch, nil
}
