// Package kv defines the key-value persistence contract the item store
// writes its document through.
package kv

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Get when the key holds no value
	ErrNotFound = errors.New("kv: key not found")
	// ErrQuotaExceeded is returned by Set when the write would exceed the
	// backend's storage quota
	ErrQuotaExceeded = errors.New("kv: quota exceeded")
)

// Backend is a string-keyed byte store. Set replaces the whole value in a
// single write.
type Backend interface {
	Get(key string) ([]byte, error)
	Set(key string, value []byte) error
	Remove(key string) error
}

// Change reports that the value under Key was written or removed
type Change struct {
	Key string
	At  time.Time
}

// Watcher is implemented by backends that can report writes, including
// writes made by other processes sharing the same storage. The returned
// channel is closed when ctx is done.
type Watcher interface {
	Watch(ctx context.Context, key string) (<-chan Change, error)
}

// QuotaError describes a rejected write. It matches ErrQuotaExceeded.
type QuotaError struct {
	Key   string
	Need  int64
	Limit int64
}

func (e *QuotaError) Error() string {
	return "kv: quota exceeded writing " + e.Key
}

func (e *QuotaError) Is(target error) bool {
	return target == ErrQuotaExceeded
}

// CheckQuota returns a *QuotaError when storing total bytes would go over
// limit. A limit of zero or less means unlimited.
func CheckQuota(key string, total, limit int64) error {
	if limit > 0 && total > limit {
		return &QuotaError{Key: key, Need: total, Limit: limit}
	}
	return nil
}
