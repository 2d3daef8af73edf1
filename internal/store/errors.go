package store

import "errors"

var (
	// ErrInvalidDocument rejects a Save of a document without an items list
	ErrInvalidDocument = errors.New("document has no items list")
	// ErrEmptyText is returned when an item's text is empty after sanitizing
	ErrEmptyText = errors.New("item text is empty")
	// ErrItemNotFound is returned when no item has the requested id
	ErrItemNotFound = errors.New("item not found")
	// ErrInvalidImport is returned when imported text is not a document
	ErrInvalidImport = errors.New("invalid import data")
	// ErrWatchUnsupported is returned by Mirror.Run when the backend cannot
	// report changes
	ErrWatchUnsupported = errors.New("backend does not report changes")
)
