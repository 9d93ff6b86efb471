package repositories

import "errors"

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrInvalidID is returned when an id cannot be used by the backing store.
	ErrInvalidID = errors.New("invalid id")
	// ErrVersionConflict is returned by a conditional replace when the stored
	// version no longer matches the one the caller read.
	ErrVersionConflict = errors.New("version conflict")
)
