package storage

import "errors"

var (
	// ErrNotFound means no run, trade, bar or assessment matched the lookup.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey means the record's key (run id, trade id, bar or
	// assessment timestamp) is already stored. Records are never updated, so
	// callers replaying an identical run treat this as already persisted.
	ErrDuplicateKey = errors.New("duplicate key: record already stored")

	// ErrInvalidInput means a record failed validation before it was written.
	ErrInvalidInput = errors.New("invalid input")
)
