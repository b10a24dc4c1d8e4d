// Package repository holds the record-store contract shared by the
// Postgres and in-memory product stores.
package repository

import "errors"

// Store errors.
var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

// InsertOutcome is the non-error result of recording a share.
type InsertOutcome int

const (
	// ShareRecorded means a new (user, item) share row was created.
	ShareRecorded InsertOutcome = iota
	// ShareDuplicate means the (user, item) pair already existed; nothing was written.
	ShareDuplicate
)

func (o InsertOutcome) String() string {
	switch o {
	case ShareRecorded:
		return "recorded"
	case ShareDuplicate:
		return "duplicate_key"
	default:
		return "unknown"
	}
}
