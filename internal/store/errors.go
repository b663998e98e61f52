package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a guarded write touched zero rows because
// the row was no longer in the expected state. Callers translate it into
// the operation-specific conflict.
var ErrConflict = errors.New("state conflict")
