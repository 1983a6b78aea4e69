package repository

import "errors"

// ErrNotFound indicates an entity was not located. Reads of rows the caller has
// no visibility into return the same error, so absence and denial are
// indistinguishable to the caller.
var ErrNotFound = errors.New("repository: not found")

// ErrInvalidArgument indicates a malformed or missing required field.
var ErrInvalidArgument = errors.New("repository: invalid argument")

// ErrConflict indicates a compare-and-swap update observed a stale version,
// or a uniqueness constraint rejected the write. Callers re-read and retry.
var ErrConflict = errors.New("repository: conflict")
