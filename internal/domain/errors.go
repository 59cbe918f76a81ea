package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrSourceUnavailable indicates the content source could not be reached or refused the credentials.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrStoreWrite indicates the vector store could not be written or flushed.
	ErrStoreWrite = errors.New("store write failed")

	// ErrStoreNotFound indicates the location holds no valid store.
	ErrStoreNotFound = errors.New("store not found")

	// ErrDimensionMismatch indicates the embedder does not produce vectors of the stored dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidConfig indicates a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RemovalWarning records a failed removal of a previous store location.
// It is logged and reported, never returned as a rebuild error.
type RemovalWarning struct {
	Path string
	Err  error
}

func (w *RemovalWarning) Error() string {
	return fmt.Sprintf("stale store location %s not removed: %v", w.Path, w.Err)
}

func (w *RemovalWarning) Unwrap() error {
	return w.Err
}
