package service

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound means no mapping exists for the requested short code.
	ErrNotFound = errors.New("Short URL not found")

	// ErrAllocationExhausted means every candidate code in one request collided.
	// The whole request can be retried later.
	ErrAllocationExhausted = errors.New("Unable to generate unique short code. Please try again.")
)

// ValidationError is a client error; nothing was read or written.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PersistenceError wraps a durable store failure on the request path.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func persistenceError(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}
