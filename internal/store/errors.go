package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrIdempotencyConflict = errors.New("idempotency key conflict")
	ErrPatientOverlap      = errors.New("patient already booked in this window")
	ErrDoctorOverlap       = errors.New("doctor already booked in this window")
	ErrConcurrentUpdate    = errors.New("appointment changed concurrently")
)

// PersistenceError reports a transient store failure that outlasted the
// store's own retries. Callers may retry the whole operation later.
type PersistenceError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
