package services

import (
	"errors"
	"fmt"
	"strings"

	"proveit/store"
)

var (
	ErrValidation            = errors.New("invalid request")
	ErrNotFound              = errors.New("not found")
	ErrAlreadyCompletedToday = errors.New("goal already completed today")
	ErrPersistence           = errors.New("persistence failure")
)

// PersistenceError reports a failed store operation. Callers may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }

func persistErr(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeErr maps store.ErrNotFound to ErrNotFound and wraps everything else
// as a PersistenceError.
func storeErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return persistErr(op, err)
}

const maxIDLength = 128

// validateID rejects identifiers that could address a different document
// field when interpolated into an update path.
func validateID(kind, id string) error {
	switch {
	case id == "":
		return invalid("%s is required", kind)
	case len(id) > maxIDLength:
		return invalid("%s is too long", kind)
	case strings.ContainsAny(id, ".$"):
		return invalid("%s contains illegal characters", kind)
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
