package apperrors

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrTransport         = errors.New("transport failure")
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	ErrIdentityConflict  = errors.New("identity conflict")
	ErrSyncInProgress    = errors.New("sync already in progress")
)

// TransportError wraps a failure raised by a transport implementation.
type TransportError struct {
	Op     string
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Target == "" {
		return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// Transport builds a TransportError, returning nil for a nil err.
func Transport(op, target string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Target: target, Err: err}
}
