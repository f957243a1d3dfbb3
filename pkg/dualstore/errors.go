package dualstore

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a key is absent from the source that
	// served the request.
	ErrNotFound = errors.New("dualstore: not found")
	// ErrValidation matches every *ValidationError.
	ErrValidation = errors.New("dualstore: validation failed")
	// ErrRemoteUnavailable matches every *RemoteUnavailableError.
	ErrRemoteUnavailable = errors.New("dualstore: remote unavailable")

	errOffline = errors.New("no remote store configured")
)

// ValidationError reports malformed input to a create or update. It is
// raised before either store is touched.
type ValidationError struct {
	Field   string
	Message string
}

// Invalid builds a *ValidationError.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "dualstore: invalid input: " + e.Message
	}
	return fmt.Sprintf("dualstore: invalid %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// RemoteUnavailableError describes a failed remote attempt. Client methods
// never return it; it selects the local path and is logged.
type RemoteUnavailableError struct {
	Collection string
	Operation  string
	Err        error
}

func (e *RemoteUnavailableError) Error() string {
	return fmt.Sprintf("dualstore: %s %s: remote unavailable: %v", e.Collection, e.Operation, e.Err)
}

func (e *RemoteUnavailableError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrRemoteUnavailable) match.
func (e *RemoteUnavailableError) Is(target error) bool {
	return target == ErrRemoteUnavailable
}
