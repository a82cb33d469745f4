package configstore

import (
	"errors"
	"fmt"
)

// Sentinel errors mapped to HTTP status codes by the handler.
var (
	ErrMalformedInput = errors.New("malformed input")
	ErrValidation     = errors.New("validation failure")
	ErrNotFound       = errors.New("not found")
	ErrIO             = errors.New("io failure")
)

// ValidationError describes why a document was rejected.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
