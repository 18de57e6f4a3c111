package service

import "fmt"

// Typed failures returned synchronously by the cashbox service. Handlers match
// them with errors.As to pick the HTTP status; anything else is treated as an
// opaque internal error and surfaced as a 500.

// ValidationError reports malformed input: negative amounts, a missing
// required description, an unknown kind or method.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "validation: " + e.Reason }

func validationf(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError reports a uniqueness violation — a second open session on the
// same register.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Reason }

// InvalidStateError reports an operation that is not valid for the session's
// current state, e.g. recording a movement on a closed session.
type InvalidStateError struct {
	Reason string
}

func (e *InvalidStateError) Error() string { return "invalid state: " + e.Reason }

// NotFoundError reports an unknown session or operator id.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s not found", e.Entity, e.ID) }
