package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors used across all layers. Each maps onto one failure kind
// surfaced to the command transport; all of them abort the enclosing
// transaction with no partial commit.
var (
	// ErrNotFound: the resource never existed or is soft-deleted as of now.
	ErrNotFound = errors.New("not found")
	// ErrNotAuthorized: acting registrar does not sponsor the resource, or the
	// TLD is not on its allow-list. Superuser privilege bypasses this.
	ErrNotAuthorized = errors.New("not authorized")
	// ErrStatusProhibited: a blocking status value is present. Superuser may
	// override client-settable prohibitions but never server-side locks.
	ErrStatusProhibited = errors.New("status prohibits operation")
	// ErrTokenInvalid: allocation token missing, out of its promotion window,
	// already redeemed, or bound to a different domain/TLD/registrar.
	ErrTokenInvalid = errors.New("allocation token invalid")
	// ErrPolicyViolation: the mutation is legal input but violates registry
	// policy (schedule regression, max registration years, record limits).
	ErrPolicyViolation = errors.New("policy violation")
	// ErrExpirationMismatch: caller-supplied current expiration does not match
	// the domain's actual expiration. Distinct from ErrNotFound by contract.
	ErrExpirationMismatch = errors.New("current expiration mismatch")
	// ErrNotPendingTransfer: the command requires a pending transfer and the
	// domain has none.
	ErrNotPendingTransfer = errors.New("no pending transfer")
	ErrAlreadyExists      = errors.New("already exists")
	ErrConflict           = errors.New("conflict")
	ErrValidation         = errors.New("validation error")
)

// FieldError describes a validation error for a specific field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError contains a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation: %s: %s", e.Errors[0].Field, e.Errors[0].Message)
	}
	return fmt.Sprintf("validation: %d errors", len(e.Errors))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: message}},
	}
}

// NewValidationErrors creates a ValidationError from multiple field errors.
func NewValidationErrors(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}
