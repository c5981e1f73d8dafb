// Package shared contains common domain types and errors that are used across
// all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Progression errors
	ErrConfiguration      = errors.New("configuration error")
	ErrInvalidSessionKind = errors.New("invalid session kind")
	ErrMalformedHistory   = errors.New("malformed member history")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "grade", "attendance", "progression"
	Op      string // Operation that failed, e.g., "Next", "CreditValue"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Errorf builds a domain error with a formatted message.
func Errorf(domain, op string, kind error, format string, args ...any) *DomainError {
	return NewDomainError(domain, op, kind, fmt.Sprintf(format, args...))
}

// Member domain errors
var (
	ErrMemberNotFound      = NewDomainError("member", "Find", ErrNotFound, "member not found")
	ErrMemberAlreadyExists = NewDomainError("member", "Create", ErrAlreadyExists, "member already exists")
	ErrInvalidMemberID     = NewDomainError("member", "Validate", ErrInvalidID, "invalid member ID")
	ErrMemberNotActive     = NewDomainError("member", "CheckStatus", ErrInvalidState, "member is not active")
)

// Exam domain errors
var (
	ErrExamGradeMismatch = NewDomainError("exam", "Register", ErrStateTransition, "exam does not start from the member's current grade")
	ErrExamNotNextGrade  = NewDomainError("exam", "Register", ErrStateTransition, "exam target is not the next grade")
	ErrInvalidExamResult = NewDomainError("exam", "Validate", ErrInvalidInput, "exam result must be passed or failed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidSessionKind)
}

// IsStateConflict checks if the error rejects a state transition.
func IsStateConflict(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStateTransition)
}

// IsConfiguration checks if the error comes from an inconsistent catalog.
// Configuration errors are fatal and should abort startup.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidSessionKind checks if an attendance record used an unknown session kind.
func IsInvalidSessionKind(err error) bool {
	return errors.Is(err, ErrInvalidSessionKind)
}

// IsMalformedHistory checks if a member's history references unknown data.
func IsMalformedHistory(err error) bool {
	return errors.Is(err, ErrMalformedHistory)
}
