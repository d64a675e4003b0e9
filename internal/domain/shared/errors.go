// Package shared contains common domain types, errors, and events
// that are used across all domain packages. This package has zero external dependencies.
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
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors
	ErrInvalidState     = errors.New("invalid state")
	ErrStateTransition  = errors.New("invalid state transition")
	ErrAlreadyProcessed = errors.New("already processed")
	ErrNotEligibleState = errors.New("precondition not satisfied")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// External service errors
	ErrExternalService    = errors.New("external service error")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "progress", "reward", "lesson"
	Op      string // Operation that failed, e.g., "Claim", "Credit"
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

// Learner domain errors
var (
	ErrLearnerNotFound      = NewDomainError("learner", "Find", ErrNotFound, "learner not found")
	ErrLearnerAlreadyExists = NewDomainError("learner", "Create", ErrAlreadyExists, "learner already exists")
	ErrInvalidLearnerID     = NewDomainError("learner", "Validate", ErrInvalidID, "invalid learner ID")
	ErrInvalidXPDelta       = NewDomainError("learner", "Credit", ErrInvalidInput, "xp delta must be positive")
)

// Progress domain errors
var (
	ErrSessionNotFound   = NewDomainError("progress", "Find", ErrNotFound, "session not found")
	ErrUnitNotFound      = NewDomainError("progress", "Find", ErrNotFound, "unit not found")
	ErrSnapshotNotFound  = NewDomainError("progress", "FindSnapshot", ErrNotFound, "progress snapshot not found")
	ErrInvalidPercentage = NewDomainError("progress", "Validate", ErrValueOutOfRange, "percentage must be between 0 and 100")
)

// Reward domain errors
var (
	// ErrAlreadyClaimed is terminal: the claim row exists, which means XP
	// was already credited exactly once. Callers must not retry the credit step.
	ErrAlreadyClaimed = NewDomainError("reward", "Claim", ErrAlreadyProcessed, "reward already claimed for this session")

	// ErrNotEligible is terminal for the current completion state.
	ErrNotEligible = NewDomainError("reward", "Claim", ErrNotEligibleState, "session is not complete with required quality")

	ErrClaimNotFound = NewDomainError("reward", "Find", ErrNotFound, "reward claim not found")
)

// Lesson domain errors
var (
	ErrLessonNotFound         = NewDomainError("lesson", "Find", ErrNotFound, "lesson not found")
	ErrLessonAlreadyExists    = NewDomainError("lesson", "Create", ErrAlreadyExists, "lesson already exists")
	ErrLessonRecordNotFound   = NewDomainError("lesson", "FindRecord", ErrNotFound, "lesson record not found")
	ErrInvalidAttendance      = NewDomainError("lesson", "Validate", ErrInvalidInput, "invalid attendance status")
	ErrInvalidRating          = NewDomainError("lesson", "Validate", ErrInvalidInput, "invalid rating value")
	ErrInvalidBonusMultiplier = NewDomainError("lesson", "Validate", ErrValueOutOfRange, "bonus multiplier must be positive")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsTerminal reports whether the error is a final business outcome that
// must not be retried (as opposed to a transient store failure).
func IsTerminal(err error) bool {
	return errors.Is(err, ErrAlreadyProcessed) ||
		errors.Is(err, ErrNotEligibleState) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidInput)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
