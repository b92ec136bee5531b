// Package util provides logging, the error taxonomy shared by every
// reconciliation stage, and value-domain validators.
package util

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors, one per failure kind. Typed errors below unwrap to these.
var (
	ErrValidationFailed   = errors.New("validation failed")
	ErrPreconditionFailed = errors.New("precondition not met")
	ErrImmutableField     = errors.New("immutable field changed")
	ErrMissingRequired    = errors.New("required field missing")
	ErrRemoteFailure      = errors.New("controller operation failed")
	ErrTimeoutExceeded    = errors.New("timeout exceeded")
	ErrVerificationFailed = errors.New("verification failed")
	ErrVersionMismatch    = errors.New("controller version not supported")
	ErrLocked             = errors.New("fabric site locked by another run")
)

// PreconditionError represents a failed precondition check with context
type PreconditionError struct {
	Operation    string
	Resource     string
	Precondition string
	Details      string
}

func (e *PreconditionError) Error() string {
	msg := fmt.Sprintf("precondition failed for %s on %s: %s", e.Operation, e.Resource, e.Precondition)
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionFailed
}

// NewPreconditionError creates a new precondition error
func NewPreconditionError(operation, resource, precondition, details string) *PreconditionError {
	return &PreconditionError{
		Operation:    operation,
		Resource:     resource,
		Precondition: precondition,
		Details:      details,
	}
}

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// Check records err's message with a prefix when err is non-nil.
func (v *ValidationBuilder) Check(prefix string, err error) *ValidationBuilder {
	if err != nil {
		v.errors = append(v.errors, prefix+": "+err.Error())
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// ImmutableFieldError reports an attempt to change a field the controller
// does not allow to change after creation.
type ImmutableFieldError struct {
	Resource string
	Field    string
	Have     any
	Want     any
}

func (e *ImmutableFieldError) Error() string {
	return fmt.Sprintf("%s: %s cannot be changed after creation (have %v, want %v)",
		e.Resource, e.Field, e.Have, e.Want)
}

func (e *ImmutableFieldError) Unwrap() error {
	return ErrImmutableField
}

// NewImmutableFieldError creates an immutable field error
func NewImmutableFieldError(resource, field string, have, want any) *ImmutableFieldError {
	return &ImmutableFieldError{Resource: resource, Field: field, Have: have, Want: want}
}

// MissingRequiredError reports a field required on create that is absent
// from both the input and the observed state.
type MissingRequiredError struct {
	Resource string
	Field    string
}

func (e *MissingRequiredError) Error() string {
	return fmt.Sprintf("%s: %s is required", e.Resource, e.Field)
}

func (e *MissingRequiredError) Unwrap() error {
	return ErrMissingRequired
}

// NewMissingRequiredError creates a missing required field error
func NewMissingRequiredError(resource, field string) *MissingRequiredError {
	return &MissingRequiredError{Resource: resource, Field: field}
}

// RemoteError carries a controller failure: a non-2xx HTTP response or a
// task that finished in FAILURE. Payload is the controller's verbatim body.
type RemoteError struct {
	Operation string
	TaskID    string
	Status    string
	Payload   string
}

func (e *RemoteError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Operation)
	if e.TaskID != "" {
		sb.WriteString(" (task " + e.TaskID + ")")
	}
	sb.WriteString(" failed")
	if e.Status != "" {
		sb.WriteString(": " + e.Status)
	}
	if e.Payload != "" {
		sb.WriteString(": " + e.Payload)
	}
	return sb.String()
}

func (e *RemoteError) Unwrap() error {
	return ErrRemoteFailure
}

// TimeoutError reports a pagination or task-poll loop that ran past its limit.
type TimeoutError struct {
	Operation string
	Elapsed   time.Duration
	Limit     time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %s (limit %s)",
		e.Operation, e.Elapsed.Round(time.Millisecond), e.Limit)
}

func (e *TimeoutError) Unwrap() error {
	return ErrTimeoutExceeded
}

// VerificationError reports divergence found when re-observing after apply.
type VerificationError struct {
	Resource string
	Path     string
	Have     any
	Want     any
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("%s: %s diverges after apply (have %v, want %v)",
		e.Resource, e.Path, e.Have, e.Want)
}

func (e *VerificationError) Unwrap() error {
	return ErrVerificationFailed
}
