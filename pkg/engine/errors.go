package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of an error for retry and recovery logic.
type ErrorClass string

const (
	// ErrorClassTransient indicates a temporary failure that may succeed on retry.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassThrottled indicates rate limiting by the identity system.
	ErrorClassThrottled ErrorClass = "throttled"

	// ErrorClassConflict indicates a resource state conflict, such as creating
	// a resource that already exists.
	ErrorClassConflict ErrorClass = "conflict"

	// ErrorClassPermanent indicates a non-recoverable error.
	ErrorClassPermanent ErrorClass = "permanent"
)

// Common error codes.
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeProviderFailed   = "PROVIDER_FAILED"
	ErrCodeStateStoreFailed = "STATE_STORE_FAILED"
	ErrCodeInternal         = "INTERNAL_ERROR"
)

// Port operation names attached to errors and spans.
const (
	OperationDescribe = "describe"
	OperationCreate   = "create"
	OperationUpdate   = "update"
	OperationDelete   = "delete"
	OperationRead     = "state.read"
	OperationWrite    = "state.write"
	OperationRemove   = "state.remove"
)

// EngineError represents a classified error with context.
// nolint:revive // EngineError is intentionally named to distinguish from standard errors
type EngineError struct {
	// Class is the error classification.
	Class ErrorClass `json:"class"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// ActionID is the runbook action that caused the error, if applicable.
	ActionID string `json:"actionId,omitempty"`

	// Operation is the port or store operation being performed.
	Operation string `json:"operation,omitempty"`

	// Err is the underlying error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Class, e.Message)
	switch {
	case e.ActionID != "" && e.Operation != "":
		fmt.Fprintf(&b, " (action=%s, operation=%s)", e.ActionID, e.Operation)
	case e.ActionID != "":
		fmt.Fprintf(&b, " (action=%s)", e.ActionID)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *EngineError) Unwrap() error {
	return e.Err
}

// Is matches another EngineError with the same class and code.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	return e.Class == t.Class && e.Code == t.Code
}

// NewTransientError creates a new transient error.
func NewTransientError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassTransient, Message: message, Err: err}
}

// NewThrottledError creates a new throttled error.
func NewThrottledError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassThrottled, Message: message, Err: err}
}

// NewConflictError creates a new conflict error.
func NewConflictError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassConflict, Message: message, Err: err}
}

// NewPermanentError creates a new permanent error.
func NewPermanentError(message string, err error) *EngineError {
	return &EngineError{Class: ErrorClassPermanent, Message: message, Err: err}
}

// WithAction adds action context to an error.
func (e *EngineError) WithAction(actionID string) *EngineError {
	e.ActionID = actionID
	return e
}

// WithOperation adds operation context to an error.
func (e *EngineError) WithOperation(operation string) *EngineError {
	e.Operation = operation
	return e
}

// WithCode adds an error code to an error.
func (e *EngineError) WithCode(code string) *EngineError {
	e.Code = code
	return e
}

// ClassOf returns the class of the first EngineError in err's chain, or
// ErrorClassPermanent when there is none.
func ClassOf(err error) ErrorClass {
	var e *EngineError
	if errors.As(err, &e) && e.Class != "" {
		return e.Class
	}
	return ErrorClassPermanent
}

// IsRetryable returns true if the error can be retried.
func IsRetryable(err error) bool {
	switch ClassOf(err) {
	case ErrorClassTransient, ErrorClassThrottled, ErrorClassConflict:
		return true
	default:
		return false
	}
}

// IsNotFound returns true if err carries the NOT_FOUND code.
func IsNotFound(err error) bool {
	var e *EngineError
	return errors.As(err, &e) && e.Code == ErrCodeNotFound
}

// IsAlreadyExists returns true if err carries the ALREADY_EXISTS code.
func IsAlreadyExists(err error) bool {
	var e *EngineError
	return errors.As(err, &e) && e.Code == ErrCodeAlreadyExists
}

// portError wraps a planning-phase port failure with action context. An
// adapter-supplied class is preserved.
func portError(actionID, operation string, err error) *EngineError {
	e := &EngineError{
		Class:   ClassOf(err),
		Message: "resource port failed",
		Code:    ErrCodeProviderFailed,
		Err:     err,
	}
	return e.WithAction(actionID).WithOperation(operation)
}

// storeError wraps a state store failure with action context.
func storeError(actionID, operation string, err error) *EngineError {
	e := NewTransientError("state store failed", err).WithCode(ErrCodeStateStoreFailed)
	return e.WithAction(actionID).WithOperation(operation)
}

// ValidationError aggregates every structural problem found in one
// validation pass.
type ValidationError struct {
	Problems []string `json:"problems"`
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if len(v.Problems) == 1 {
		return "invalid runbook: " + v.Problems[0]
	}
	return fmt.Sprintf("invalid runbook: %d problems: %s", len(v.Problems), strings.Join(v.Problems, "; "))
}

// Unwrap exposes the validation class and code to errors.Is.
func (v *ValidationError) Unwrap() error {
	return &EngineError{
		Class:   ErrorClassPermanent,
		Message: "runbook validation failed",
		Code:    ErrCodeValidation,
	}
}

// ErrValidation matches any ValidationError with errors.Is.
var ErrValidation = &EngineError{Class: ErrorClassPermanent, Code: ErrCodeValidation}

func (v *ValidationError) add(format string, args ...any) {
	v.Problems = append(v.Problems, fmt.Sprintf(format, args...))
}

func (v *ValidationError) orNil() error {
	if len(v.Problems) == 0 {
		return nil
	}
	return v
}
