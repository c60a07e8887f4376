// Package errors provides the unified error type used across the query engine.
// Every failure that leaves the engine (compile, assembly, lookup, scroll,
// mutation, aggregation) is a *UnifiedError carrying a stable code, so callers
// can branch on the kind of failure without string matching.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// ============================================================================
// ERROR TYPES AND CLASSIFICATION
// ============================================================================

// ErrorType defines the category of an error.
type ErrorType string

const (
	// Caller errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"
	ErrorTypeConflict   ErrorType = "CONFLICT"

	// Stored data that does not follow the document contract
	ErrorTypeData ErrorType = "DATA"

	// Infrastructure errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"
)

// ErrorSeverity defines the severity level for logging and monitoring.
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "LOW"
	SeverityMedium   ErrorSeverity = "MEDIUM"
	SeverityHigh     ErrorSeverity = "HIGH"
	SeverityCritical ErrorSeverity = "CRITICAL"
)

// ============================================================================
// UNIFIED ERROR STRUCTURE
// ============================================================================

// UnifiedError is the single error type returned by the engine.
type UnifiedError struct {
	Type    ErrorType `json:"type"`
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`

	// Operation is the engine operation that failed (lookup, scroll, create...).
	Operation string `json:"operation,omitempty"`
	// Resource is the index or element the operation targeted.
	Resource string `json:"resource,omitempty"`

	Severity  ErrorSeverity `json:"severity"`
	Retryable bool          `json:"retryable"`
	Cause     error         `json:"-"`

	File string `json:"-"`
	Line int    `json:"-"`
}

// Error implements the error interface.
func (e *UnifiedError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap allows errors.Is and errors.As to reach the underlying cause.
func (e *UnifiedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a UnifiedError with the same code.
// A bare &UnifiedError{Code: X} works as a sentinel for errors.Is.
func (e *UnifiedError) Is(target error) bool {
	var t *UnifiedError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code != "" && t.Code == e.Code
}

// String provides a detailed multi-line representation for logging.
func (e *UnifiedError) String() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Error: %s\n", e.Error()))
	if e.Operation != "" {
		b.WriteString(fmt.Sprintf("Operation: %s\n", e.Operation))
	}
	if e.Resource != "" {
		b.WriteString(fmt.Sprintf("Resource: %s\n", e.Resource))
	}
	b.WriteString(fmt.Sprintf("Severity: %s\n", e.Severity))
	b.WriteString(fmt.Sprintf("Retryable: %t\n", e.Retryable))
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("Cause: %v\n", e.Cause))
	}
	if e.File != "" && e.Line > 0 {
		b.WriteString(fmt.Sprintf("Location: %s:%d\n", e.File, e.Line))
	}
	return b.String()
}

// ============================================================================
// ERROR BUILDER
// ============================================================================

// ErrorBuilder provides a fluent interface for constructing UnifiedError values.
type ErrorBuilder struct {
	err *UnifiedError
}

// NewError creates a builder with the given type, code and message.
func NewError(errType ErrorType, code ErrorCode, message string) *ErrorBuilder {
	_, file, line, _ := runtime.Caller(1)

	return &ErrorBuilder{
		err: &UnifiedError{
			Type:      errType,
			Code:      code,
			Message:   message,
			Severity:  code.Severity(),
			Retryable: code.IsRetryable(),
			File:      file,
			Line:      line,
		},
	}
}

// WithDetails adds additional details to the error.
func (b *ErrorBuilder) WithDetails(details string) *ErrorBuilder {
	b.err.Details = details
	return b
}

// WithOperation records the operation that failed.
func (b *ErrorBuilder) WithOperation(operation string) *ErrorBuilder {
	b.err.Operation = operation
	return b
}

// WithResource records the resource being operated on.
func (b *ErrorBuilder) WithResource(resource string) *ErrorBuilder {
	b.err.Resource = resource
	return b
}

// WithSeverity overrides the severity derived from the code.
func (b *ErrorBuilder) WithSeverity(severity ErrorSeverity) *ErrorBuilder {
	b.err.Severity = severity
	return b
}

// WithRetryable overrides the retryable flag derived from the code.
func (b *ErrorBuilder) WithRetryable(retryable bool) *ErrorBuilder {
	b.err.Retryable = retryable
	return b
}

// WithCause attaches the underlying cause.
func (b *ErrorBuilder) WithCause(cause error) *ErrorBuilder {
	b.err.Cause = cause
	return b
}

// Build returns the constructed error.
func (b *ErrorBuilder) Build() *UnifiedError {
	return b.err
}

// ============================================================================
// DOMAIN CONSTRUCTORS
// ============================================================================

// ElementNotFound reports an identifier that a batched lookup could not find.
func ElementNotFound(id string) *UnifiedError {
	return NewError(ErrorTypeNotFound, CodeElementNotFound, "element not found").
		WithDetails(id).
		WithResource(id).
		Build()
}

// EdgeAlreadyExists reports a create request that collided with an existing edge id.
func EdgeAlreadyExists(id string) *UnifiedError {
	return NewError(ErrorTypeConflict, CodeEdgeAlreadyExists, "edge already exists").
		WithDetails(id).
		WithResource(id).
		Build()
}

// UnsupportedPredicate reports a predicate that has no backend translation.
func UnsupportedPredicate(key, operator string) *UnifiedError {
	return NewError(ErrorTypeValidation, CodeUnsupportedPredicate, "unsupported predicate").
		WithDetails(fmt.Sprintf("%s %s", key, operator)).
		WithOperation("compile").
		Build()
}

// UnsupportedAggregation reports an aggregation fragment the interpreter cannot translate.
func UnsupportedAggregation(details string) *UnifiedError {
	return NewError(ErrorTypeValidation, CodeUnsupportedAggregation, "unsupported aggregation").
		WithDetails(details).
		WithOperation("aggregate").
		Build()
}

// MalformedRecord reports a fetched record missing a mandatory reserved field.
func MalformedRecord(id, field string) *UnifiedError {
	return NewError(ErrorTypeData, CodeMalformedRecord, "malformed record").
		WithDetails(fmt.Sprintf("record %q: missing or invalid field %q", id, field)).
		WithResource(id).
		WithOperation("assemble").
		Build()
}

// BackendUnavailable wraps a transport, timeout or protocol failure of the
// document backend. A retryable cause keeps the error retryable.
func BackendUnavailable(operation, resource string, cause error) *UnifiedError {
	var existing *UnifiedError
	if errors.As(cause, &existing) && existing.Code == CodeBackendUnavailable {
		return existing
	}

	b := NewError(ErrorTypeUnavailable, CodeBackendUnavailable, "document backend unavailable").
		WithOperation(operation).
		WithResource(resource).
		WithCause(cause)
	if cause != nil {
		b.WithDetails(cause.Error())
	}
	if existing != nil {
		b.WithRetryable(existing.Retryable)
	}
	return b.Build()
}

// InvalidInput reports a malformed request from the caller.
func InvalidInput(message string) *UnifiedError {
	return NewError(ErrorTypeValidation, CodeInvalidInput, message).Build()
}

// ============================================================================
// ERROR CLASSIFICATION AND CHECKING
// ============================================================================

// IsType checks if an error is of a specific type.
func IsType(err error, errType ErrorType) bool {
	var u *UnifiedError
	if errors.As(err, &u) {
		return u.Type == errType
	}
	return false
}

// HasCode checks if an error carries a specific code.
func HasCode(err error, code ErrorCode) bool {
	var u *UnifiedError
	if errors.As(err, &u) {
		return u.Code == code
	}
	return false
}

// CodeOf returns the code of err, or CodeInternalError for foreign errors.
func CodeOf(err error) ErrorCode {
	var u *UnifiedError
	if errors.As(err, &u) {
		return u.Code
	}
	return CodeInternalError
}

func IsElementNotFound(err error) bool      { return HasCode(err, CodeElementNotFound) }
func IsEdgeAlreadyExists(err error) bool    { return HasCode(err, CodeEdgeAlreadyExists) }
func IsUnsupportedPredicate(err error) bool { return HasCode(err, CodeUnsupportedPredicate) }
func IsMalformedRecord(err error) bool      { return HasCode(err, CodeMalformedRecord) }
func IsBackendUnavailable(err error) bool   { return HasCode(err, CodeBackendUnavailable) }

// IsValidation checks if an error is a validation error.
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var u *UnifiedError
	if errors.As(err, &u) {
		return u.Retryable
	}
	return false
}
