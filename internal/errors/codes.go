package errors

import "net/http"

// ErrorCode is a stable identifier for a specific failure.
type ErrorCode string

const (
	// Query engine errors
	CodeElementNotFound        ErrorCode = "ELEMENT_NOT_FOUND"
	CodeEdgeAlreadyExists      ErrorCode = "EDGE_ALREADY_EXISTS"
	CodeUnsupportedPredicate   ErrorCode = "UNSUPPORTED_PREDICATE"
	CodeUnsupportedAggregation ErrorCode = "UNSUPPORTED_AGGREGATION"
	CodeMalformedRecord        ErrorCode = "MALFORMED_RECORD"
	CodeBackendUnavailable     ErrorCode = "BACKEND_UNAVAILABLE"

	// Validation errors
	CodeInvalidInput  ErrorCode = "INVALID_INPUT"
	CodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// Infrastructure errors
	CodeInternalError ErrorCode = "INTERNAL_ERROR"
)

// String returns the string representation of the code.
func (c ErrorCode) String() string {
	return string(c)
}

// HTTPStatusCode returns the HTTP status the REST surface answers with.
func (c ErrorCode) HTTPStatusCode() int {
	switch c {
	case CodeElementNotFound:
		return http.StatusNotFound
	case CodeEdgeAlreadyExists:
		return http.StatusConflict
	case CodeUnsupportedPredicate, CodeUnsupportedAggregation, CodeInvalidInput:
		return http.StatusBadRequest
	case CodeMalformedRecord:
		return http.StatusBadGateway
	case CodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable reports the default retryable flag for the code.
func (c ErrorCode) IsRetryable() bool {
	return c == CodeBackendUnavailable
}

// Severity returns the default severity for the code.
func (c ErrorCode) Severity() ErrorSeverity {
	switch c {
	case CodeElementNotFound, CodeUnsupportedPredicate, CodeUnsupportedAggregation, CodeInvalidInput:
		return SeverityLow
	case CodeEdgeAlreadyExists:
		return SeverityMedium
	case CodeMalformedRecord, CodeBackendUnavailable, CodeInvalidConfig:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}
