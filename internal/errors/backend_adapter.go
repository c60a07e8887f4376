package errors

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// FromBackendError converts a failure reported by a document backend into a
// BACKEND_UNAVAILABLE error, classifying whether a retry could succeed.
func FromBackendError(err error, operation, resource string) error {
	if err == nil {
		return nil
	}

	var existing *UnifiedError
	if errors.As(err, &existing) {
		return err
	}

	retryable := false
	details := ""

	var ae smithy.APIError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		retryable = true
		details = "deadline exceeded"
	case errors.Is(err, context.Canceled):
		details = "request canceled"
	case errors.As(err, &ae):
		details = ae.ErrorCode() + ": " + ae.ErrorMessage()
		switch ae.ErrorCode() {
		case "ProvisionedThroughputExceededException",
			"RequestLimitExceeded",
			"ThrottlingException",
			"InternalServerError",
			"ServiceUnavailable",
			"LimitExceededException":
			retryable = true
		case "ResourceNotFoundException", "ValidationException":
			retryable = false
		default:
			retryable = ae.ErrorFault() == smithy.FaultServer
		}
	}

	b := NewError(ErrorTypeUnavailable, CodeBackendUnavailable, "document backend unavailable").
		WithOperation(operation).
		WithResource(resource).
		WithCause(err).
		WithRetryable(retryable)
	if details != "" {
		b.WithDetails(details)
	} else {
		b.WithDetails(err.Error())
	}
	return b.Build()
}

// IsConditionFailure reports whether err is a failed conditional write,
// which a create-if-absent request surfaces as an identifier collision.
func IsConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		return true
	}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		return ae.ErrorCode() == "ConditionalCheckFailedException"
	}
	return false
}
