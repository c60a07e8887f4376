package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/ozadari/unipop/internal/errors"
)

type errorEnvelope struct {
	Error     ErrorDTO `json:"error"`
	RequestID string   `json:"request_id,omitempty"`
}

func toErrorDTO(err error) ErrorDTO {
	var u *apperrors.UnifiedError
	if errors.As(err, &u) {
		return ErrorDTO{Code: string(u.Code), Message: u.Message, Details: u.Details}
	}
	return ErrorDTO{Code: string(apperrors.CodeInternalError), Message: "internal error"}
}

// writeError renders err with the status of its code. Server-side failures
// are logged; caller errors are not.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := apperrors.CodeOf(err).HTTPStatusCode()
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", RequestIDFromContext(r.Context())),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	writeJSON(w, status, errorEnvelope{
		Error:     toErrorDTO(err),
		RequestID: RequestIDFromContext(r.Context()),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
