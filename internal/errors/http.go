package errors

import (
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// ErrorResponse is the JSON body of a failed HTTP request.
type ErrorResponse struct {
	Error   ErrorDetails `json:"error"`
	TraceID string       `json:"trace_id,omitempty"`
}

// ErrorDetails contains the error details.
type ErrorDetails struct {
	Type    ErrorType              `json:"type"`
	Message string                 `json:"message"`
	Code    string                 `json:"code,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// HTTPStatus maps an error type to the status code served for it.
func HTTPStatus(t ErrorType) int {
	switch t {
	case ErrorTypeInvalidArgument, ErrorTypeDecode:
		return http.StatusBadRequest
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimited:
		return http.StatusTooManyRequests
	case ErrorTypeDependencyMissing:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteHTTPError logs err and writes it as an ErrorResponse.
func WriteHTTPError(logger *logrus.Logger, w http.ResponseWriter, r *http.Request, err error) {
	traceID := r.Header.Get("X-Request-ID")

	appErr, ok := GetAppError(err)
	if !ok {
		appErr = WrapInternalError(err, "An unexpected error occurred")
	}
	status := HTTPStatus(appErr.Type)

	logEntry := logger.WithFields(logrus.Fields{
		"error_type": appErr.Type,
		"trace_id":   traceID,
		"method":     r.Method,
		"path":       r.URL.Path,
		"status":     status,
	})
	if appErr.Err != nil {
		logEntry = logEntry.WithError(appErr.Err)
	}
	if status >= http.StatusInternalServerError {
		logEntry.Error(appErr.Message)
	} else {
		logEntry.Warn(appErr.Message)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := ErrorResponse{
		Error: ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		},
		TraceID: traceID,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.WithError(err).Error("Failed to encode error response")
	}
}
