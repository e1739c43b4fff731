// internal/common/errors/handler.go
package errors

import (
	"encoding/json"
	"net/http"
)

// Logger is the subset of logger.Logger the HTTP error writer needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// HTTPErrorHandler writes normalized StandardErrors as JSON responses.
type HTTPErrorHandler struct {
	logger Logger
}

func NewHTTPErrorHandler(logger Logger) *HTTPErrorHandler {
	return &HTTPErrorHandler{logger: logger}
}

// HTTPStatus maps an error code to the status returned at the inbound boundary.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeInvalidInbound, ErrCodeMissingArgument:
		return http.StatusBadRequest
	case ErrCodeBudgetExceeded:
		return http.StatusGatewayTimeout
	case ErrCodeCircuitOpen, ErrCodeOrchestratorUnavailable, ErrCodeCacheUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Write normalizes err and writes it with the mapped status code.
func (h *HTTPErrorHandler) Write(w http.ResponseWriter, err error) {
	stdErr := Normalize(err)
	status := HTTPStatus(stdErr.Code)

	fields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
		"status":        status,
	}
	if h.logger != nil {
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed", fields)
		} else {
			h.logger.Warn("request rejected", fields)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"error": stdErr})
}
