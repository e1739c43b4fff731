package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	assert.Nil(t, Normalize(nil))

	stdErr := NewCircuitOpenError("faq")
	wrapped := fmt.Errorf("route: %w", stdErr)
	assert.Same(t, stdErr, Normalize(wrapped))

	foreign := Normalize(fmt.Errorf("boom"))
	assert.Equal(t, ErrCodeInternal, foreign.Code)
	assert.Equal(t, "boom", foreign.Details)
}

func TestGetErrorCategory(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected string
	}{
		{ErrCodeBudgetExceeded, "BACKPRESSURE"},
		{ErrCodeCircuitOpen, "BACKPRESSURE"},
		{ErrCodeTurnCancelled, "CALLER"},
		{ErrCodeHandlerPanic, "HANDLER"},
		{ErrCodeConfirmFailed, "BOOKING"},
		{ErrCodeCacheUnavailable, "STORAGE"},
		{ErrCodeSearchFailed, "SEARCH"},
		{ErrCodeOrchestratorUnavailable, "FALLBACK"},
		{ErrCodeMissingArgument, "VALIDATION"},
		{ErrCodeInternal, "OTHER"},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetErrorCategory(tt.code))
		})
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeBudgetExceeded))
	assert.True(t, IsRetryableErrorCode(ErrCodeOrchestratorUnavailable))
	assert.False(t, IsRetryableErrorCode(ErrCodeMissingArgument))
	assert.False(t, IsRetryableErrorCode(ErrCodeHandlerPanic))
	assert.False(t, IsRetryableErrorCode(ErrCodeTurnCancelled))
}

func TestHTTPErrorHandler_Write(t *testing.T) {
	h := NewHTTPErrorHandler(nil)

	rec := httptest.NewRecorder()
	h.Write(rec, NewInvalidInboundError("message: required"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body struct {
		Error StandardError `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, ErrCodeInvalidInbound, body.Error.Code)
	assert.Equal(t, "message: required", body.Error.Details)

	rec = httptest.NewRecorder()
	h.Write(rec, fmt.Errorf("unexpected"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
