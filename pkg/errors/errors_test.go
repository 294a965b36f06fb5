package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_StatusAndCode(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"not found", NotFound("Slot"), CodeNotFound, http.StatusNotFound},
		{"not found with id", NotFoundWithID("Booking", "b-1"), CodeNotFound, http.StatusNotFound},
		{"conflict", Conflict("This time slot is no longer available"), CodeConflict, http.StatusConflict},
		{"invalid input", InvalidInput("bad id"), CodeInvalidInput, http.StatusBadRequest},
		{"validation", Validation("invalid", nil), CodeValidation, http.StatusUnprocessableEntity},
		{"transient", Transient("busy", errors.New("lock timeout")), CodeTransient, http.StatusServiceUnavailable},
		{"internal", Internal("boom", errors.New("db down")), CodeInternal, http.StatusInternalServerError},
		{"unauthorized", Unauthorized("who are you"), CodeUnauthorized, http.StatusUnauthorized},
		{"forbidden", Forbidden("staff only"), CodeForbidden, http.StatusForbidden},
		{"rate limited", RateLimited("slow down"), CodeRateLimited, http.StatusTooManyRequests},
		{"timeout", Timeout("too slow"), CodeTimeout, http.StatusGatewayTimeout},
		{"unavailable", Unavailable("Reservations"), CodeUnavailable, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.StatusCode())
		})
	}
}

func TestAppError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: Slot not found", NotFound("Slot").Error())
	assert.Equal(t,
		"INTERNAL_ERROR: internal error (caused by: database connection failed)",
		Internal("internal error", errors.New("database connection failed")).Error(),
	)
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("write conflict")
	appErr := Transient("retry later", cause)

	assert.ErrorIs(t, appErr, cause)
}

func TestAppError_ZeroStatusFallsBackToInternal(t *testing.T) {
	err := &AppError{Code: CodeInternal, Message: "missing status"}
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
}

func TestNotFoundWithID_Details(t *testing.T) {
	err := NotFoundWithID("Booking", "12345")

	assert.Equal(t, "Booking not found", err.Message)
	assert.Equal(t, "12345", err.Details["id"])
	assert.Equal(t, "Booking", err.Details["resource"])
}

func TestAsAppError(t *testing.T) {
	appErr := Conflict("taken")
	wrapped := fmt.Errorf("engine: %w", appErr)
	plain := errors.New("plain")

	assert.Same(t, appErr, AsAppError(appErr))
	assert.Same(t, appErr, AsAppError(wrapped))

	fallback := AsAppError(plain)
	assert.Equal(t, CodeInternal, fallback.Code)
	assert.Equal(t, plain, fallback.Err)
}

func TestIsAppErrorAndIsCode(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", NotFound("Slot"))

	assert.True(t, IsAppError(wrapped))
	assert.False(t, IsAppError(errors.New("plain")))
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeConflict))
	assert.False(t, IsCode(nil, CodeNotFound))
}

func TestAppError_ToJSON(t *testing.T) {
	data := NotFoundWithID("Slot", "s-1").ToJSON()
	require.NotEmpty(t, data)

	body := string(data)
	assert.True(t, strings.Contains(body, `"code":"NOT_FOUND"`))
	assert.True(t, strings.Contains(body, `"message":"Slot not found"`))
	assert.True(t, strings.Contains(body, `"id":"s-1"`))
}
