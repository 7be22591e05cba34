package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want int
	}{
		{"validation", Validation("text is empty"), http.StatusBadRequest},
		{"rate limit", RateLimited(time.Second, "too many requests"), http.StatusTooManyRequests},
		{"store unavailable", StoreUnavailable(errors.New("dial tcp"), "redis down"), http.StatusInternalServerError},
		{"detector fault", DetectorFault(errors.New("boom"), "pii.ssn"), http.StatusInternalServerError},
		{"internal", Internal(errors.New("boom"), "unexpected"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatus())
		})
	}
}

func TestSeverity(t *testing.T) {
	assert.False(t, Validation("bad input").Severe())
	assert.False(t, RateLimited(time.Second, "denied").Severe())
	assert.False(t, StoreUnavailable(errors.New("x"), "redis down").Severe())
	assert.False(t, DetectorFault(errors.New("x"), "pii.ssn").Severe())
	assert.True(t, Internal(errors.New("x"), "unexpected").Severe())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreUnavailable(cause, "redis down")
	assert.True(t, errors.Is(err, cause))
}

func TestFrom(t *testing.T) {
	ae := Validation("bad input")

	got := From(ae)
	assert.Same(t, ae, got)

	wrapped := From(fmt.Errorf("outer: %w", ae))
	assert.Equal(t, KindValidation, wrapped.Kind)

	plain := From(errors.New("something broke"))
	require.NotNil(t, plain)
	assert.Equal(t, KindInternal, plain.Kind)
	assert.Equal(t, "internal server error", plain.Message)
}

func TestToResponseHidesCause(t *testing.T) {
	err := Internal(errors.New("db password wrong"), "internal server error")
	resp := err.ToResponse("req-123")

	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "internal_error", resp.Error)
	assert.Equal(t, "internal server error", resp.Message)
	assert.Equal(t, "req-123", resp.RequestID)
	assert.NotContains(t, resp.Message, "password")
	assert.NotEmpty(t, resp.Timestamp)
}

func TestRetryAfterCarried(t *testing.T) {
	err := RateLimited(2500*time.Millisecond, "rate limit exceeded")
	assert.Equal(t, 2500*time.Millisecond, err.RetryAfter)
}
