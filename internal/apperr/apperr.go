package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies gateway errors for status mapping and log severity.
type Kind int

const (
	// KindValidation covers malformed or oversized input. Never retried.
	KindValidation Kind = iota
	// KindRateLimit is the routine admission denial.
	KindRateLimit
	// KindStoreUnavailable means the cache or rate-limit backing store is
	// unreachable. The pipeline degrades instead of failing the request.
	KindStoreUnavailable
	// KindDetectorFault is a single pattern's evaluation failing. The scan
	// skips the pattern and continues.
	KindDetectorFault
	// KindInternal is anything unclassified.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindRateLimit:
		return "rate_limit_exceeded"
	case KindStoreUnavailable:
		return "backing_store_unavailable"
	case KindDetectorFault:
		return "detector_fault"
	default:
		return "internal_error"
	}
}

// Error is the gateway error type. Message is safe to return to clients;
// the wrapped cause is for logs only.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // set for KindRateLimit
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error kind to a response status code.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimit:
		return http.StatusTooManyRequests
	case KindStoreUnavailable, KindDetectorFault, KindInternal:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// Severe reports whether the error should be logged at Error level.
// Client-class errors and absorbed degradations log at Warn.
func (e *Error) Severe() bool {
	return e.Kind == KindInternal
}

// Validation creates a client-input error.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// RateLimited creates an admission denial carrying the retry hint.
func RateLimited(retryAfter time.Duration, format string, args ...interface{}) *Error {
	return &Error{
		Kind:       KindRateLimit,
		Message:    fmt.Sprintf(format, args...),
		RetryAfter: retryAfter,
	}
}

// StoreUnavailable wraps a backing-store failure.
func StoreUnavailable(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindStoreUnavailable, Message: fmt.Sprintf(format, args...), cause: cause}
}

// DetectorFault wraps a single-pattern evaluation failure.
func DetectorFault(cause error, patternID string) *Error {
	return &Error{
		Kind:    KindDetectorFault,
		Message: fmt.Sprintf("pattern %s evaluation failed", patternID),
		cause:   cause,
	}
}

// Internal wraps an unclassified failure.
func Internal(cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindInternal, Message: fmt.Sprintf(format, args...), cause: cause}
}

// From classifies an arbitrary error, wrapping unknown ones as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{Kind: KindInternal, Message: "internal server error", cause: err}
}

// Response is the JSON error body returned to clients.
type Response struct {
	Code      int    `json:"code"`
	Error     string `json:"error"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ToResponse builds the client-facing body. Causes are never included.
func (e *Error) ToResponse(requestID string) Response {
	return Response{
		Code:      e.HTTPStatus(),
		Error:     e.Kind.String(),
		Message:   e.Message,
		RequestID: requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
