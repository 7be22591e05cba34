package pipeline

import "context"

type ctxKey int

const requestIDKey ctxKey = 0

// WithRequestID stores a request id minted at the transport edge so the
// pipeline, logs, and response body all carry the same identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFrom returns the request id stored by WithRequestID, or "".
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}
