package types

import "context"

type contextKey string

const (
	// RequestIDKey is the context key for the inbound request id.
	RequestIDKey contextKey = "requestID"
)

// WithRequestID returns a new context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// RequestIDFromContext returns the request id from the context.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RequestIDKey).(string)
	return id, ok && id != ""
}
