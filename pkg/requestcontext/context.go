// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values. Middleware sets them; services read them without
// importing net/http.
package requestcontext

import (
	"context"
	"time"
)

// Context key types (unexported for encapsulation).
type (
	requestIDKey   struct{}
	clientIPKey    struct{}
	requestPathKey struct{}
	requestTimeKey struct{}
)

// RequestID retrieves the correlation id assigned to the request.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a correlation id into the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// ClientIP retrieves the caller's network address.
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(clientIPKey{}).(string); ok {
		return v
	}
	return ""
}

// RequestPath retrieves the path the caller requested.
func RequestPath(ctx context.Context) string {
	if v, ok := ctx.Value(requestPathKey{}).(string); ok {
		return v
	}
	return ""
}

// WithClientMetadata injects the caller IP and requested path into a context.
// Useful for service unit tests that skip the HTTP middleware chain.
func WithClientMetadata(ctx context.Context, ip, path string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey{}, ip)
	return context.WithValue(ctx, requestPathKey{}, path)
}

// Now retrieves the request-scoped time, falling back to time.Now for
// non-HTTP contexts (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request time, letting tests evaluate date-window rules
// against a fixed clock.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, t)
}
