// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
//
// USAGE PATTERN:
//   import "github.com/vincentventalon/docuprocess/pkg/contextkeys"
//   ctx = context.WithValue(ctx, contextkeys.PrincipalKey, principal)
//   principal := ctx.Value(contextkeys.PrincipalKey).(*auth.Principal)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal (resolved identity + team context)
	// Set by: middleware.Authenticate (pkg/middleware/auth.go)
	// Required by: all gated endpoints, rate-limit middleware
	// Type: *auth.Principal
	PrincipalKey Key = "principal"

	// RateInfoKey contains *ratelimit.Info captured at the rate-limit gate
	// Set by: middleware.RateLimit (pkg/middleware/ratelimit.go)
	// Used by: handlers to echo rate-limit headers on every terminal response
	// Type: *ratelimit.Info
	RateInfoKey Key = "rate_info"

	// RequestIDKey contains request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, resource refs on credit transactions
	// Type: string
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: observability middleware
	// Used by: handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithPrincipal adds the resolved principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithRateInfo adds the captured rate-limit state to the context
func WithRateInfo(ctx context.Context, info interface{}) context.Context {
	return context.WithValue(ctx, RateInfoKey, info)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}
