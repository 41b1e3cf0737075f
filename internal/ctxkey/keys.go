// Package ctxkey defines shared context key types used across multiple packages.
// This package should have no dependencies on other internal packages to avoid import cycles.
package ctxkey

// LoggerKey is the context key type for the enriched logger.
// Used by the console middleware and the REST adapter to carry a logger with request_id.
type LoggerKey struct{}

// RequestIDKey is the context key type for the request ID forwarded to the backend
// as X-Request-ID.
type RequestIDKey struct{}

// LocationKey is the context key type for the location (path and query) the
// caller was serving when a backend call was made. The session service uses it
// to build the login redirect after an expiry.
type LocationKey struct{}
