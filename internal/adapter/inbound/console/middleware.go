package console

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"net/url"
	"sync"

	"github.com/docdesk/docdesk/internal/ctxkey"
	"github.com/docdesk/docdesk/internal/domain/auth"
	"github.com/docdesk/docdesk/internal/service"
	"github.com/google/uuid"
)

// accessRealm is the basic-auth realm announced on 401.
const accessRealm = `Basic realm="docdesk console", charset="UTF-8"`

// RequestIDMiddleware extracts or generates a request ID and enriches the logger.
// Both are stored in the context under ctxkey.RequestIDKey and ctxkey.LoggerKey,
// where the REST adapter picks them up for X-Request-ID and its own logs.
func RequestIDMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" {
				requestID = uuid.New().String()
			}

			enriched := logger.With("request_id", requestID)

			ctx := context.WithValue(r.Context(), ctxkey.RequestIDKey{}, requestID)
			ctx = context.WithValue(ctx, ctxkey.LoggerKey{}, enriched)

			w.Header().Set("X-Request-ID", requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// LoggerFromContext retrieves the enriched logger from context.
// Returns slog.Default() if no logger is in context.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(ctxkey.LoggerKey{}).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// LocationMiddleware records the requested path and query in the context so a
// session expiry during the request redirects back here after login.
func LocationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := service.WithLocation(r.Context(), r.URL.RequestURI())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OriginProtection rejects cross-origin requests unless the origin is allowed.
// Requests without an Origin header, or whose origin host matches the request
// host, pass through. This also blocks DNS rebinding against the local console.
func OriginProtection(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}
			if _, ok := allowed[origin]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
				next.ServeHTTP(w, r)
				return
			}
			LoggerFromContext(r.Context()).Warn("rejected cross-origin request", "origin", origin, "path", r.URL.Path)
			http.Error(w, "Forbidden: origin not allowed", http.StatusForbidden)
		})
	}
}

// AccessKeyMiddleware requires HTTP basic auth whose password matches the
// Argon2id hash. An empty hash disables the check. /health stays open.
func AccessKeyMiddleware(hash string) func(http.Handler) http.Handler {
	if hash == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	v := &keyVerifier{hash: hash}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}
			_, key, ok := r.BasicAuth()
			if !ok || !v.verify(r.Context(), key) {
				w.Header().Set("WWW-Authenticate", accessRealm)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// keyVerifier remembers the last accepted key so the Argon2id comparison runs
// once per key rather than once per request.
type keyVerifier struct {
	hash string

	mu       sync.Mutex
	accepted string
}

func (v *keyVerifier) verify(ctx context.Context, key string) bool {
	if key == "" {
		return false
	}
	v.mu.Lock()
	cached := v.accepted
	v.mu.Unlock()
	if cached != "" && subtle.ConstantTimeCompare([]byte(cached), []byte(key)) == 1 {
		return true
	}

	ok, err := auth.VerifyAccessKey(key, v.hash)
	if err != nil {
		LoggerFromContext(ctx).Error("access key verification failed", "error", err)
		return false
	}
	if ok {
		v.mu.Lock()
		v.accepted = key
		v.mu.Unlock()
	}
	return ok
}

// SecurityHeaders sets Content Security Policy and related headers on all responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Security-Policy",
			"default-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; "+
				"connect-src 'self'; frame-ancestors 'none'; form-action 'self'")
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "same-origin")

		next.ServeHTTP(w, r)
	})
}
