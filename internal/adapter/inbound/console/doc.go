// Package console serves the local web console: the login and register
// forms, the guarded document views and a small JSON/websocket API over the
// session state machine.
//
// # Usage
//
//	srv, err := console.NewServer(sessions, client,
//	    console.WithAddr("127.0.0.1:3000"),
//	    console.WithAllowedOrigins([]string{"http://localhost:5173"}),
//	    console.WithAccessKeyHash(cfg.Console.AccessKeyHash),
//	    console.WithLogger(logger),
//	)
//	err = srv.Start(ctx)
//
// # Endpoints
//
//	GET  /login, /register     - public-only forms (authenticated visitors go to /dashboard)
//	POST /login, /register     - submit the forms
//	POST /logout               - end the session
//	GET  /dashboard            - document statistics (protected)
//	GET  /documents            - document list (protected)
//	GET  /profile              - the current user (protected)
//	GET  /api/session          - the session snapshot as JSON, without the token
//	GET  /api/session/events   - websocket stream of session snapshots
//	GET  /health               - console and backend health
//	GET  /metrics              - Prometheus metrics
//
// Protected views redirect anonymous visitors to /login?from=<location> with a
// 303. While the session is loading they render a placeholder that refreshes
// itself every second.
//
// # Security
//
// The server binds to 127.0.0.1 by default. Requests carrying an Origin header
// that is neither this host nor one of the allowed origins are rejected with
// 403. When an access key hash is configured every route except /health
// requires HTTP basic auth with the key as the password. With a login limiter
// configured, login and register submissions are throttled per client address
// and an exhausted budget answers 429 with Retry-After.
package console
