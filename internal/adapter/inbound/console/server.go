package console

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/docdesk/docdesk/internal/domain/document"
	"github.com/docdesk/docdesk/internal/domain/ratelimit"
	"github.com/docdesk/docdesk/internal/domain/route"
	"github.com/docdesk/docdesk/internal/port/inbound"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = "127.0.0.1:3000"

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 10 * time.Second

// Backend is what the console reads from the document backend.
// *rest.Client satisfies it.
type Backend interface {
	BackendHealth
	ListDocuments(ctx context.Context, q document.Query) (*document.Page, error)
	DocumentStats(ctx context.Context) (*document.Stats, error)
}

// DocumentFilter narrows a document list with a filter expression.
type DocumentFilter interface {
	Filter(expression string, docs []document.Document) ([]document.Document, error)
}

// Server is the web console's HTTP server.
type Server struct {
	sessions       inbound.SessionManager
	backend        Backend
	filter         DocumentFilter
	limiter        ratelimit.Limiter
	server         *http.Server
	addr           string
	allowedOrigins []string
	originPatterns []string
	accessKeyHash  string
	version        string
	logger         *slog.Logger
	registry       *prometheus.Registry
	metrics        *Metrics
	healthChecker  *HealthChecker
	streams        *streamRegistry
	pages          map[string]*template.Template
}

// Option is a functional option for configuring Server.
type Option func(*Server)

// WithAddr sets the listen address. Default is DefaultAddr (localhost only).
func WithAddr(addr string) Option {
	return func(s *Server) {
		s.addr = addr
	}
}

// WithAllowedOrigins sets the cross-origin callers allowed on /api/*.
// If empty, cross-origin requests are rejected (local-only mode).
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		s.allowedOrigins = origins
	}
}

// WithAccessKeyHash requires basic auth with a key matching the Argon2id hash.
func WithAccessKeyHash(hash string) Option {
	return func(s *Server) {
		s.accessKeyHash = hash
	}
}

// WithDocumentFilter enables the where= filter on the documents page.
func WithDocumentFilter(f DocumentFilter) Option {
	return func(s *Server) {
		s.filter = f
	}
}

// WithLoginLimiter throttles login and register submissions per client
// address with ratelimit.LoginAttempts. Without it submissions are unlimited.
func WithLoginLimiter(l ratelimit.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithLogger sets the logger for the console.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithRegistry sets the Prometheus registry served on /metrics. Default is a
// fresh registry with the Go and process collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
	}
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) {
		s.version = v
	}
}

// NewServer creates the console over the session state machine and the backend.
func NewServer(sessions inbound.SessionManager, backend Backend, opts ...Option) (*Server, error) {
	s := &Server{
		sessions:       sessions,
		backend:        backend,
		addr:           DefaultAddr,
		allowedOrigins: []string{},
		logger:         slog.Default(),
		streams:        newStreamRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
		s.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	s.metrics = NewMetrics(s.registry)
	s.healthChecker = NewHealthChecker(backend, sessions, s.version)
	s.originPatterns = originPatterns(s.allowedOrigins)

	pages, err := loadTemplates()
	if err != nil {
		return nil, err
	}
	s.pages = pages
	return s, nil
}

// Handler returns the console's full handler chain.
//
// Middleware order (outermost first):
//  1. MetricsMiddleware - duration and status (outermost to capture full duration)
//  2. RequestID - request ID and enriched logger
//  3. SecurityHeaders - CSP and framing headers
//  4. OriginProtection - reject foreign origins
//  5. AccessKey - optional basic auth
//  6. Location - remember where an expiry should return to
func (s *Server) Handler() http.Handler {
	protected := s.Guard(route.Protected, s.sessions)
	publicOnly := s.Guard(route.PublicOnly, s.sessions)

	mux := http.NewServeMux()
	mux.Handle("GET /login", publicOnly(http.HandlerFunc(s.handleLoginPage)))
	mux.Handle("POST /login", publicOnly(http.HandlerFunc(s.handleLogin)))
	mux.Handle("GET /register", publicOnly(http.HandlerFunc(s.handleRegisterPage)))
	mux.Handle("POST /register", publicOnly(http.HandlerFunc(s.handleRegister)))
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.Handle("GET /dashboard", protected(http.HandlerFunc(s.handleDashboard)))
	mux.Handle("GET /documents", protected(http.HandlerFunc(s.handleDocuments)))
	mux.Handle("GET /profile", protected(http.HandlerFunc(s.handleProfile)))
	mux.Handle("GET /{$}", http.RedirectHandler(route.HomePath, http.StatusSeeOther))

	api := http.NewServeMux()
	api.HandleFunc("GET /api/session", s.handleSession)
	api.HandleFunc("GET /api/session/events", s.handleSessionEvents)
	mux.Handle("/api/", s.corsHandler(api))

	mux.Handle("GET /health", s.healthChecker.Handler())
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		Registry: s.registry,
	}))
	mux.Handle("/favicon.ico", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	var handler http.Handler = mux
	handler = LocationMiddleware(handler)
	handler = AccessKeyMiddleware(s.accessKeyHash)(handler)
	handler = OriginProtection(s.allowedOrigins)(handler)
	handler = SecurityHeaders(handler)
	handler = RequestIDMiddleware(s.logger)(handler)
	handler = MetricsMiddleware(s.metrics)(handler)
	return handler
}

// corsHandler answers CORS preflights for the allowed origins. With no
// allowed origins it adds nothing, so browsers keep the same-origin policy.
func (s *Server) corsHandler(next http.Handler) http.Handler {
	if len(s.allowedOrigins) == 0 {
		return next
	}
	return cors.New(cors.Options{
		AllowedOrigins:   s.allowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	}).Handler(next)
}

// Start listens on the configured address and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or serving fails,
// then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("starting console", "addr", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, shutting down console")
		return s.shutdown()
	case err := <-errCh:
		return err
	}
}

// shutdown ends open streams, then shuts the server down gracefully.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.streams.closeAll()

	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("error during console shutdown", "error", err)
		return err
	}

	s.logger.Info("console shutdown complete")
	return nil
}
