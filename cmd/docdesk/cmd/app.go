package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/adapter/outbound/rest"
	"github.com/docdesk/docdesk/internal/adapter/outbound/telemetry"
	"github.com/docdesk/docdesk/internal/adapter/outbound/tokenstore"
	"github.com/docdesk/docdesk/internal/config"
	"github.com/docdesk/docdesk/internal/domain/route"
	"github.com/docdesk/docdesk/internal/domain/session"
	"github.com/docdesk/docdesk/internal/service"
)

var (
	errSessionExpired = errors.New(`session expired; run "docdesk login"`)
	errNotLoggedIn    = errors.New(`not logged in; run "docdesk login"`)
)

// app is everything a command needs, wired from config.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	tokens    session.TokenStore
	closer    io.Closer
	telemetry *telemetry.Provider
	registry  *prometheus.Registry
	client    *rest.Client
	sessions  *service.SessionService
}

// newApp builds the app in boot order: config, logger, token store,
// telemetry, REST client, session service. The session is rehydrated from the
// token store before newApp returns.
func newApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := parseLogLevel(cfg.LogLevel)
	if verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel,
	}))
	if file := config.ConfigFileUsed(); file != "" {
		logger.Debug("loaded config", "file", file)
	}

	tokens, closer := tokenstore.Open(ctx, cfg.TokenStore.Kind, cfg.TokenStore.Path, logger)

	interval, _ := time.ParseDuration(cfg.Tracing.MetricInterval)
	tp, err := telemetry.Setup(telemetry.Options{
		Enabled:        cfg.Tracing.Enabled,
		ServiceName:    "docdesk",
		Version:        Version,
		Writer:         cmd.ErrOrStderr(),
		MetricInterval: interval,
	})
	if err != nil {
		_ = closer.Close()
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}

	timeout, err := cfg.Backend.TimeoutDuration()
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	client := rest.New(cfg.Backend.URL, tokens,
		rest.WithTimeout(timeout),
		rest.WithLogger(logger),
		rest.WithMetrics(rest.NewMetrics(reg)),
		rest.WithTracerProvider(tp.TracerProvider),
	)

	sessions := service.NewSessionService(client, tokens, logger,
		service.WithMeterProvider(tp.MeterProvider),
	)
	client.OnTokenRefreshed(sessions.TokenRefreshed)
	client.OnSessionExpired(sessions.SessionExpired)

	snap := sessions.Start(ctx)
	logger.Debug("session rehydrated", "state", snap.State, "backend", cfg.Backend.URL)

	return &app{
		cfg:       cfg,
		logger:    logger,
		tokens:    tokens,
		closer:    closer,
		telemetry: tp,
		registry:  reg,
		client:    client,
		sessions:  sessions,
	}, nil
}

// Close flushes telemetry and releases the token store.
func (a *app) Close(ctx context.Context) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := a.telemetry.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", "error", err)
	}
	if err := a.closer.Close(); err != nil {
		a.logger.Warn("token store close failed", "error", err)
	}
}

// requireSession fails unless the rehydrated session is authenticated.
func (a *app) requireSession(cmd *cobra.Command) error {
	d := route.Decide(route.Protected, a.sessions.Snapshot(), cmd.CommandPath())
	if d.Outcome != route.Render {
		return errNotLoggedIn
	}
	return nil
}

// withApp runs fn with a fresh app and maps session failures to the CLI's
// expiry message. Protected commands require an authenticated session.
func withApp(protected bool, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if protected {
			if err := a.requireSession(cmd); err != nil {
				return err
			}
		}
		return commandError(fn(cmd, args, a))
	}
}

// commandError turns an expiry or a 401 that survived the refresh retry into
// errSessionExpired. Rejected logins and other errors pass through.
func commandError(err error) error {
	if err == nil || errors.Is(err, session.ErrAuth) || errors.Is(err, session.ErrValidation) {
		return err
	}
	if errors.Is(err, session.ErrSessionExpired) || errors.Is(err, session.ErrUnauthenticated) {
		return fmt.Errorf("%w (%s)", errSessionExpired, session.Message(err, "token rejected"))
	}
	return err
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
