package cmd

import (
	"context"
	"errors"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/docdesk/docdesk/internal/adapter/inbound/console"
	"github.com/docdesk/docdesk/internal/adapter/outbound/cel"
	"github.com/docdesk/docdesk/internal/adapter/outbound/memory"
)

var consoleAddr string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Serve the web console",
	Long: `Serve the web console: login, registration, dashboard, documents and
profile pages behind the route guard, plus /api/session, /health and /metrics.

The console shares the CLI's token store, so a "docdesk login" in a
terminal is picked up on the next console start and vice versa.

Examples:
  docdesk console
  docdesk console --addr 127.0.0.1:8081
  DOCDESK_CONSOLE_ACCESS_KEY_HASH=$(docdesk hash-key --stdin < key.txt) docdesk console`,
	Args: cobra.NoArgs,
	RunE: withApp(false, runConsole),
}

func init() {
	consoleCmd.Flags().StringVar(&consoleAddr, "addr", "", "listen address (overrides console.addr)")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string, a *app) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), gracefulSignals()...)
	defer stop()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return err
	}

	limiter := memory.NewRateLimiter(memory.WithLimiterLogger(a.logger))
	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	addr := a.cfg.Console.Addr
	if consoleAddr != "" {
		addr = consoleAddr
	}

	srv, err := console.NewServer(a.sessions, a.client,
		console.WithAddr(addr),
		console.WithAllowedOrigins(a.cfg.Console.AllowedOrigins),
		console.WithAccessKeyHash(a.cfg.Console.AccessKeyHash),
		console.WithDocumentFilter(evaluator),
		console.WithLoginLimiter(limiter),
		console.WithLogger(a.logger),
		console.WithRegistry(a.registry),
		console.WithVersion(Version),
	)
	if err != nil {
		return err
	}

	if a.cfg.Console.AccessKeyHash == "" {
		a.logger.Warn("console access key not set; anyone who can reach the address can use the session")
	}
	a.logger.Info("console listening", "addr", addr, "backend", a.client.BaseURL(), "state", a.sessions.Snapshot().State)

	if err := srv.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("console stopped")
	return nil
}
