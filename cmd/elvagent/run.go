package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	httphandler "github.com/ericfisherdev/elvagent/internal/adapter/driving/http"
	"github.com/ericfisherdev/elvagent/internal/application"
	"github.com/ericfisherdev/elvagent/internal/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the agent loop and the status API until interrupted",
	Long: `Run polls the repository every ELVAGENT_POLL_INTERVAL, dispatches workers
for new events and serves the status API on ELVAGENT_LISTEN_ADDR.

The loop stops on SIGINT/SIGTERM after the in-flight cycle completes, or
after ELVAGENT_MAX_CYCLES cycles when that is non-zero.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runAgent(cmd.Context())
	},
}

func runAgent(parent context.Context) error {
	// 1. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"repo", cfg.GitHubRepo,
		"repo_path", cfg.RepoPath,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"poll_interval", cfg.PollInterval,
		"max_fix_attempts", cfg.MaxFixAttempts,
		"max_cycles", cfg.MaxCycles,
	)

	// 3. Wire adapters and services.
	a, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	// 4. Start the HTTP server.
	history := application.NewHistoryService(a.store, a.loop, cfg.MaxFixAttempts)
	handler := httphandler.NewServeMux(httphandler.NewHandler(history, a.loop, a.registry, slog.Default()), slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Manual triggers wait for a whole cycle.
		WriteTimeout: 20 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 5. Start the agent loop.
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		a.loop.Run(ctx)
	}()

	slog.Info("elvagent started",
		"repo", cfg.GitHubRepo,
		"llm_provider", cfg.LLMProvider,
		"git_backend", cfg.GitBackend,
	)

	// 6. Wait for shutdown signal or cycle limit.
	select {
	case <-ctx.Done():
		slog.Info("shutting down, waiting for in-flight cycle")
		<-loopDone
	case <-loopDone:
		slog.Info("agent loop finished")
	}

	// 7. Graceful shutdown with 10s timeout for HTTP server drain.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
