package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/extension"
	"github.com/we0-dev/we0-index/internal/health"
	httpserver "github.com/we0-dev/we0-index/internal/http"
	"github.com/we0-dev/we0-index/internal/logging"
	"github.com/we0-dev/we0-index/internal/repository"
	"github.com/we0-dev/we0-index/internal/search"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the we0-index HTTP server.

The server starts even when the vector backend is unreachable; the
/health endpoint reports the backend state so orchestrators can wait
for readiness instead of crash-looping the process.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	if err := cfg.Validate(); err != nil {
		// Not fatal here: the health endpoint surfaces the failure and
		// the process can be reconfigured without a crash loop.
		logger.Error("configuration validation failed", zap.Error(err))
	}
	cfg.CheckProviderKey(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	manager := extension.New(cfg, logger)
	defer func() {
		if err := manager.Close(); err != nil {
			logger.Warn("closing extensions", zap.Error(err))
		}
	}()

	if err := manager.Init(ctx); err != nil {
		// Startup continues; health probes retry Init on every check.
		logger.Error("extension initialization failed", zap.Error(err))
	}

	checker := health.NewChecker(cfg, manager, logger)
	repos := repository.NewService(manager, logger)
	searcher := search.NewService(manager, logger, repository.RepoID)

	server, err := httpserver.NewServer(cfg, logger, checker, repos, searcher)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
