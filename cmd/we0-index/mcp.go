package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/extension"
	"github.com/we0-dev/we0-index/internal/logging"
	mcpserver "github.com/we0-dev/we0-index/internal/mcp"
	"github.com/we0-dev/we0-index/internal/repository"
	"github.com/we0-dev/we0-index/internal/search"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server on stdio",
	Long: `Run we0-index as a Model Context Protocol server on stdio.

Intended to be launched by an MCP client. The vector backend must be
reachable at startup since there is no health endpoint to poll.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logging.Sync(logger) }()

	if err := cfg.Validate(); err != nil {
		return err
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
		return err
	}

	repos := repository.NewService(manager, logger)
	searcher := search.NewService(manager, logger, repository.RepoID)

	server, err := mcpserver.NewServer(repos, searcher, logger)
	if err != nil {
		return err
	}
	return server.Run(ctx)
}
