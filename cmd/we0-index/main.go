// Package main implements the we0-index CLI: a code-indexing service that
// clones git repositories, embeds their content and serves semantic
// retrieval over HTTP and the Model Context Protocol.
//
// Configuration is loaded from resource/{env}.yaml where env comes from
// WE0_INDEX_ENV (default "dev"), with WE0_INDEX_* environment overrides.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/logging"
	"github.com/we0-dev/we0-index/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "we0-index",
	Short: "Code indexing and semantic retrieval service",
	Long: `we0-index clones git repositories, chunks and embeds their content
and answers semantic retrieval queries against a pluggable vector store
(pgvector, qdrant or chroma).`,
	Version: version.Version,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("we0-index %s (commit %s, built %s)\n",
			version.Version, version.Commit, version.Date)
	},
}

// bootstrap loads configuration and builds the logger shared by the
// serve and mcp commands.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}
