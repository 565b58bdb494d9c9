// Package mcp exposes we0-index over the Model Context Protocol so
// agent runtimes can index repositories and retrieve context directly.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/repository"
	"github.com/we0-dev/we0-index/internal/search"
	"github.com/we0-dev/we0-index/internal/version"
)

const serverName = "We0 Index"

// Server wires the indexing and retrieval services into an MCP server on
// the stdio transport.
type Server struct {
	mcp    *mcp.Server
	repos  *repository.Service
	search *search.Service
	logger *zap.Logger
}

// NewServer creates the MCP server with all tools registered.
func NewServer(repos *repository.Service, searcher *search.Service, logger *zap.Logger) (*Server, error) {
	if repos == nil {
		return nil, fmt.Errorf("repository service is required")
	}
	if searcher == nil {
		return nil, fmt.Errorf("search service is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	s := &Server{
		mcp: mcp.NewServer(
			&mcp.Implementation{
				Name:    serverName,
				Version: version.Version,
			},
			nil,
		),
		repos:  repos,
		search: searcher,
		logger: logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves MCP requests on stdio until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server on stdio transport")
	transport := &mcp.StdioTransport{}
	if err := s.mcp.Run(ctx, transport); err != nil {
		return fmt.Errorf("server run failed: %w", err)
	}
	return nil
}
