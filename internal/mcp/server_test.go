package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/repository"
	"github.com/we0-dev/we0-index/internal/search"
)

func TestNewServerValidation(t *testing.T) {
	logger := zap.NewNop()
	repos := repository.NewService(nil, logger)
	searcher := search.NewService(nil, logger, func(string) string { return "" })

	_, err := NewServer(nil, searcher, logger)
	assert.ErrorContains(t, err, "repository service is required")

	_, err = NewServer(repos, nil, logger)
	assert.ErrorContains(t, err, "search service is required")

	_, err = NewServer(repos, searcher, nil)
	assert.ErrorContains(t, err, "logger is required")

	server, err := NewServer(repos, searcher, logger)
	require.NoError(t, err)
	assert.NotNil(t, server)
}
