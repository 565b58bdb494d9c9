// Package search implements semantic retrieval over indexed repositories.
package search

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/extension"
	"github.com/we0-dev/we0-index/internal/vectorstore"
)

// DefaultTopK is used when a request does not specify a result count.
const DefaultTopK = 5

// maxTopK caps a single retrieval request.
const maxTopK = 100

// Request describes one retrieval call. Exactly one of RepoID or RepoURL
// must be set; FileIDs optionally narrows the search.
type Request struct {
	RepoID  string   `json:"repo_id,omitempty"`
	RepoURL string   `json:"repo_url,omitempty"`
	Query   string   `json:"query"`
	FileIDs []string `json:"file_ids,omitempty"`
	TopK    int      `json:"top_k,omitempty"`
}

// Service answers retrieval requests against the vector store.
type Service struct {
	manager *extension.Manager
	logger  *zap.Logger

	// repoID resolves a clone URL to a repository identifier. Indirect
	// so tests can avoid the uuid coupling.
	repoID func(url string) string
}

// NewService builds a retrieval service on top of an initialized manager.
func NewService(manager *extension.Manager, logger *zap.Logger, repoID func(string) string) *Service {
	return &Service{manager: manager, logger: logger, repoID: repoID}
}

// Search embeds the query and returns the closest chunks of the repository.
func (s *Service) Search(ctx context.Context, req Request) ([]vectorstore.Document, error) {
	if req.Query == "" {
		return nil, fmt.Errorf("query is required")
	}

	repoID := req.RepoID
	if repoID == "" {
		if req.RepoURL == "" {
			return nil, fmt.Errorf("repo_id or repo_url is required")
		}
		repoID = s.repoID(req.RepoURL)
	}

	topK := req.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	provider, err := s.manager.Provider()
	if err != nil {
		return nil, err
	}
	store, err := s.manager.Store()
	if err != nil {
		return nil, err
	}

	vector, err := provider.EmbedQuery(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	docs, err := store.SearchByVector(ctx, repoID, req.FileIDs, vector, topK)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("retrieval completed",
		zap.String("repo_id", repoID),
		zap.Int("top_k", topK),
		zap.Int("results", len(docs)))
	return docs, nil
}
