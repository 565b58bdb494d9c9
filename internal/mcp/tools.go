package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/repository"
	"github.com/we0-dev/we0-index/internal/search"
)

type cloneAndIndexInput struct {
	RepoURL     string `json:"repo_url" jsonschema:"required,Git clone URL of the repository to index"`
	Branch      string `json:"branch,omitempty" jsonschema:"Branch to index; defaults to the remote default branch"`
	AccessToken string `json:"access_token,omitempty" jsonschema:"Personal access token for private repositories"`
	Username    string `json:"username,omitempty" jsonschema:"Username for private repositories; used with password"`
	Password    string `json:"password,omitempty" jsonschema:"Password for private repositories; used with username"`
}

type cloneAndIndexOutput struct {
	RepoID        string `json:"repo_id" jsonschema:"Deterministic repository identifier for later retrieval"`
	IndexedFiles  int    `json:"indexed_files" jsonschema:"Files embedded in this run"`
	SkippedFiles  int    `json:"skipped_files" jsonschema:"Files skipped as unchanged, binary or oversized"`
	RemovedFiles  int    `json:"removed_files" jsonschema:"Stale files removed from the index"`
	IndexedChunks int    `json:"indexed_chunks" jsonschema:"Chunks written to the vector store"`
}

type retrievalInput struct {
	RepoURL string   `json:"repo_url,omitempty" jsonschema:"Git clone URL of an indexed repository"`
	RepoID  string   `json:"repo_id,omitempty" jsonschema:"Repository identifier returned by clone_and_index"`
	Query   string   `json:"query" jsonschema:"required,Natural language query"`
	FileIDs []string `json:"file_ids,omitempty" jsonschema:"Restrict retrieval to these file identifiers"`
	TopK    int      `json:"top_k,omitempty" jsonschema:"Number of chunks to return; defaults to 5"`
}

type retrievalChunk struct {
	Content      string  `json:"content" jsonschema:"Chunk text"`
	Score        float32 `json:"score" jsonschema:"Cosine similarity score"`
	RelativePath string  `json:"relative_path" jsonschema:"File path within the repository"`
	FileID       string  `json:"file_id" jsonschema:"File identifier"`
}

type retrievalOutput struct {
	Chunks []retrievalChunk `json:"chunks" jsonschema:"Matching chunks ordered by similarity"`
}

func (s *Server) registerTools() {
	// clone_and_index
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "clone_and_index",
		Description: "Clone a git repository and index its content for semantic retrieval",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args cloneAndIndexInput) (*mcp.CallToolResult, cloneAndIndexOutput, error) {
		result, err := s.repos.CloneAndIndex(ctx, args.RepoURL, args.Branch, &repository.Credentials{
			AccessToken: args.AccessToken,
			Username:    args.Username,
			Password:    args.Password,
		})
		if err != nil {
			s.logger.Error("clone_and_index failed",
				zap.String("repo_url", args.RepoURL),
				zap.Error(err))
			return nil, cloneAndIndexOutput{}, fmt.Errorf("indexing failed: %w", err)
		}

		out := cloneAndIndexOutput{
			RepoID:        result.RepoID,
			IndexedFiles:  result.IndexedFiles,
			SkippedFiles:  result.SkippedFiles,
			RemovedFiles:  result.RemovedFiles,
			IndexedChunks: result.IndexedChunks,
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Indexed %d files (%d chunks) as repo %s",
					out.IndexedFiles, out.IndexedChunks, out.RepoID)},
			},
		}, out, nil
	})

	// retrieval
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "retrieval",
		Description: "Retrieve the most relevant code chunks from an indexed repository",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args retrievalInput) (*mcp.CallToolResult, retrievalOutput, error) {
		docs, err := s.search.Search(ctx, search.Request{
			RepoID:  args.RepoID,
			RepoURL: args.RepoURL,
			Query:   args.Query,
			FileIDs: args.FileIDs,
			TopK:    args.TopK,
		})
		if err != nil {
			s.logger.Warn("retrieval failed", zap.Error(err))
			return nil, retrievalOutput{}, fmt.Errorf("retrieval failed: %w", err)
		}

		out := retrievalOutput{Chunks: make([]retrievalChunk, len(docs))}
		for i, doc := range docs {
			out.Chunks[i] = retrievalChunk{
				Content:      doc.Content,
				Score:        doc.Score,
				RelativePath: doc.Meta.RelativePath,
				FileID:       doc.Meta.FileID,
			}
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Found %d matching chunks", len(out.Chunks))},
			},
		}, out, nil
	})

	// drop_index
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "drop_index",
		Description: "Remove everything indexed for a repository",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args dropIndexInput) (*mcp.CallToolResult, dropIndexOutput, error) {
		repoID := args.RepoID
		if repoID == "" {
			if args.RepoURL == "" {
				return nil, dropIndexOutput{}, fmt.Errorf("repo_id or repo_url is required")
			}
			repoID = repository.RepoID(args.RepoURL)
		}

		if err := s.repos.Drop(ctx, repoID); err != nil {
			s.logger.Error("drop_index failed",
				zap.String("repo_id", repoID),
				zap.Error(err))
			return nil, dropIndexOutput{}, fmt.Errorf("drop failed: %w", err)
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Dropped index for repo %s", repoID)},
			},
		}, dropIndexOutput{RepoID: repoID, Dropped: true}, nil
	})
}

type dropIndexInput struct {
	RepoURL string `json:"repo_url,omitempty" jsonschema:"Git clone URL of an indexed repository"`
	RepoID  string `json:"repo_id,omitempty" jsonschema:"Repository identifier returned by clone_and_index"`
}

type dropIndexOutput struct {
	RepoID  string `json:"repo_id" jsonschema:"Repository identifier"`
	Dropped bool   `json:"dropped" jsonschema:"Whether the index was removed"`
}
