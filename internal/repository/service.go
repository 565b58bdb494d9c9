// Package repository implements cloning and indexing of git repositories
// into the configured vector store.
//
// Indexing is incremental: file identifiers are content-addressed, so a
// re-index skips unchanged files, embeds only new or modified ones, and
// removes chunks whose files disappeared.
package repository

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/we0-dev/we0-index/internal/extension"
	"github.com/we0-dev/we0-index/internal/vectorstore"
)

const (
	// maxFileSize skips files too large to be useful retrieval context.
	maxFileSize = 1 << 20
	// fileConcurrency bounds parallel file reads and chunking.
	fileConcurrency = 100
	// upsertBatchSize bounds one vector store write.
	upsertBatchSize = 128
)

// skipDirs are directories never worth indexing.
var skipDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	".venv":        {},
	"__pycache__":  {},
}

// Result summarizes one indexing run.
type Result struct {
	RepoID        string `json:"repo_id"`
	IndexedFiles  int    `json:"indexed_files"`
	SkippedFiles  int    `json:"skipped_files"`
	RemovedFiles  int    `json:"removed_files"`
	IndexedChunks int    `json:"indexed_chunks"`
}

// Service clones repositories and writes their content to the vector store.
type Service struct {
	manager *extension.Manager
	logger  *zap.Logger
}

// NewService builds an indexing service on top of an initialized manager.
func NewService(manager *extension.Manager, logger *zap.Logger) *Service {
	return &Service{manager: manager, logger: logger}
}

type indexedFile struct {
	fileID       string
	relativePath string
	chunks       []string
}

// Credentials authenticates clones of private repositories over HTTPS.
// AccessToken takes precedence over Username and Password.
type Credentials struct {
	AccessToken string `json:"access_token,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

// basicAuth maps the credentials onto git HTTP basic auth. Personal
// access tokens go in the username slot with the x-oauth-basic password
// GitHub and GitLab expect. A nil or empty Credentials yields nil, which
// go-git treats as an anonymous clone.
func (c *Credentials) basicAuth() *githttp.BasicAuth {
	if c == nil {
		return nil
	}
	if c.AccessToken != "" {
		return &githttp.BasicAuth{Username: c.AccessToken, Password: "x-oauth-basic"}
	}
	if c.Username != "" && c.Password != "" {
		return &githttp.BasicAuth{Username: c.Username, Password: c.Password}
	}
	return nil
}

// CloneAndIndex shallow-clones a repository into a temporary directory,
// indexes it and cleans up. Branch is optional; empty means the remote
// default branch. Credentials are optional and only used for the clone;
// the repository identifier never depends on them.
func (s *Service) CloneAndIndex(ctx context.Context, repoURL, branch string, creds *Credentials) (*Result, error) {
	if repoURL == "" {
		return nil, fmt.Errorf("repository URL is required")
	}

	dir, err := os.MkdirTemp("", "we0-index-clone-*")
	if err != nil {
		return nil, fmt.Errorf("creating clone directory: %w", err)
	}
	defer os.RemoveAll(dir)

	opts := &git.CloneOptions{
		URL:          repoURL,
		Auth:         creds.basicAuth(),
		Depth:        1,
		SingleBranch: true,
	}
	if branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(branch)
	}

	s.logger.Info("cloning repository",
		zap.String("url", repoURL),
		zap.String("branch", branch))
	if _, err := git.PlainCloneContext(ctx, dir, false, opts); err != nil {
		return nil, fmt.Errorf("cloning %s: %w", repoURL, err)
	}

	return s.IndexDirectory(ctx, RepoID(repoURL), dir)
}

// IndexDirectory indexes the files under root for the given repository ID.
func (s *Service) IndexDirectory(ctx context.Context, repoID, root string) (*Result, error) {
	store, err := s.manager.Store()
	if err != nil {
		return nil, err
	}
	provider, err := s.manager.Provider()
	if err != nil {
		return nil, err
	}

	existing, err := store.Meta(ctx, repoID)
	if err != nil {
		return nil, fmt.Errorf("loading existing index: %w", err)
	}
	known := make(map[string]struct{}, len(existing))
	for _, meta := range existing {
		known[meta.FileID] = struct{}{}
	}

	paths, err := collectFiles(root)
	if err != nil {
		return nil, err
	}

	result := &Result{RepoID: repoID}

	var (
		mu    sync.Mutex
		files []indexedFile
		live  = make(map[string]struct{})
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fileConcurrency)
	for _, relPath := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			file, ok, err := readFile(root, relPath, repoID)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			if !ok {
				result.SkippedFiles++
				return nil
			}
			live[file.fileID] = struct{}{}
			if _, indexed := known[file.fileID]; indexed {
				result.SkippedFiles++
				return nil
			}
			files = append(files, file)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Files that vanished or changed content leave stale chunks behind.
	var stale []string
	for _, meta := range existing {
		if _, ok := live[meta.FileID]; !ok {
			stale = append(stale, meta.FileID)
		}
	}
	if len(stale) > 0 {
		if err := store.Delete(ctx, repoID, stale); err != nil {
			return nil, fmt.Errorf("removing stale files: %w", err)
		}
		result.RemovedFiles = len(stale)
	}

	for _, file := range files {
		vectors, err := provider.EmbedDocuments(ctx, file.chunks)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", file.relativePath, err)
		}
		if len(vectors) != len(file.chunks) {
			return nil, fmt.Errorf("embedding %s: got %d vectors for %d chunks",
				file.relativePath, len(vectors), len(file.chunks))
		}

		docs := make([]vectorstore.Document, len(file.chunks))
		for i, chunk := range file.chunks {
			docs[i] = vectorstore.Document{
				ID:      ChunkID(file.fileID, i),
				Content: chunk,
				Vector:  vectors[i],
				Meta: vectorstore.DocumentMeta{
					RepoID:       repoID,
					FileID:       file.fileID,
					RelativePath: file.relativePath,
				},
			}
		}
		for start := 0; start < len(docs); start += upsertBatchSize {
			end := min(start+upsertBatchSize, len(docs))
			if err := store.Upsert(ctx, docs[start:end]); err != nil {
				return nil, fmt.Errorf("storing %s: %w", file.relativePath, err)
			}
		}

		result.IndexedFiles++
		result.IndexedChunks += len(docs)
	}

	s.logger.Info("repository indexed",
		zap.String("repo_id", repoID),
		zap.Int("indexed_files", result.IndexedFiles),
		zap.Int("skipped_files", result.SkippedFiles),
		zap.Int("removed_files", result.RemovedFiles),
		zap.Int("chunks", result.IndexedChunks))
	return result, nil
}

// Drop removes everything indexed for a repository.
func (s *Service) Drop(ctx context.Context, repoID string) error {
	store, err := s.manager.Store()
	if err != nil {
		return err
	}
	return store.Drop(ctx, repoID)
}

// Meta lists the files currently indexed for a repository.
func (s *Service) Meta(ctx context.Context, repoID string) ([]vectorstore.DocumentMeta, error) {
	store, err := s.manager.Store()
	if err != nil {
		return nil, err
	}
	return store.Meta(ctx, repoID)
}

// readFile loads and chunks one file. The second return value is false
// for files that should be skipped (binary, oversized, empty).
func readFile(root, relPath, repoID string) (indexedFile, bool, error) {
	full := filepath.Join(root, relPath)
	info, err := os.Lstat(full)
	if err != nil {
		return indexedFile{}, false, fmt.Errorf("inspecting %s: %w", relPath, err)
	}
	if !info.Mode().IsRegular() || info.Size() == 0 || info.Size() > maxFileSize {
		return indexedFile{}, false, nil
	}

	content, err := os.ReadFile(full)
	if err != nil {
		return indexedFile{}, false, fmt.Errorf("reading %s: %w", relPath, err)
	}
	if isBinary(content) {
		return indexedFile{}, false, nil
	}

	chunks := chunkLines(string(content))
	if len(chunks) == 0 {
		return indexedFile{}, false, nil
	}

	return indexedFile{
		fileID:       FileID(repoID, relPath, content),
		relativePath: relPath,
		chunks:       chunks,
	}, true, nil
}

func collectFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking repository tree: %w", err)
	}
	return paths, nil
}

// isBinary uses the same heuristic as git: a NUL byte near the start of
// the file, or invalid UTF-8 overall.
func isBinary(content []byte) bool {
	head := content
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return true
	}
	return !utf8.Valid(content)
}
