package repository

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
	"github.com/we0-dev/we0-index/internal/extension"
	"github.com/we0-dev/we0-index/internal/vectorstore"
)

type fakeProvider struct{}

func (f *fakeProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (f *fakeProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 2, 3}, nil
}

func (f *fakeProvider) ModelName() string          { return "fake-model" }
func (f *fakeProvider) Type() config.ModelProvider { return config.ProviderOpenAI }
func (f *fakeProvider) Close() error               { return nil }

// recordingStore keeps everything in memory and records deletions.
type recordingStore struct {
	docs    map[string]vectorstore.Document
	deleted [][]string
	dropped []string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{docs: make(map[string]vectorstore.Document)}
}

func (s *recordingStore) Init(ctx context.Context) error { return nil }

func (s *recordingStore) Upsert(ctx context.Context, docs []vectorstore.Document) error {
	for _, d := range docs {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *recordingStore) Meta(ctx context.Context, repoID string) ([]vectorstore.DocumentMeta, error) {
	seen := map[string]struct{}{}
	var metas []vectorstore.DocumentMeta
	for _, d := range s.docs {
		if d.Meta.RepoID != repoID {
			continue
		}
		if _, ok := seen[d.Meta.FileID]; ok {
			continue
		}
		seen[d.Meta.FileID] = struct{}{}
		metas = append(metas, d.Meta)
	}
	return metas, nil
}

func (s *recordingStore) Drop(ctx context.Context, repoID string) error {
	s.dropped = append(s.dropped, repoID)
	for id, d := range s.docs {
		if d.Meta.RepoID == repoID {
			delete(s.docs, id)
		}
	}
	return nil
}

func (s *recordingStore) Delete(ctx context.Context, repoID string, fileIDs []string) error {
	s.deleted = append(s.deleted, fileIDs)
	wanted := map[string]struct{}{}
	for _, id := range fileIDs {
		wanted[id] = struct{}{}
	}
	for id, d := range s.docs {
		if d.Meta.RepoID != repoID {
			continue
		}
		if _, ok := wanted[d.Meta.FileID]; ok {
			delete(s.docs, id)
		}
	}
	return nil
}

func (s *recordingStore) SearchByVector(ctx context.Context, repoID string, fileIDs []string, vector []float32, topK int) ([]vectorstore.Document, error) {
	return nil, nil
}

func (s *recordingStore) Dimension(ctx context.Context) (int, error) { return 3, nil }
func (s *recordingStore) Close() error                               { return nil }

func newTestService(t *testing.T, store *recordingStore) *Service {
	t.Helper()
	cfg := &config.Config{
		Vector: config.VectorConfig{
			Platform:          config.PlatformChroma,
			EmbeddingProvider: config.ProviderOpenAI,
			EmbeddingModel:    "fake-model",
			Chroma:            &config.ChromaConfig{Mode: config.ChromaModeMemory},
		},
	}
	manager := extension.New(cfg, zap.NewNop(),
		extension.WithProviderFactory(func(p config.ModelProvider, model string) (embeddings.Provider, error) {
			return &fakeProvider{}, nil
		}),
		extension.WithStoreFactory(func(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (vectorstore.Store, error) {
			return store, nil
		}),
	)
	require.NoError(t, manager.Init(context.Background()))
	return NewService(manager, zap.NewNop())
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestIndexDirectory(t *testing.T) {
	store := newRecordingStore()
	svc := newTestService(t, store)

	root := writeTree(t, map[string]string{
		"main.go":             "package main\n\nfunc main() {}\n",
		"internal/util.go":    "package internal\n",
		".git/config":         "[core]\n",
		"node_modules/x/y.js": "module.exports = {}\n",
		"assets/logo.bin":     "\x00\x01\x02binary",
	})

	result, err := svc.IndexDirectory(context.Background(), "repo-1", root)
	require.NoError(t, err)

	assert.Equal(t, "repo-1", result.RepoID)
	assert.Equal(t, 2, result.IndexedFiles)
	assert.Equal(t, 1, result.SkippedFiles) // the binary file
	assert.Equal(t, 0, result.RemovedFiles)
	assert.Equal(t, 2, result.IndexedChunks)

	for _, d := range store.docs {
		assert.Equal(t, "repo-1", d.Meta.RepoID)
		assert.NotContains(t, d.Meta.RelativePath, ".git")
		assert.NotContains(t, d.Meta.RelativePath, "node_modules")
		assert.Len(t, d.Vector, 3)
	}
}

func TestIndexDirectoryIncremental(t *testing.T) {
	store := newRecordingStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	root := writeTree(t, map[string]string{
		"a.go": "package a\n",
		"b.go": "package b\n",
	})

	first, err := svc.IndexDirectory(ctx, "repo-1", root)
	require.NoError(t, err)
	assert.Equal(t, 2, first.IndexedFiles)

	// Unchanged tree: everything is skipped.
	second, err := svc.IndexDirectory(ctx, "repo-1", root)
	require.NoError(t, err)
	assert.Equal(t, 0, second.IndexedFiles)
	assert.Equal(t, 2, second.SkippedFiles)
	assert.Equal(t, 0, second.RemovedFiles)

	// One file changes, one disappears.
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.go"), []byte("package a // changed\n"), 0o644))
	require.NoError(t, os.Remove(filepath.Join(root, "b.go")))

	third, err := svc.IndexDirectory(ctx, "repo-1", root)
	require.NoError(t, err)
	assert.Equal(t, 1, third.IndexedFiles)
	// The old a.go and the removed b.go are both stale.
	assert.Equal(t, 2, third.RemovedFiles)

	metas, err := store.Meta(ctx, "repo-1")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "a.go", metas[0].RelativePath)
}

func TestCloneAndIndexRequiresURL(t *testing.T) {
	svc := newTestService(t, newRecordingStore())
	_, err := svc.CloneAndIndex(context.Background(), "", "", nil)
	require.Error(t, err)
}

func TestCredentialsBasicAuth(t *testing.T) {
	var none *Credentials
	assert.Nil(t, none.basicAuth())
	assert.Nil(t, (&Credentials{}).basicAuth())
	assert.Nil(t, (&Credentials{Username: "alice"}).basicAuth())

	token := (&Credentials{AccessToken: "ghp_secret"}).basicAuth()
	require.NotNil(t, token)
	assert.Equal(t, "ghp_secret", token.Username)
	assert.Equal(t, "x-oauth-basic", token.Password)

	// The token wins when both forms are supplied.
	both := (&Credentials{AccessToken: "ghp_secret", Username: "alice", Password: "pw"}).basicAuth()
	require.NotNil(t, both)
	assert.Equal(t, "ghp_secret", both.Username)

	basic := (&Credentials{Username: "alice", Password: "p@ss word"}).basicAuth()
	require.NotNil(t, basic)
	assert.Equal(t, "alice", basic.Username)
	assert.Equal(t, "p@ss word", basic.Password)
}

func TestNormalizeRepoURL(t *testing.T) {
	for _, url := range []string{
		"git@github.com:we0-dev/we0",
		"git@github.com:we0-dev/we0.git",
		"http://github.com/we0-dev/we0",
		"https://github.com/we0-dev/we0",
		"https://github.com/we0-dev/we0.git",
		"https://github.com/we0-dev/we0.git/",
		"https://GitHub.com/we0-dev/we0.git",
		"https://alice@github.com/we0-dev/we0.git",
		" https://github.com/we0-dev/we0 ",
	} {
		normalized, ok := NormalizeRepoURL(url)
		require.True(t, ok, url)
		assert.Equal(t, "github.com/we0-dev/we0", normalized, url)
	}

	gitlab, ok := NormalizeRepoURL("git@gitlab.com:group/project.git")
	require.True(t, ok)
	assert.Equal(t, "gitlab.com/group/project", gitlab)

	for _, url := range []string{
		"we0-dev/we0",
		"github.com/we0-dev/we0",
		"/home/alice/repos/we0",
		"",
	} {
		_, ok := NormalizeRepoURL(url)
		assert.False(t, ok, url)
	}
}

func TestDeterministicIDs(t *testing.T) {
	repoA := RepoID("https://github.com/acme/widgets.git")
	assert.Equal(t, repoA, RepoID("https://github.com/acme/widgets.git"))
	assert.NotEqual(t, repoA, RepoID("https://github.com/acme/gadgets.git"))

	// Every spelling of one repository shares an identifier.
	assert.Equal(t, repoA, RepoID("https://github.com/acme/widgets"))
	assert.Equal(t, repoA, RepoID("git@github.com:acme/widgets.git"))
	assert.Equal(t, repoA, RepoID("git@github.com:acme/widgets"))

	// Unparseable input still hashes deterministically.
	local := RepoID("/home/alice/repos/widgets")
	assert.Equal(t, local, RepoID("/home/alice/repos/widgets"))
	assert.NotEqual(t, repoA, local)

	content := []byte("package main\n")
	fileA := FileID(repoA, "main.go", content)
	assert.Equal(t, fileA, FileID(repoA, "main.go", content))
	assert.NotEqual(t, fileA, FileID(repoA, "main.go", []byte("package main // v2\n")))
	assert.NotEqual(t, fileA, FileID(repoA, "other.go", content))

	assert.NotEqual(t, ChunkID(fileA, 0), ChunkID(fileA, 1))

	// All IDs are valid UUIDs, required by the qdrant point ID format.
	assert.Len(t, repoA, 36)
	assert.Len(t, fileA, 36)
}

func TestChunkLines(t *testing.T) {
	t.Run("small file is one chunk", func(t *testing.T) {
		chunks := chunkLines("line one\nline two\n")
		require.Len(t, chunks, 1)
		assert.Equal(t, "line one\nline two\n", chunks[0])
	})

	t.Run("splits at line budget", func(t *testing.T) {
		content := strings.Repeat("x\n", chunkMaxLines+10)
		chunks := chunkLines(content)
		require.Len(t, chunks, 2)
		assert.Equal(t, content, strings.Join(chunks, ""))
	})

	t.Run("splits at byte budget", func(t *testing.T) {
		long := strings.Repeat("a", chunkMaxBytes-100) + "\n"
		chunks := chunkLines(long + long)
		assert.Len(t, chunks, 2)
	})

	t.Run("blank content yields nothing", func(t *testing.T) {
		assert.Empty(t, chunkLines("\n\n  \n"))
	})
}

func TestIsBinary(t *testing.T) {
	assert.True(t, isBinary([]byte{0x00, 0x01, 0x02}))
	assert.True(t, isBinary([]byte{0xff, 0xfe, 0x41}))
	assert.False(t, isBinary([]byte("plain text\n")))
	assert.False(t, isBinary([]byte("uniçode is fine\n")))
}
