package vectorstore

import (
	"context"
	"fmt"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
)

// ChromaStore is an embedded Store backed by chromem-go.
//
// Disk mode persists to a local directory with gzip compression, memory
// mode keeps everything in process. There is no server to connect to, so
// Init only opens the database and resolves the collection.
type ChromaStore struct {
	base

	cfg    *config.ChromaConfig
	logger *zap.Logger

	db         *chromem.DB
	collection *chromem.Collection
}

func newChromaStore(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (Store, error) {
	cc := cfg.Vector.Chroma
	if cc == nil {
		return nil, fmt.Errorf("%w: chroma configuration is missing", ErrInvalidConfig)
	}
	switch cc.Mode {
	case config.ChromaModeDisk:
		if cc.Disk == nil || cc.Disk.Path == "" {
			return nil, fmt.Errorf("%w: chroma disk path is required", ErrInvalidConfig)
		}
	case config.ChromaModeMemory:
	default:
		return nil, fmt.Errorf("%w: unknown chroma mode: %q", ErrInvalidConfig, cc.Mode)
	}

	return &ChromaStore{
		base:   newBase(embedder),
		cfg:    cc,
		logger: logger,
	}, nil
}

// Init opens the database and ensures the model-specific collection exists.
func (s *ChromaStore) Init(ctx context.Context) error {
	if s.cfg.Mode == config.ChromaModeDisk {
		db, err := chromem.NewPersistentDB(s.cfg.Disk.Path, true)
		if err != nil {
			return fmt.Errorf("%w: opening chroma database at %s: %v", ErrConnectionFailed, s.cfg.Disk.Path, err)
		}
		s.db = db
	} else {
		s.db = chromem.NewDB()
	}

	dimension, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	name := s.collectionName(dimension)

	collection, err := s.db.GetOrCreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	s.collection = collection

	s.logger.Info("chroma collection ready",
		zap.String("collection", name),
		zap.String("mode", string(s.cfg.Mode)),
		zap.Int("dimension", dimension))
	return nil
}

// embeddingFunc adapts the provider for chromem, which embeds on demand
// when a document arrives without a vector.
func (s *ChromaStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

// Upsert inserts or replaces documents, keyed by document ID.
func (s *ChromaStore) Upsert(ctx context.Context, docs []Document) error {
	if len(docs) == 0 {
		return ErrEmptyDocuments
	}

	chromemDocs := make([]chromem.Document, len(docs))
	for i, doc := range docs {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Embedding: doc.Vector,
			Metadata: map[string]string{
				"repo_id":       doc.Meta.RepoID,
				"file_id":       doc.Meta.FileID,
				"relative_path": doc.Meta.RelativePath,
			},
		}
	}

	if err := s.collection.AddDocuments(ctx, chromemDocs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

// Meta returns the metadata of all files indexed for a repository.
func (s *ChromaStore) Meta(ctx context.Context, repoID string) ([]DocumentMeta, error) {
	results, err := s.queryRepo(ctx, repoID, s.collection.Count())
	if err != nil {
		return nil, fmt.Errorf("listing repo %s: %w", repoID, err)
	}

	seen := make(map[string]struct{}, len(results))
	metas := make([]DocumentMeta, 0, len(results))
	for _, r := range results {
		meta := metaFromStringMap(r.Metadata)
		if _, ok := seen[meta.FileID]; ok {
			continue
		}
		seen[meta.FileID] = struct{}{}
		metas = append(metas, meta)
	}
	return metas, nil
}

// Drop removes everything indexed for a repository.
func (s *ChromaStore) Drop(ctx context.Context, repoID string) error {
	err := s.collection.Delete(ctx, map[string]string{"repo_id": repoID}, nil)
	if err != nil {
		return fmt.Errorf("dropping repo %s: %w", repoID, err)
	}
	return nil
}

// Delete removes the documents of the given files from a repository.
// The where filter is a conjunction, so files are deleted one at a time.
func (s *ChromaStore) Delete(ctx context.Context, repoID string, fileIDs []string) error {
	for _, fileID := range fileIDs {
		where := map[string]string{"repo_id": repoID, "file_id": fileID}
		if err := s.collection.Delete(ctx, where, nil); err != nil {
			return fmt.Errorf("deleting file %s: %w", fileID, err)
		}
	}
	return nil
}

// SearchByVector performs similarity search within a repository.
func (s *ChromaStore) SearchByVector(ctx context.Context, repoID string, fileIDs []string, vector []float32, topK int) ([]Document, error) {
	// File filtering happens client-side, so fetch the whole repo slice
	// when files are named and truncate after.
	k := topK
	if len(fileIDs) > 0 {
		k = s.collection.Count()
	}

	results, err := s.queryRepoEmbedding(ctx, repoID, vector, k)
	if err != nil {
		return nil, fmt.Errorf("searching repo %s: %w", repoID, err)
	}

	wanted := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		wanted[id] = struct{}{}
	}

	docs := make([]Document, 0, topK)
	for _, r := range results {
		meta := metaFromStringMap(r.Metadata)
		if len(wanted) > 0 {
			if _, ok := wanted[meta.FileID]; !ok {
				continue
			}
		}
		docs = append(docs, Document{
			ID:      r.ID,
			Content: r.Content,
			Score:   r.Similarity,
			Meta:    meta,
		})
		if len(docs) == topK {
			break
		}
	}
	return docs, nil
}

// queryRepo retrieves up to k documents of a repository ordered by
// similarity to a fixed probe vector. Used for metadata listing where
// order does not matter.
func (s *ChromaStore) queryRepo(ctx context.Context, repoID string, k int) ([]chromem.Result, error) {
	dimension, err := s.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dimension == 0 {
		return nil, nil
	}
	probe := make([]float32, dimension)
	probe[0] = 1
	return s.queryRepoEmbedding(ctx, repoID, probe, k)
}

func (s *ChromaStore) queryRepoEmbedding(ctx context.Context, repoID string, vector []float32, k int) ([]chromem.Result, error) {
	// chromem rejects nResults above the collection size.
	if count := s.collection.Count(); k > count {
		k = count
	}
	if k <= 0 {
		return nil, nil
	}
	return s.collection.QueryEmbedding(ctx, vector, k, map[string]string{"repo_id": repoID}, nil)
}

// Close is a no-op: chromem holds no external connections and persists
// synchronously on write.
func (s *ChromaStore) Close() error {
	return nil
}

func metaFromStringMap(metadata map[string]string) DocumentMeta {
	return DocumentMeta{
		RepoID:       metadata["repo_id"],
		FileID:       metadata["file_id"],
		RelativePath: metadata["relative_path"],
	}
}

// Ensure ChromaStore implements Store.
var _ Store = (*ChromaStore)(nil)
