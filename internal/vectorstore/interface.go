// Package vectorstore provides vector storage implementations for we0-index.
//
// A Store holds indexed code segments for one collection per embedding model
// and answers similarity queries. Implementations exist for pgvector, qdrant
// and chroma; the registry selects one from the configured platform.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors for vector store operations.
var (
	// ErrUnsupportedPlatform is returned by the registry for unknown platform tags.
	ErrUnsupportedPlatform = errors.New("unsupported vector platform")

	// ErrInvalidConfig indicates invalid store configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector store")

	// ErrEmptyDocuments indicates empty or nil documents.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// ValidateCollectionName validates a collection name.
// Rejects uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// Store is the interface for vector storage operations.
//
// Documents arrive with their embeddings already computed by the indexing
// pipeline; stores never embed content themselves. The embedder bound at
// construction is used only to discover the vector dimension, which also
// fixes the collection name.
//
// Implementations:
//   - PgvectorStore: PostgreSQL with the pgvector extension
//   - QdrantStore: external qdrant server over gRPC
//   - ChromaStore: embedded chromem-go engine
type Store interface {
	// Init connects to the backend and ensures the model-specific collection
	// exists. It may involve network or disk I/O and can fail.
	Init(ctx context.Context) error

	// Upsert inserts or replaces documents, keyed by document ID.
	Upsert(ctx context.Context, docs []Document) error

	// Meta returns the metadata of all files indexed for a repository.
	Meta(ctx context.Context, repoID string) ([]DocumentMeta, error)

	// Drop removes everything indexed for a repository.
	Drop(ctx context.Context, repoID string) error

	// Delete removes the documents of the given files from a repository.
	Delete(ctx context.Context, repoID string, fileIDs []string) error

	// SearchByVector performs similarity search within a repository,
	// optionally restricted to the given file IDs. Results are ordered by
	// score, highest first.
	SearchByVector(ctx context.Context, repoID string, fileIDs []string, vector []float32, topK int) ([]Document, error)

	// Dimension returns the embedding dimension of the bound model.
	Dimension(ctx context.Context) (int, error)

	// Close releases the backend connection and resources.
	Close() error
}
