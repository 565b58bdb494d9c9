package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/we0-dev/we0-index/internal/embeddings"
)

// dimensionProbe is the fixed input used to discover the model dimension.
const dimensionProbe = "get_embedding_dimension"

// base carries the embedder binding shared by all store implementations.
//
// The vector dimension is discovered by embedding a fixed probe string once
// and cached for the store's lifetime; the collection name derives from the
// model and that dimension, so every model gets its own collection.
type base struct {
	embedder embeddings.Provider

	mu  sync.Mutex
	dim int
}

func newBase(embedder embeddings.Provider) base {
	return base{embedder: embedder}
}

// Dimension returns the embedding dimension of the bound model, probing the
// provider on first use.
func (b *base) Dimension(ctx context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dim > 0 {
		return b.dim, nil
	}

	vectors, err := b.embedder.EmbedDocuments(ctx, []string{dimensionProbe})
	if err != nil {
		return 0, fmt.Errorf("probing embedding dimension: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("%w: dimension probe returned no vector", embeddings.ErrEmbeddingFailed)
	}

	b.dim = len(vectors[0])
	return b.dim, nil
}

// collectionName returns the model-specific collection name.
func (b *base) collectionName(dimension int) string {
	name := fmt.Sprintf("we0_index_%s_%d", b.embedder.ModelName(), dimension)
	// Backend naming rules allow [a-z0-9_] only.
	replacer := strings.NewReplacer("-", "_", "/", "_", ".", "_")
	return strings.ToLower(replacer.Replace(name))
}
