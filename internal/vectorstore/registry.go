package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
)

// storeFactory constructs a Store for one platform. Construction is cheap;
// the returned store connects lazily in Init.
type storeFactory func(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (Store, error)

// registry maps each platform tag to its constructor. The set is closed;
// adding a platform means adding an entry here and a config variant.
var registry = map[config.VectorPlatform]storeFactory{
	config.PlatformPgvector: newPgvectorStore,
	config.PlatformQdrant:   newQdrantStore,
	config.PlatformChroma:   newChromaStore,
}

// NewStore creates the Store selected by the configuration.
//
// Unknown platform tags return ErrUnsupportedPlatform; callers turn that
// into a failed initialization rather than a crash. Safe for concurrent use;
// the registry itself holds no state.
func NewStore(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (Store, error) {
	factory, ok := registry[cfg.Vector.Platform]
	if !ok {
		return nil, fmt.Errorf("%w: %q (supported: pgvector, qdrant, chroma)",
			ErrUnsupportedPlatform, cfg.Vector.Platform)
	}
	return factory(cfg, embedder, logger)
}
