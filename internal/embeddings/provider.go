// Package embeddings provides embedding generation via multiple providers.
package embeddings

import (
	"context"
	"errors"
	"fmt"

	"github.com/we0-dev/we0-index/internal/config"
)

var (
	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrEmbeddingFailed indicates embedding generation failure.
	ErrEmbeddingFailed = errors.New("embedding generation failed")

	// ErrUnsupportedProvider indicates an unknown embedding provider tag.
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
)

// maxBatchSize is the largest input batch a single embedding request carries.
// Larger inputs are split transparently.
const maxBatchSize = 2048

// Provider is the interface for embedding-model clients.
type Provider interface {
	// EmbedDocuments generates embeddings for multiple texts.
	// Returns one embedding per input text.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery generates an embedding for a single query.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the configured model identifier.
	ModelName() string

	// Type returns the provider tag.
	Type() config.ModelProvider

	// Close releases resources held by the provider.
	Close() error
}

// NewProvider creates an embedding provider for the given tag and model.
//
// Unknown tags return ErrUnsupportedProvider; callers turn that into a failed
// initialization rather than a crash.
func NewProvider(provider config.ModelProvider, model string) (Provider, error) {
	switch provider {
	case config.ProviderOpenAI:
		return NewOpenAIProvider(model)
	case config.ProviderJina:
		return NewJinaProvider(model)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, provider)
	}
}
