package embeddings

import (
	"context"
	"fmt"
	"os"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/we0-dev/we0-index/internal/config"
)

// OpenAIProvider generates embeddings through the OpenAI embeddings API.
//
// It wraps langchaingo's embeddings abstraction; the same client also serves
// OpenAI-compatible endpoints when OPENAI_BASE_URL is set.
type OpenAIProvider struct {
	embedder *lcembeddings.EmbedderImpl
	model    string
}

// NewOpenAIProvider creates an OpenAI embedding provider for the given model.
//
// The API key is read from OPENAI_API_KEY. A missing key is not an error
// here — requests will fail at use, which the health probe reports.
func NewOpenAIProvider(model string) (*OpenAIProvider, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		// langchaingo refuses to construct without a token.
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := lcembeddings.NewEmbedder(llm,
		lcembeddings.WithBatchSize(maxBatchSize),
		lcembeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder: embedder,
		model:    model,
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *OpenAIProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *OpenAIProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err := p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// ModelName returns the configured model identifier.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// Type returns the provider tag.
func (p *OpenAIProvider) Type() config.ModelProvider {
	return config.ProviderOpenAI
}

// Close is a no-op; the client is plain HTTP.
func (p *OpenAIProvider) Close() error {
	return nil
}
