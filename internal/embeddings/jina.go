package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/we0-dev/we0-index/internal/config"
)

// defaultJinaBaseURL is the Jina embeddings API endpoint.
const defaultJinaBaseURL = "https://api.jina.ai/v1"

// JinaProvider generates embeddings through the Jina embeddings API.
type JinaProvider struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewJinaProvider creates a Jina embedding provider for the given model.
//
// The API key is read from JINA_API_KEY; JINA_BASE_URL overrides the
// endpoint. A missing key is not an error here — requests will fail at use.
func NewJinaProvider(model string) (*JinaProvider, error) {
	baseURL := os.Getenv("JINA_BASE_URL")
	if baseURL == "" {
		baseURL = defaultJinaBaseURL
	}

	return &JinaProvider{
		baseURL: baseURL,
		apiKey:  os.Getenv("JINA_API_KEY"),
		model:   model,
		client:  &http.Client{},
	}, nil
}

// jinaRequest is the request body for the embeddings endpoint.
type jinaRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// jinaResponse is the response body for the embeddings endpoint.
type jinaResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// EmbedDocuments generates embeddings for multiple texts, splitting inputs
// into batches of maxBatchSize.
func (p *JinaProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := p.embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *JinaProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vectors, err := p.embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("%w: empty response", ErrEmbeddingFailed)
	}
	return vectors[0], nil
}

// embed issues one embeddings request.
func (p *JinaProvider) embed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(jinaRequest{
		Model: p.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%w: status %d: %s", ErrEmbeddingFailed, resp.StatusCode, string(respBody))
	}

	var decoded jinaResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	vectors := make([][]float32, len(decoded.Data))
	for _, d := range decoded.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrEmbeddingFailed, d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// ModelName returns the configured model identifier.
func (p *JinaProvider) ModelName() string {
	return p.model
}

// Type returns the provider tag.
func (p *JinaProvider) Type() config.ModelProvider {
	return config.ProviderJina
}

// Close is a no-op; the client is plain HTTP.
func (p *JinaProvider) Close() error {
	return nil
}
