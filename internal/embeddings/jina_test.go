package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/we0-dev/we0-index/internal/config"
)

func newJinaTestServer(t *testing.T, handler http.HandlerFunc) *JinaProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	t.Setenv("JINA_BASE_URL", srv.URL)
	t.Setenv("JINA_API_KEY", "test-key")

	p, err := NewJinaProvider("jina-embeddings-v3")
	require.NoError(t, err)
	return p
}

func TestJinaEmbedDocuments(t *testing.T) {
	p := newJinaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req jinaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "jina-embeddings-v3", req.Model)

		resp := jinaResponse{}
		// Out-of-order indexes must still land in input order.
		for i := len(req.Input) - 1; i >= 0; i-- {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i), 1, 2}})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	vectors, err := p.EmbedDocuments(context.Background(), []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0, 1, 2}, vectors[0])
	assert.Equal(t, []float32{1, 1, 2}, vectors[1])
}

func TestJinaEmbedQuery(t *testing.T) {
	p := newJinaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := jinaResponse{}
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: 0, Embedding: []float32{0.1, 0.2}})
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	vector, err := p.EmbedQuery(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2}, vector)
}

func TestJinaEmptyInput(t *testing.T) {
	p := newJinaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected for empty input")
	})

	_, err := p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestJinaServerError(t *testing.T) {
	p := newJinaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := p.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "status 401")
}

func TestJinaBadIndex(t *testing.T) {
	p := newJinaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		resp := jinaResponse{}
		resp.Data = append(resp.Data, struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}{Index: 7, Embedding: []float32{1}})
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	_, err := p.EmbedQuery(context.Background(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.ProviderJina, "jina-embeddings-v3")
	require.NoError(t, err)
	assert.Equal(t, config.ProviderJina, p.Type())
	assert.Equal(t, "jina-embeddings-v3", p.ModelName())

	_, err = NewProvider("cohere", "embed-v3")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupportedProvider)
}
