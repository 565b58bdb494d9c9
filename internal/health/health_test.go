package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = f.vector
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) ModelName() string          { return "fake-model" }
func (f *fakeEmbedder) Type() config.ModelProvider { return config.ProviderOpenAI }
func (f *fakeEmbedder) Close() error               { return nil }

type fakeBackend struct {
	initErr     error
	initPanic   bool
	dimension   int
	dimErr      error
	provider    embeddings.Provider
	providerErr error
}

func (f *fakeBackend) Init(ctx context.Context) error {
	if f.initPanic {
		var m map[string]int
		m["boom"] = 1
	}
	return f.initErr
}

func (f *fakeBackend) Dimension(ctx context.Context) (int, error) {
	return f.dimension, f.dimErr
}

func (f *fakeBackend) Provider() (embeddings.Provider, error) {
	return f.provider, f.providerErr
}

func testChecker(backend *fakeBackend) *Checker {
	cfg := &config.Config{
		Vector: config.VectorConfig{
			Platform:          config.PlatformQdrant,
			EmbeddingProvider: config.ProviderOpenAI,
			EmbeddingModel:    "fake-model",
			ProbeTimeout:      config.Duration(time.Second),
		},
	}
	return NewChecker(cfg, backend, zap.NewNop())
}

func TestCheckVectorDatabaseHealthy(t *testing.T) {
	c := testChecker(&fakeBackend{dimension: 1536})

	report := c.CheckVectorDatabase(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Empty(t, report.Error)
	assert.Equal(t, "qdrant", report.Details["platform"])
	assert.Equal(t, 1536, report.Details["dimension"])
}

func TestCheckVectorDatabaseInitFailure(t *testing.T) {
	c := testChecker(&fakeBackend{initErr: errors.New("connection refused")})

	report := c.CheckVectorDatabase(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Error, "connection refused")
}

func TestCheckVectorDatabaseDimensionFailure(t *testing.T) {
	c := testChecker(&fakeBackend{dimErr: errors.New("probe failed")})

	report := c.CheckVectorDatabase(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Error, "probe failed")
}

func TestCheckEmbeddingServiceHealthy(t *testing.T) {
	c := testChecker(&fakeBackend{
		provider: &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}},
	})

	report := c.CheckEmbeddingService(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, "openai", report.Details["provider"])
	assert.Equal(t, "fake-model", report.Details["model"])
	assert.Equal(t, 3, report.Details["dimension"])
}

func TestCheckEmbeddingServiceEmptyVector(t *testing.T) {
	// An empty result is dimension 0, not a failure.
	c := testChecker(&fakeBackend{provider: &fakeEmbedder{}})

	report := c.CheckEmbeddingService(context.Background())
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 0, report.Details["dimension"])
}

func TestCheckEmbeddingServiceFailure(t *testing.T) {
	c := testChecker(&fakeBackend{
		provider: &fakeEmbedder{err: errors.New("status 401")},
	})

	report := c.CheckEmbeddingService(context.Background())
	assert.Equal(t, StatusUnhealthy, report.Status)
	assert.Contains(t, report.Error, "status 401")
}

func TestComprehensiveAllHealthy(t *testing.T) {
	c := testChecker(&fakeBackend{
		dimension: 1536,
		provider:  &fakeEmbedder{vector: []float32{0.1}},
	})

	report := c.Comprehensive(context.Background())
	assert.True(t, report.Healthy())
	assert.Equal(t, StatusHealthy, report.OverallStatus)
	assert.Empty(t, report.UnhealthyServices)
	assert.Len(t, report.Services, 2)
	assert.NotZero(t, report.Timestamp)
}

func TestComprehensivePartialFailure(t *testing.T) {
	c := testChecker(&fakeBackend{
		initErr:  errors.New("connection refused"),
		provider: &fakeEmbedder{vector: []float32{0.1}},
	})

	report := c.Comprehensive(context.Background())
	assert.False(t, report.Healthy())
	assert.Equal(t, StatusUnhealthy, report.OverallStatus)
	assert.Equal(t, []string{ServiceVectorDatabase}, report.UnhealthyServices)
	assert.Equal(t, StatusHealthy, report.Services[ServiceEmbeddingService].Status)
}

func TestComprehensiveRecoversPanickingProbes(t *testing.T) {
	// The vector probe hits a nil-map write, the embedding probe
	// dereferences a nil provider. Both must land in the report
	// instead of taking the process down.
	c := testChecker(&fakeBackend{initPanic: true, provider: nil})

	report := c.Comprehensive(context.Background())
	require.False(t, report.Healthy())
	assert.Equal(t, []string{ServiceVectorDatabase, ServiceEmbeddingService}, report.UnhealthyServices)
	assert.Contains(t, report.Services[ServiceVectorDatabase].Error, "panicked")
	assert.Contains(t, report.Services[ServiceEmbeddingService].Error, "panicked")
}

func TestComprehensiveTimestampMonotonic(t *testing.T) {
	c := testChecker(&fakeBackend{
		dimension: 3,
		provider:  &fakeEmbedder{vector: []float32{0.1}},
	})

	first := c.Comprehensive(context.Background())
	second := c.Comprehensive(context.Background())
	assert.Greater(t, first.Timestamp, 0.0)
	assert.GreaterOrEqual(t, second.Timestamp, first.Timestamp)
}

func TestComprehensiveTotalFailure(t *testing.T) {
	c := testChecker(&fakeBackend{
		initErr:     errors.New("connection refused"),
		providerErr: errors.New("not initialized"),
	})

	report := c.Comprehensive(context.Background())
	require.False(t, report.Healthy())
	assert.Equal(t, []string{ServiceVectorDatabase, ServiceEmbeddingService}, report.UnhealthyServices)
}
