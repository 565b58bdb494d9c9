package vectorstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/we0-dev/we0-index/internal/config"
)

func TestIsTransientError(t *testing.T) {
	assert.True(t, IsTransientError(status.Error(grpccodes.Unavailable, "server down")))
	assert.True(t, IsTransientError(status.Error(grpccodes.DeadlineExceeded, "timeout")))
	assert.True(t, IsTransientError(status.Error(grpccodes.ResourceExhausted, "rate limited")))

	assert.False(t, IsTransientError(status.Error(grpccodes.InvalidArgument, "bad vector size")))
	assert.False(t, IsTransientError(status.Error(grpccodes.NotFound, "no collection")))
	assert.False(t, IsTransientError(status.Error(grpccodes.Unauthenticated, "bad key")))
	assert.False(t, IsTransientError(errors.New("not a status error")))
}

func TestQdrantErrClassification(t *testing.T) {
	transient := qdrantErr("upserting points", status.Error(grpccodes.Unavailable, "server down"))
	assert.ErrorIs(t, transient, ErrConnectionFailed)
	assert.Contains(t, transient.Error(), "upserting points")

	permanent := qdrantErr("searching", status.Error(grpccodes.InvalidArgument, "bad vector size"))
	assert.NotErrorIs(t, permanent, ErrConnectionFailed)
	assert.Contains(t, permanent.Error(), "searching")
}

func TestNewQdrantStoreModeValidation(t *testing.T) {
	newCfg := func(qc *config.QdrantConfig) *config.Config {
		return &config.Config{
			Vector: config.VectorConfig{
				Platform:       config.PlatformQdrant,
				EmbeddingModel: "fake-model",
				Qdrant:         qc,
			},
		}
	}

	_, err := newQdrantStore(newCfg(&config.QdrantConfig{
		Mode:   config.QdrantModeRemote,
		Remote: &config.QdrantRemoteConfig{Host: "localhost", Port: 6334},
	}), nil, zap.NewNop())
	require.NoError(t, err)

	for _, mode := range []config.QdrantMode{config.QdrantModeDisk, config.QdrantModeMemory} {
		_, err := newQdrantStore(newCfg(&config.QdrantConfig{Mode: mode}), nil, zap.NewNop())
		assert.ErrorIs(t, err, ErrInvalidConfig)
	}

	_, err = newQdrantStore(newCfg(nil), nil, zap.NewNop())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
