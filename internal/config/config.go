// Package config provides configuration loading for we0-index.
//
// Settings are resolved once at process start by merging an
// environment-specific YAML file with environment variable overrides.
// The resulting Config is immutable and shared by reference.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
)

// ErrInvalidConfig indicates unsupported or incomplete configuration.
var ErrInvalidConfig = errors.New("invalid configuration")

// VectorPlatform identifies a vector-store backend implementation.
type VectorPlatform string

const (
	PlatformPgvector VectorPlatform = "pgvector"
	PlatformQdrant   VectorPlatform = "qdrant"
	PlatformChroma   VectorPlatform = "chroma"
)

// ModelProvider identifies an embedding-generation backend.
type ModelProvider string

const (
	ProviderOpenAI ModelProvider = "openai"
	ProviderJina   ModelProvider = "jina"
)

// apiKeyEnv maps each provider to the environment variable carrying its key.
var apiKeyEnv = map[ModelProvider]string{
	ProviderOpenAI: "OPENAI_API_KEY",
	ProviderJina:   "JINA_API_KEY",
}

// QdrantMode selects how the qdrant client connects.
type QdrantMode string

const (
	QdrantModeDisk   QdrantMode = "disk"
	QdrantModeRemote QdrantMode = "remote"
	QdrantModeMemory QdrantMode = "memory"
)

// ChromaMode selects how the chroma store persists data.
type ChromaMode string

const (
	ChromaModeDisk   ChromaMode = "disk"
	ChromaModeMemory ChromaMode = "memory"
)

// Config holds the complete we0-index configuration.
type Config struct {
	Application string       `koanf:"application"`
	Log         LogConfig    `koanf:"log"`
	Server      ServerConfig `koanf:"server"`
	Vector      VectorConfig `koanf:"vector"`
}

// LogConfig holds structured logging configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   bool   `koanf:"file"`
}

// ServerConfig holds HTTP server bind configuration.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// VectorConfig selects the vector platform and embedding provider.
//
// Exactly one of Pgvector, Qdrant, Chroma is expected to be populated,
// matching Platform. Loading clears the variants that do not match.
type VectorConfig struct {
	Platform          VectorPlatform  `koanf:"platform"`
	EmbeddingProvider ModelProvider   `koanf:"embedding_provider"`
	EmbeddingModel    string          `koanf:"embedding_model"`
	ProbeTimeout      Duration        `koanf:"probe_timeout"`
	Pgvector          *PgvectorConfig `koanf:"pgvector"`
	Qdrant            *QdrantConfig   `koanf:"qdrant"`
	Chroma            *ChromaConfig   `koanf:"chroma"`
}

// PgvectorConfig holds PostgreSQL connection parameters for the pgvector platform.
type PgvectorConfig struct {
	DB       string `koanf:"db"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password Secret `koanf:"password"`
}

// DSN returns a pgx connection string.
func (c *PgvectorConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		c.User, c.Password.Value(), c.Host, c.Port, c.DB)
}

// QdrantConfig holds qdrant connection parameters.
type QdrantConfig struct {
	Mode   QdrantMode          `koanf:"mode"`
	Disk   *QdrantDiskConfig   `koanf:"disk"`
	Remote *QdrantRemoteConfig `koanf:"remote"`
}

// QdrantDiskConfig holds local-storage parameters for qdrant disk mode.
type QdrantDiskConfig struct {
	Path string `koanf:"path"`
}

// QdrantRemoteConfig holds remote-server parameters for qdrant remote mode.
type QdrantRemoteConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// ChromaConfig holds chroma store parameters.
type ChromaConfig struct {
	Mode ChromaMode        `koanf:"mode"`
	Disk *ChromaDiskConfig `koanf:"disk"`
}

// ChromaDiskConfig holds local-storage parameters for chroma disk mode.
type ChromaDiskConfig struct {
	Path string `koanf:"path"`
}

// Validate performs the pre-flight configuration check.
//
// For the selected platform the matching variant must be populated; absence
// is a hard validation failure. Callers decide whether that failure is
// terminal: the validate subcommand exits non-zero, while the server logs it
// and keeps running so the health endpoint can report unhealthy.
func (c *Config) Validate() error {
	switch c.Vector.Platform {
	case PlatformPgvector:
		if c.Vector.Pgvector == nil || c.Vector.Pgvector.Host == "" {
			return fmt.Errorf("%w: pgvector configuration is missing", ErrInvalidConfig)
		}
	case PlatformQdrant:
		if c.Vector.Qdrant == nil || c.Vector.Qdrant.Mode == "" {
			return fmt.Errorf("%w: qdrant configuration is missing", ErrInvalidConfig)
		}
		if c.Vector.Qdrant.Mode == QdrantModeRemote && c.Vector.Qdrant.Remote == nil {
			return fmt.Errorf("%w: qdrant remote configuration is missing", ErrInvalidConfig)
		}
	case PlatformChroma:
		if c.Vector.Chroma == nil || c.Vector.Chroma.Mode == "" {
			return fmt.Errorf("%w: chroma configuration is missing", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported vector platform: %q", ErrInvalidConfig, c.Vector.Platform)
	}

	switch c.Vector.EmbeddingProvider {
	case ProviderOpenAI, ProviderJina:
	default:
		return fmt.Errorf("%w: unsupported embedding provider: %q", ErrInvalidConfig, c.Vector.EmbeddingProvider)
	}

	if c.Vector.EmbeddingModel == "" {
		return fmt.Errorf("%w: embedding model is required", ErrInvalidConfig)
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: invalid server port: %d", ErrInvalidConfig, c.Server.Port)
	}

	return nil
}

// CheckProviderKey warns when the API-key variable for the selected embedding
// provider is absent. Missing keys are not a failure: the service may still
// start and fail later at actual use.
func (c *Config) CheckProviderKey(logger *zap.Logger) {
	key, ok := apiKeyEnv[c.Vector.EmbeddingProvider]
	if !ok {
		return
	}
	if os.Getenv(key) == "" {
		logger.Warn("embedding provider API key not set",
			zap.String("provider", string(c.Vector.EmbeddingProvider)),
			zap.String("env", key))
	}
}
