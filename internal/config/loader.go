package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvName selects the deployment environment and with it the YAML file.
	EnvName = "WE0_INDEX_ENV"

	// EnvResourceDir overrides the directory holding the YAML files.
	EnvResourceDir = "WE0_INDEX_RESOURCE_DIR"

	defaultEnvName     = "dev"
	defaultResourceDir = "resource"

	envPrefix = "WE0_INDEX_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load resolves the configuration file from the deployment-environment name
// and loads it.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (WE0_INDEX_SERVER_PORT, WE0_INDEX_LOG_LEVEL, ...)
//  2. YAML file ({resource}/{env}.yaml, env defaults to "dev")
//  3. Hardcoded defaults
func Load() (*Config, error) {
	envName := os.Getenv(EnvName)
	if envName == "" {
		envName = defaultEnvName
	}
	resourceDir := os.Getenv(EnvResourceDir)
	if resourceDir == "" {
		resourceDir = defaultResourceDir
	}
	return LoadWithFile(filepath.Join(resourceDir, envName+".yaml"))
}

// LoadWithFile loads configuration from the given YAML file, then overrides
// with environment variables. A missing or malformed file is a terminal
// startup failure; an incomplete platform section is not — that is caught
// later by Validate.
func LoadWithFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	f, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}

	// Override with environment variables. Variables are prefixed, use
	// underscore separator, and map to "section.field_name":
	//
	//	WE0_INDEX_SERVER_PORT            -> server.port
	//	WE0_INDEX_LOG_LEVEL              -> log.level
	//	WE0_INDEX_VECTOR_EMBEDDING_MODEL -> vector.embedding_model
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		lower := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(lower, "_", 2)
		if len(parts) == 1 {
			return lower
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	clearConflictingVariants(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

// clearConflictingVariants drops the platform sections that do not match the
// selected platform, so exactly one variant is populated after loading.
func clearConflictingVariants(cfg *Config) {
	if cfg.Vector.Platform != PlatformPgvector {
		cfg.Vector.Pgvector = nil
	}
	if cfg.Vector.Platform != PlatformQdrant {
		cfg.Vector.Qdrant = nil
	}
	if cfg.Vector.Platform != PlatformChroma {
		cfg.Vector.Chroma = nil
	}
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Application == "" {
		cfg.Application = "we0-index"
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Vector.EmbeddingProvider == "" {
		cfg.Vector.EmbeddingProvider = ProviderOpenAI
	}
	if cfg.Vector.EmbeddingModel == "" {
		cfg.Vector.EmbeddingModel = "text-embedding-3-small"
	}
	if cfg.Vector.ProbeTimeout == 0 {
		cfg.Vector.ProbeTimeout = Duration(10 * time.Second)
	}

	if q := cfg.Vector.Qdrant; q != nil {
		if q.Mode == QdrantModeDisk && q.Disk == nil {
			q.Disk = &QdrantDiskConfig{Path: filepath.Join("vector", "qdrant")}
		}
		// The Go client is gRPC-only; 6334 is the gRPC port.
		if q.Mode == QdrantModeRemote && q.Remote != nil && q.Remote.Port == 0 {
			q.Remote.Port = 6334
		}
	}

	if c := cfg.Vector.Chroma; c != nil {
		if c.Mode == ChromaModeDisk && c.Disk == nil {
			c.Disk = &ChromaDiskConfig{Path: filepath.Join("vector", "chroma")}
		}
	}
}
