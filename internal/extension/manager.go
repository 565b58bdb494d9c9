// Package extension manages the lifecycle of the pluggable backends: the
// embedding provider and the vector store selected by configuration.
//
// A Manager moves through three states. It starts uninitialized, becomes
// ready after a successful Init, and is terminal once closed. Accessors
// refuse to hand out backends outside the ready state so callers never
// touch a half-built or torn-down store.
package extension

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
	"github.com/we0-dev/we0-index/internal/vectorstore"
)

var (
	// ErrNotInitialized is returned by accessors before a successful Init.
	ErrNotInitialized = errors.New("extension manager not initialized")
	// ErrInitFailed wraps backend construction or connection failures.
	ErrInitFailed = errors.New("extension initialization failed")
	// ErrClosed is returned once the manager has been shut down.
	ErrClosed = errors.New("extension manager closed")
)

// State is the lifecycle phase of a Manager.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateReady         State = "ready"
	StateClosed        State = "closed"
)

type providerFactory func(provider config.ModelProvider, model string) (embeddings.Provider, error)

type storeFactory func(cfg *config.Config, embedder embeddings.Provider, logger *zap.Logger) (vectorstore.Store, error)

// Manager owns the embedding provider and vector store instances and
// guards their lifecycle. All methods are safe for concurrent use.
type Manager struct {
	cfg    *config.Config
	logger *zap.Logger

	newProvider providerFactory
	newStore    storeFactory

	mu       sync.Mutex
	state    State
	provider embeddings.Provider
	store    vectorstore.Store
}

// Option customizes a Manager. Used by tests to inject fake backends.
type Option func(*Manager)

// WithProviderFactory overrides how embedding providers are built.
func WithProviderFactory(f providerFactory) Option {
	return func(m *Manager) { m.newProvider = f }
}

// WithStoreFactory overrides how vector stores are built.
func WithStoreFactory(f storeFactory) Option {
	return func(m *Manager) { m.newStore = f }
}

// New creates an uninitialized Manager. No backend work happens here;
// connections are established by Init.
func New(cfg *config.Config, logger *zap.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:         cfg,
		logger:      logger,
		newProvider: embeddings.NewProvider,
		newStore:    vectorstore.NewStore,
		state:       StateUninitialized,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init builds the embedding provider and vector store and connects the
// store. A second call on a ready manager is a no-op, so both the serve
// path and health probes can call it freely. A failed Init leaves the
// manager uninitialized and retryable.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StateReady:
		return nil
	case StateClosed:
		return ErrClosed
	}

	provider, err := m.newProvider(m.cfg.Vector.EmbeddingProvider, m.cfg.Vector.EmbeddingModel)
	if err != nil {
		return fmt.Errorf("%w: embedding provider: %v", ErrInitFailed, err)
	}

	store, err := m.newStore(m.cfg, provider, m.logger)
	if err != nil {
		_ = provider.Close()
		return fmt.Errorf("%w: vector store: %v", ErrInitFailed, err)
	}

	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		_ = provider.Close()
		return fmt.Errorf("%w: connecting vector store: %v", ErrInitFailed, err)
	}

	m.provider = provider
	m.store = store
	m.state = StateReady

	m.logger.Info("extensions initialized",
		zap.String("platform", string(m.cfg.Vector.Platform)),
		zap.String("embedding_provider", string(m.cfg.Vector.EmbeddingProvider)),
		zap.String("embedding_model", m.cfg.Vector.EmbeddingModel))
	return nil
}

// Close releases both backends. Safe to call in any state and more than
// once; after the first call the manager is terminal.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return nil
	}

	var errs []error
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing vector store: %w", err))
		}
		m.store = nil
	}
	if m.provider != nil {
		if err := m.provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing embedding provider: %w", err))
		}
		m.provider = nil
	}
	m.state = StateClosed

	m.logger.Info("extensions closed")
	return errors.Join(errs...)
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Store returns the ready vector store.
func (m *Manager) Store() (vectorstore.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	return m.store, nil
}

// Provider returns the ready embedding provider.
func (m *Manager) Provider() (embeddings.Provider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkReady(); err != nil {
		return nil, err
	}
	return m.provider, nil
}

// Dimension reports the embedding dimension of the active model.
func (m *Manager) Dimension(ctx context.Context) (int, error) {
	store, err := m.Store()
	if err != nil {
		return 0, err
	}
	return store.Dimension(ctx)
}

// EmbeddingModel returns the configured embedding model name.
func (m *Manager) EmbeddingModel() string {
	return m.cfg.Vector.EmbeddingModel
}

func (m *Manager) checkReady() error {
	switch m.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
		return ErrNotInitialized
	}
	return nil
}
