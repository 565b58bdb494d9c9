// Package health implements the composite health check over the two
// external dependencies: the vector database and the embedding service.
//
// Both probes exercise the real backends. The vector probe re-runs the
// idempotent extension initialization so a backend that came up after a
// failed start flips back to healthy without a restart. The embedding
// probe issues one real embedding request.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/embeddings"
)

// probeText is the fixed input for the embedding probe.
const probeText = "health check test"

// Service names used as keys in the report. The order here is also the
// order of UnhealthyServices.
const (
	ServiceVectorDatabase   = "vector_database"
	ServiceEmbeddingService = "embedding_service"
)

// Status is the health state of a service or of the whole report.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// ServiceReport is the outcome of one probe.
type ServiceReport struct {
	Status  Status         `json:"status"`
	Error   string         `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Report is the composite health document returned to clients.
//
// OverallStatus is healthy exactly when every service is healthy, and
// UnhealthyServices lists the failing service names only in that case.
type Report struct {
	OverallStatus     Status                   `json:"overall_status"`
	Timestamp         float64                  `json:"timestamp"`
	Services          map[string]ServiceReport `json:"services"`
	UnhealthyServices []string                 `json:"unhealthy_services,omitempty"`
}

// Healthy reports whether every probed service passed.
func (r *Report) Healthy() bool {
	return r.OverallStatus == StatusHealthy
}

// Backend is the slice of the extension manager the checker needs.
type Backend interface {
	Init(ctx context.Context) error
	Dimension(ctx context.Context) (int, error)
	Provider() (embeddings.Provider, error)
}

// Checker runs the probes against a backend.
type Checker struct {
	cfg     *config.Config
	backend Backend
	logger  *zap.Logger
	timeout time.Duration
}

// NewChecker builds a Checker using the configured per-probe timeout.
func NewChecker(cfg *config.Config, backend Backend, logger *zap.Logger) *Checker {
	return &Checker{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		timeout: cfg.Vector.ProbeTimeout.Duration(),
	}
}

// CheckVectorDatabase verifies the vector store is reachable and reports
// its dimension. Initialization is retried here because Init is a no-op
// once the manager is ready.
func (c *Checker) CheckVectorDatabase(ctx context.Context) ServiceReport {
	if err := c.backend.Init(ctx); err != nil {
		c.logger.Warn("vector database probe failed", zap.Error(err))
		return ServiceReport{Status: StatusUnhealthy, Error: err.Error()}
	}

	dimension, err := c.backend.Dimension(ctx)
	if err != nil {
		c.logger.Warn("vector dimension probe failed", zap.Error(err))
		return ServiceReport{Status: StatusUnhealthy, Error: err.Error()}
	}

	return ServiceReport{
		Status: StatusHealthy,
		Details: map[string]any{
			"platform":           string(c.cfg.Vector.Platform),
			"dimension":          dimension,
			"embedding_provider": string(c.cfg.Vector.EmbeddingProvider),
			"embedding_model":    c.cfg.Vector.EmbeddingModel,
		},
	}
}

// CheckEmbeddingService issues one real embedding request. An empty
// result is reported as dimension 0, not a failure.
func (c *Checker) CheckEmbeddingService(ctx context.Context) ServiceReport {
	provider, err := c.backend.Provider()
	if err != nil {
		c.logger.Warn("embedding service probe failed", zap.Error(err))
		return ServiceReport{Status: StatusUnhealthy, Error: err.Error()}
	}

	vector, err := provider.EmbedQuery(ctx, probeText)
	if err != nil {
		c.logger.Warn("embedding request failed", zap.Error(err))
		return ServiceReport{Status: StatusUnhealthy, Error: err.Error()}
	}

	return ServiceReport{
		Status: StatusHealthy,
		Details: map[string]any{
			"provider":  string(provider.Type()),
			"model":     provider.ModelName(),
			"dimension": len(vector),
		},
	}
}

// monotonicStart anchors report timestamps. Reports carry seconds on a
// monotonic clock, so successive checks order correctly even across
// wall-clock adjustments.
var monotonicStart = time.Now()

// probe runs one check in its own goroutine with a bounded context. A
// panicking backend becomes an unhealthy record; it must never take the
// server process down with it.
func (c *Checker) probe(ctx context.Context, wg *sync.WaitGroup, name string, out *ServiceReport, check func(context.Context) ServiceReport) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("health probe panicked",
				zap.String("service", name),
				zap.Any("panic", r))
			*out = ServiceReport{
				Status: StatusUnhealthy,
				Error:  fmt.Sprintf("probe panicked: %v", r),
			}
		}
	}()

	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	*out = check(probeCtx)
}

// Comprehensive runs both probes concurrently and composes the report.
// It never fails; the worst case is a report with every service unhealthy.
func (c *Checker) Comprehensive(ctx context.Context) *Report {
	var (
		wg        sync.WaitGroup
		vector    ServiceReport
		embedding ServiceReport
	)

	wg.Add(2)
	go c.probe(ctx, &wg, ServiceVectorDatabase, &vector, c.CheckVectorDatabase)
	go c.probe(ctx, &wg, ServiceEmbeddingService, &embedding, c.CheckEmbeddingService)
	wg.Wait()

	report := &Report{
		OverallStatus: StatusHealthy,
		Timestamp:     time.Since(monotonicStart).Seconds(),
		Services: map[string]ServiceReport{
			ServiceVectorDatabase:   vector,
			ServiceEmbeddingService: embedding,
		},
	}

	for _, name := range []string{ServiceVectorDatabase, ServiceEmbeddingService} {
		if report.Services[name].Status != StatusHealthy {
			report.OverallStatus = StatusUnhealthy
			report.UnhealthyServices = append(report.UnhealthyServices, name)
		}
	}
	return report
}
