// Package http provides the HTTP API for we0-index.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/we0-dev/we0-index/internal/config"
	"github.com/we0-dev/we0-index/internal/health"
	"github.com/we0-dev/we0-index/internal/repository"
	"github.com/we0-dev/we0-index/internal/search"
	"github.com/we0-dev/we0-index/internal/version"
)

// HealthChecker produces the composite health report.
type HealthChecker interface {
	Comprehensive(ctx context.Context) *health.Report
}

// Server provides the HTTP endpoints for we0-index.
type Server struct {
	echo    *echo.Echo
	cfg     *config.Config
	logger  *zap.Logger
	checker HealthChecker
	repos   *repository.Service
	search  *search.Service
}

// NewServer creates a new HTTP server with all routes registered.
func NewServer(cfg *config.Config, logger *zap.Logger, checker HealthChecker, repos *repository.Service, searcher *search.Service) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if checker == nil {
		return nil, fmt.Errorf("health checker is required")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(metricsMiddleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:    e,
		cfg:     cfg,
		logger:  logger,
		checker: checker,
		repos:   repos,
		search:  searcher,
	}
	s.registerRoutes()

	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/git/index", s.handleGitIndex)
	s.echo.POST("/vector/retrieval", s.handleRetrieval)
	s.echo.DELETE("/vector/index/:repo_id", s.handleDropIndex)
}

// RootResponse is the response body for GET /.
type RootResponse struct {
	Application string `json:"application"`
	Version     string `json:"version"`
	Platform    string `json:"platform"`
}

func (s *Server) handleRoot(c echo.Context) error {
	return c.JSON(http.StatusOK, RootResponse{
		Application: s.cfg.Application,
		Version:     version.Version,
		Platform:    string(s.cfg.Vector.Platform),
	})
}

// handleHealth runs the comprehensive check. The endpoint never errors:
// a failed probe is a 503 with the structured report in the body, and a
// panic anywhere in the check becomes a minimal 503 body.
func (s *Server) handleHealth(c echo.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("health check panicked", zap.Any("panic", r))
			err = c.JSON(http.StatusServiceUnavailable, map[string]string{
				"status": string(health.StatusUnhealthy),
				"error":  fmt.Sprintf("health check failed: %v", r),
			})
		}
	}()

	report := s.checker.Comprehensive(c.Request().Context())

	status := http.StatusOK
	if !report.Healthy() {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, report)
}

// GitIndexRequest is the request body for POST /git/index. The
// credential fields allow indexing private repositories; an access
// token wins over username and password.
type GitIndexRequest struct {
	RepoURL     string `json:"repo_url"`
	Branch      string `json:"branch,omitempty"`
	AccessToken string `json:"access_token,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

func (s *Server) handleGitIndex(c echo.Context) error {
	var req GitIndexRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid index request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.RepoURL == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "repo_url field is required")
	}

	result, err := s.repos.CloneAndIndex(c.Request().Context(), req.RepoURL, req.Branch, &repository.Credentials{
		AccessToken: req.AccessToken,
		Username:    req.Username,
		Password:    req.Password,
	})
	if err != nil {
		s.logger.Error("indexing failed",
			zap.String("repo_url", req.RepoURL),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleRetrieval(c echo.Context) error {
	var req search.Request
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid retrieval request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	docs, err := s.search.Search(c.Request().Context(), req)
	if err != nil {
		s.logger.Warn("retrieval failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusOK, docs)
}

// DropIndexResponse is the response body for DELETE /vector/index/:repo_id.
type DropIndexResponse struct {
	RepoID  string `json:"repo_id"`
	Dropped bool   `json:"dropped"`
}

func (s *Server) handleDropIndex(c echo.Context) error {
	repoID := c.Param("repo_id")
	if repoID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "repo_id is required")
	}

	if err := s.repos.Drop(c.Request().Context(), repoID); err != nil {
		s.logger.Error("drop failed",
			zap.String("repo_id", repoID),
			zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, DropIndexResponse{RepoID: repoID, Dropped: true})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}
