// Package server provides the convergd HTTP API.
//
// The API is a thin surface over the library packages: the convergence
// engine, the score bridge, the history store, the category registry, and
// the vector search collaborator. All request handling is synchronous;
// evaluation events publish fire-and-forget after the response is
// decided.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/chakssp/convergd/internal/events"
	"github.com/chakssp/convergd/internal/history"
	"github.com/chakssp/convergd/internal/knowledge"
	"github.com/chakssp/convergd/internal/vectorstore"
	"github.com/chakssp/convergd/pkg/convergence"
	"github.com/chakssp/convergd/pkg/normalize"
)

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Dependencies carries the services the API fronts. Engine, Normalizer,
// History and Registry are required; Search and Events are optional and
// their routes degrade when absent.
type Dependencies struct {
	Engine     *convergence.Service
	Normalizer *normalize.Service
	History    history.Store
	Registry   *knowledge.Registry
	Search     vectorstore.Store
	Events     *events.Publisher
	Logger     *zap.Logger
}

// Server is the convergd HTTP API server.
type Server struct {
	echo   *echo.Echo
	config Config
	deps   Dependencies
	logger *zap.Logger
	stats  *statsTracker
}

// NewServer wires the API routes over the given dependencies.
func NewServer(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if deps.Normalizer == nil {
		return nil, fmt.Errorf("normalizer is required")
	}
	if deps.History == nil {
		return nil, fmt.Errorf("history store is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("category registry is required")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9090
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(NewHTTPMetrics(deps.Logger).Middleware())

	s := &Server{
		echo:   e,
		config: cfg,
		deps:   deps,
		logger: deps.Logger,
		stats:  newStatsTracker(),
	}
	s.registerRoutes()
	return s, nil
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return err
		}
	}
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/convergence/evaluate", s.handleEvaluate)
	v1.POST("/files/:id/iterations", s.handleAppendIteration)
	v1.GET("/files/:id/history", s.handleHistory)
	v1.POST("/identity/resolve", s.handleResolve)
	v1.GET("/confidence/:externalId", s.handleConfidence)
	v1.GET("/search", s.handleSearch)
	v1.GET("/categories", s.handleCategories)
	v1.GET("/stats", s.handleStats)
}

// Handler exposes the routing tree for httptest.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until Shutdown or a listener error.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
