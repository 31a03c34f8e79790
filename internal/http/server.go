// Package http provides the HTTP API for linkrank.
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkrank/internal/consumer"
	"github.com/fyrsmithlabs/linkrank/internal/logging"
	"github.com/fyrsmithlabs/linkrank/internal/orchestrator"
	"github.com/fyrsmithlabs/linkrank/internal/page"
)

// Analyzer runs and schedules page analyses. *analysis.Analyzer implements
// it.
type Analyzer interface {
	Analyze(ctx context.Context, h page.Handle) (orchestrator.Result, error)
	Trigger(h page.Handle) uint64
}

// Snapshots exposes the ranking output. *consumer.Broadcaster implements it.
type Snapshots interface {
	Latest() (consumer.Snapshot, bool)
	LatestFinal() (consumer.Snapshot, bool)
	Subscribe(buffer int) (<-chan consumer.Snapshot, func())
}

// Server provides HTTP endpoints for linkrank.
type Server struct {
	echo      *echo.Echo
	analyzer  Analyzer
	snapshots Snapshots
	logger    *zap.Logger
	config    *Config
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int

	// Heartbeat is the SSE keep-alive interval.
	Heartbeat time.Duration

	// BodyLimit bounds request bodies, e.g. "2M".
	BodyLimit string
}

// NewServer creates a new HTTP server.
func NewServer(analyzer Analyzer, snapshots Snapshots, logger *zap.Logger, cfg *Config) (*Server, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer cannot be nil")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshots cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 9090,
		}
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.BodyLimit == "" {
		cfg.BodyLimit = "2M"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	metrics, err := newRouteMetrics(otel.Meter(instrumentationName))
	if err != nil {
		logger.Warn("Some HTTP metrics are unavailable", zap.Error(err))
	}
	e.Use(metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				req := c.Request()
				c.SetRequest(req.WithContext(logging.WithRequestID(req.Context(), id)))
			}
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
		echo:      e,
		analyzer:  analyzer,
		snapshots: snapshots,
		logger:    logger,
		config:    cfg,
	}

	// Register routes
	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	v1 := s.echo.Group("/api/v1")
	v1.POST("/rank", s.handleRank)
	v1.POST("/trigger", s.handleTrigger)
	v1.GET("/snapshots/latest", s.handleLatest)
	v1.GET("/snapshots/stream", s.handleStream)
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleRank ranks a page synchronously and returns the final ranking.
func (s *Server) handleRank(c echo.Context) error {
	h, err := s.bindPage(c)
	if err != nil {
		return err
	}

	res, err := s.analyzer.Analyze(c.Request().Context(), h)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "request cancelled")
		}
		s.logger.Warn("rank failed", zap.String("url", h.URL), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ranking failed")
	}
	if res.Stale {
		return echo.NewHTTPError(http.StatusConflict, "request superseded by a newer analysis")
	}

	return c.JSON(http.StatusOK, newRankResponse(res))
}

// handleTrigger schedules a debounced analysis.
func (s *Server) handleTrigger(c echo.Context) error {
	h, err := s.bindPage(c)
	if err != nil {
		return err
	}
	id := s.analyzer.Trigger(h)
	return c.JSON(http.StatusAccepted, TriggerResponse{RequestID: id})
}

// handleLatest returns the most recent snapshot, or the most recent final
// one with ?final=true.
func (s *Server) handleLatest(c echo.Context) error {
	get := s.snapshots.Latest
	if c.QueryParam("final") == "true" {
		get = s.snapshots.LatestFinal
	}
	snap, ok := get()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no snapshot yet")
	}
	return c.JSON(http.StatusOK, snap)
}

func (s *Server) bindPage(c echo.Context) (page.Handle, error) {
	var req RankRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid rank request", zap.Error(err))
		return page.Handle{}, echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	h, err := req.handle()
	if err != nil {
		return page.Handle{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
