// Package httpserver exposes the event API, the /ws/notify websocket and
// the operational endpoints over echo.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
	"github.com/pscheid92/familyhub/internal/domain"
	"github.com/pscheid92/familyhub/internal/platform/config"
	"github.com/prometheus/client_golang/prometheus"
)

type eventService interface {
	CreateEvent(ctx context.Context, ne domain.NewEvent) (*domain.Event, error)
	GetEvent(ctx context.Context, id int64) (*domain.Event, error)
	ListEvents(ctx context.Context) ([]domain.Event, error)
}

// notifier runs a notification session on an upgraded connection until it ends.
type notifier interface {
	Serve(ctx context.Context, conn *websocket.Conn)
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	events   eventService
	notifier notifier
	upgrader websocket.Upgrader

	registry     *prometheus.Registry
	httpMetrics  *metrics.HTTPMetrics
	healthChecks []HealthCheck
	startTime    time.Time
}

type Option func(*Server)

// WithMetrics serves reg on /metrics and records request metrics into it.
func WithMetrics(reg *prometheus.Registry) Option {
	return func(s *Server) {
		s.registry = reg
		s.httpMetrics = metrics.NewHTTPMetrics(reg)
	}
}

func WithHealthChecks(checks ...HealthCheck) Option {
	return func(s *Server) { s.healthChecks = checks }
}

func NewServer(cfg *config.Config, events eventService, notifier notifier, opts ...Option) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newRequestValidator()

	origins := cfg.AllowedOrigins()
	srv := &Server{
		echo:     e,
		config:   cfg,
		events:   events,
		notifier: notifier,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     newCheckOrigin(origins),
		},
		startTime: time.Now(),
	}
	for _, opt := range opts {
		opt(srv)
	}

	srv.registerRoutes(origins)
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests. Upgraded websockets are hijacked and
// not tracked by the server; the notifier closes them.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
