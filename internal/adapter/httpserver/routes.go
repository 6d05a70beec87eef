package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pscheid92/familyhub/internal/adapter/metrics"
)

const maxUploadBody = "20M"

func (s *Server) registerRoutes(origins []string) {
	s.echo.Use(correlationMiddleware)
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware())
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowHeaders: []string{echo.HeaderContentType, echo.HeaderAuthorization},
	}))
	s.echo.Use(middleware.SecureWithConfig(middleware.SecureConfig{
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}))

	s.registerHealthRoutes()

	api := s.echo.Group("/api")
	api.GET("/health", s.handleAPIHealth)
	api.GET("/events", s.handleListEvents)
	api.GET("/events/:id", s.handleGetEvent)
	api.POST("/events", s.handleCreateEvent,
		middleware.BodyLimit("64K"),
		newRateLimiter(s.config.EventsRateLimit, s.config.EventsRateBurst))
	api.POST("/media/upload", s.handleMediaUpload, middleware.BodyLimit(maxUploadBody))

	s.echo.GET("/ws/notify", s.handleNotify)

	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health/live"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
