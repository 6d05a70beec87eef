package httpserver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/familyhub/internal/platform/version"
)

const readinessProbeTimeout = 5 * time.Second

// HealthCheck is a named readiness check. Optional checks report their
// failure without making the service unready.
type HealthCheck struct {
	Name     string
	Check    func(ctx context.Context) error
	Optional bool
}

func (s *Server) registerHealthRoutes() {
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/version", s.handleVersion)
}

func (s *Server) handleAPIHealth(c echo.Context) error {
	if err := c.JSON(http.StatusOK, map[string]bool{"ok": true}); err != nil {
		return fmt.Errorf("failed to write health response: %w", err)
	}
	return nil
}

func (s *Server) handleLiveness(c echo.Context) error {
	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	}
	if err := c.JSON(http.StatusOK, response); err != nil {
		return fmt.Errorf("failed to write liveness response: %w", err)
	}
	return nil
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readinessProbeTimeout)
	defer cancel()

	checks := make(map[string]string, len(s.healthChecks))
	status, code := "ready", http.StatusOK
	for _, hc := range s.healthChecks {
		if err := hc.Check(ctx); err != nil {
			checks[hc.Name] = err.Error()
			if !hc.Optional {
				status, code = "unhealthy", http.StatusServiceUnavailable
			} else if status == "ready" {
				status = "degraded"
			}
			continue
		}
		checks[hc.Name] = "ok"
	}

	if err := c.JSON(code, map[string]any{"status": status, "checks": checks}); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleVersion(c echo.Context) error {
	if err := c.JSON(http.StatusOK, version.Get()); err != nil {
		return fmt.Errorf("failed to write version response: %w", err)
	}
	return nil
}
