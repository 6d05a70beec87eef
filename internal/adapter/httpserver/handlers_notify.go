package httpserver

import (
	"log/slog"

	"github.com/labstack/echo/v4"
)

// handleNotify upgrades to a websocket and blocks while the session runs.
// On upgrade failure gorilla has already written the HTTP error.
func (s *Server) handleNotify(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.DebugContext(c.Request().Context(), "WebSocket upgrade failed", "error", err)
		return nil
	}

	s.notifier.Serve(c.Request().Context(), conn)
	return nil
}
