package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/familyhub/internal/domain"
	apperrors "github.com/pscheid92/familyhub/internal/platform/errors"
)

type createEventRequest struct {
	Title string     `json:"title" validate:"required,max=200"`
	When  *time.Time `json:"when" validate:"required"`
	Notes *string    `json:"notes" validate:"omitempty,max=2000"`
}

func (r createEventRequest) toNewEvent() domain.NewEvent {
	return domain.NewEvent{Title: r.Title, When: r.When.UTC(), Notes: r.Notes}
}

func (s *Server) handleListEvents(c echo.Context) error {
	events, err := s.events.ListEvents(c.Request().Context())
	if err != nil {
		return apperrors.InternalError("failed to list events", err)
	}

	if err := c.JSON(http.StatusOK, events); err != nil {
		return fmt.Errorf("failed to write events response: %w", err)
	}
	return nil
}

func (s *Server) handleGetEvent(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return apperrors.ValidationError("invalid event id").WithField("id", c.Param("id"))
	}

	event, err := s.events.GetEvent(c.Request().Context(), id)
	if errors.Is(err, domain.ErrEventNotFound) {
		return apperrors.NotFoundError("event not found").WithField("id", id)
	}
	if err != nil {
		return apperrors.InternalError("failed to get event", err)
	}

	if err := c.JSON(http.StatusOK, event); err != nil {
		return fmt.Errorf("failed to write event response: %w", err)
	}
	return nil
}

// handleCreateEvent responds once the event is stored. Fan-out happens in
// the background and never changes the response.
func (s *Server) handleCreateEvent(c echo.Context) error {
	var req createEventRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := c.Validate(&req); err != nil {
		return err
	}

	event, err := s.events.CreateEvent(c.Request().Context(), req.toNewEvent())
	if err != nil {
		return apperrors.InternalError("failed to create event", err)
	}

	if err := c.JSON(http.StatusCreated, event); err != nil {
		return fmt.Errorf("failed to write event response: %w", err)
	}
	return nil
}
