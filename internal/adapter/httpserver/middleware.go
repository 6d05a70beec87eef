package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/familyhub/internal/platform/correlation"
	apperrors "github.com/pscheid92/familyhub/internal/platform/errors"
)

// correlationMiddleware accepts a well-formed inbound X-Request-ID or
// assigns a new one, and echoes it on the response.
func correlationMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id := correlation.FromHeader(c.Request().Header.Get(correlation.HeaderName))
		c.Response().Header().Set(correlation.HeaderName, id)
		ctx := correlation.WithID(c.Request().Context(), id)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// ErrorHandlingMiddleware renders every returned error, echo's own
// included, as a structured JSON error.
func ErrorHandlingMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			if c.Response().Committed {
				return err
			}

			var httpErr *echo.HTTPError
			if errors.As(err, &httpErr) {
				structured, ok := WrapHTTPError(httpErr)
				if !ok {
					return err
				}
				err = structured
			}
			return HandleError(c, err)
		}
	}
}

func logError(c echo.Context, err *apperrors.Error) {
	attrs := []any{
		"error_type", err.Type,
		"message", err.Message,
		"path", c.Request().URL.Path,
		"method", c.Request().Method,
		"status", err.HTTPStatus(),
	}

	for k, v := range err.Context {
		attrs = append(attrs, k, v)
	}

	ctx := c.Request().Context()
	switch err.Type {
	case apperrors.TypeValidation, apperrors.TypeNotFound, apperrors.TypeRateLimited:
		slog.InfoContext(ctx, "Request rejected", attrs...)
	case apperrors.TypeUnavailable:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.WarnContext(ctx, "Dependency unavailable", attrs...)
	default:
		if err.Cause != nil {
			attrs = append(attrs, "cause", err.Cause)
		}
		slog.ErrorContext(ctx, "Internal error", attrs...)
	}
}

func HandleError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}

	structuredErr := apperrors.AsStructuredError(err)
	logError(c, structuredErr)
	if err := c.JSON(structuredErr.HTTPStatus(), structuredErr.ToResponse()); err != nil {
		return fmt.Errorf("failed to write error response: %w", err)
	}
	return nil
}

// WrapHTTPError maps echo's routing and binding errors onto the structured
// error type. Statuses without a matching type (405, 413, ...) are left to echo.
func WrapHTTPError(httpErr *echo.HTTPError) (*apperrors.Error, bool) {
	var errType apperrors.ErrorType
	switch httpErr.Code {
	case http.StatusBadRequest:
		errType = apperrors.TypeValidation
	case http.StatusNotFound:
		errType = apperrors.TypeNotFound
	case http.StatusTooManyRequests:
		errType = apperrors.TypeRateLimited
	case http.StatusServiceUnavailable:
		errType = apperrors.TypeUnavailable
	case http.StatusInternalServerError:
		errType = apperrors.TypeInternal
	default:
		return nil, false
	}

	message := http.StatusText(httpErr.Code)
	if msg, ok := httpErr.Message.(string); ok && msg != "" {
		message = msg
	}

	return &apperrors.Error{
		Type:    errType,
		Message: message,
		Cause:   httpErr.Internal,
		Context: map[string]any{},
	}, true
}
