package httpserver

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	apperrors "github.com/pscheid92/familyhub/internal/platform/errors"
	"golang.org/x/time/rate"
)

const rateLimiterExpiry = 5 * time.Minute

// newRateLimiter limits requests per client IP.
func newRateLimiter(ratePerSecond float64, burst int) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(ratePerSecond),
			Burst:     burst,
			ExpiresIn: rateLimiterExpiry,
		},
	)
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		Store: store,
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return apperrors.RateLimitedError("rate limit exceeded")
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return apperrors.InternalError("rate limiter failed", err)
		},
	})
}
