package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/familyhub/internal/platform/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRemoteAddr = "1.2.3.4:1234"

func runLimited(t *testing.T, handler echo.HandlerFunc, remoteAddr string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/events", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	return rec, handler(c)
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimiterAllowsRequestsUnderLimit(t *testing.T) {
	handler := newRateLimiter(10, 3)(okHandler)

	for range 3 {
		rec, err := runLimited(t, handler, testRemoteAddr)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestRateLimiterBlocksExcessiveRequests(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	_, err := runLimited(t, handler, testRemoteAddr)
	require.NoError(t, err)

	_, err = runLimited(t, handler, testRemoteAddr)
	require.Error(t, err)
	structured := apperrors.AsStructuredError(err)
	assert.Equal(t, apperrors.TypeRateLimited, structured.Type)
	assert.Equal(t, http.StatusTooManyRequests, structured.HTTPStatus())
}

func TestRateLimiterDifferentIPsAreIndependent(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	_, err := runLimited(t, handler, testRemoteAddr)
	require.NoError(t, err)

	_, err = runLimited(t, handler, "5.6.7.8:5678")
	require.NoError(t, err)

	_, err = runLimited(t, handler, testRemoteAddr)
	assert.Error(t, err)
}
