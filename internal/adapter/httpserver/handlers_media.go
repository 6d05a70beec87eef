package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/labstack/echo/v4"
	apperrors "github.com/pscheid92/familyhub/internal/platform/errors"
)

type uploadResponse struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
}

// handleMediaUpload acknowledges an upload without storing it.
func (s *Server) handleMediaUpload(c echo.Context) error {
	file, err := c.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return apperrors.ValidationError("file is required").WithField("field", "file")
	}
	if err != nil {
		return apperrors.ValidationError("invalid multipart body")
	}

	name := filepath.Base(file.Filename)
	slog.InfoContext(c.Request().Context(), "Media upload queued", "filename", name, "size", file.Size)

	if err := c.JSON(http.StatusOK, uploadResponse{Filename: name, Status: "queued"}); err != nil {
		return fmt.Errorf("failed to write upload response: %w", err)
	}
	return nil
}
