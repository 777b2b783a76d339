package handlers

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/api/response"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
)

// MediaHandler streams stored attachment files
type MediaHandler struct {
	service services.ReportService
	logger  *slog.Logger
}

// NewMediaHandler creates a new MediaHandler
func NewMediaHandler(service services.ReportService, logger *slog.Logger) *MediaHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaHandler{service: service, logger: logger}
}

// Image handles GET /api/images/:id/file
func (h *MediaHandler) Image(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid image ID")
	}

	image, file, err := h.service.OpenImage(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	defer file.Close()

	return h.stream(c, file, image.Filename, image.ContentType, image.SizeBytes)
}

// Video handles GET /api/videos/:id/file
func (h *MediaHandler) Video(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid video ID")
	}

	video, file, err := h.service.OpenVideo(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}
	defer file.Close()

	return h.stream(c, file, video.Filename, video.ContentType, video.SizeBytes)
}

// stream writes the file inline so browsers can display it
func (h *MediaHandler) stream(c echo.Context, file io.Reader, filename, contentType string, size int64) error {
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}

	header := c.Response().Header()
	header.Set(echo.HeaderContentType, contentType)
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("inline", map[string]string{"filename": filename}))
	if size > 0 {
		header.Set(echo.HeaderContentLength, strconv.FormatInt(size, 10))
	}
	c.Response().WriteHeader(http.StatusOK)

	// Headers are already sent, so a copy failure can only be logged
	if _, err := io.Copy(c.Response(), file); err != nil {
		h.logger.Warn("Failed to stream attachment",
			slog.String("filename", filename),
			slog.Any("error", err),
		)
	}
	return nil
}
