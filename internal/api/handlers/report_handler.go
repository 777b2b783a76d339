package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/api/response"
	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/logger"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
)

// Multipart field names carrying files
const (
	FormFieldImages = "images"
	FormFieldVideos = "videos"
)

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	service        services.ReportService
	audit          *logger.AuditLogger
	location       *time.Location
	maxUploadBytes int64
}

// ReportHandlerConfig holds the settings of a ReportHandler.
// Location is used to interpret date filters; MaxUploadBytes caps how much of a video is read.
type ReportHandlerConfig struct {
	Audit          *logger.AuditLogger
	Location       *time.Location
	MaxUploadBytes int64
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(service services.ReportService, cfg ReportHandlerConfig) *ReportHandler {
	if cfg.Location == nil {
		cfg.Location = query.DefaultLocation()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = services.DefaultMaxVideoBytes
	}
	return &ReportHandler{
		service:        service,
		audit:          cfg.Audit,
		location:       cfg.Location,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// RejectedUpload describes an attachment that was not stored
type RejectedUpload struct {
	Kind     string `json:"kind"`
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Error    string `json:"error"`
}

// SubmitResponse is returned after reports or attachments are stored
type SubmitResponse struct {
	Report   *models.Report           `json:"report"`
	Images   []models.ImageAttachment `json:"images"`
	Videos   []models.VideoAttachment `json:"videos"`
	Rejected []RejectedUpload         `json:"rejected"`
}

func newSubmitResponse(result *services.SubmitResult) SubmitResponse {
	resp := SubmitResponse{
		Report:   result.Report,
		Images:   result.Images,
		Videos:   result.Videos,
		Rejected: make([]RejectedUpload, 0, len(result.Rejected)),
	}
	if resp.Images == nil {
		resp.Images = []models.ImageAttachment{}
	}
	if resp.Videos == nil {
		resp.Videos = []models.VideoAttachment{}
	}
	for _, r := range result.Rejected {
		code := r.Code()
		msg := r.Err.Error()
		if response.HTTPStatus(code) == http.StatusInternalServerError {
			msg = "failed to store file"
		}
		resp.Rejected = append(resp.Rejected, RejectedUpload{
			Kind:     r.Kind,
			Filename: r.Filename,
			Code:     code,
			Error:    msg,
		})
	}
	return resp
}

// List handles GET /api/reports
func (h *ReportHandler) List(c echo.Context) error {
	filter := query.ParseFilter(c.QueryParams(), h.location)

	page, err := h.service.ListReports(c.Request().Context(), filter)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Paginated(c, page, filter)
}

// Create handles POST /api/reports
func (h *ReportHandler) Create(c echo.Context) error {
	images, videos, err := h.readUploads(c)
	if err != nil {
		return response.Error(c, err)
	}

	input := services.ReportInput{
		Title:        c.FormValue("title"),
		SUIdentifier: c.FormValue("su_identifier"),
		UserName:     c.FormValue("user_name"),
		UserEmail:    c.FormValue("user_email"),
		Message:      c.FormValue("message"),
		Category:     c.FormValue("category"),
		Source:       services.SourceHTTP,
	}

	result, err := h.service.SubmitReport(c.Request().Context(), input, images, videos)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, newSubmitResponse(result))
}

// Get handles GET /api/reports/:id
func (h *ReportHandler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid report ID")
	}

	report, err := h.service.GetReport(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, report)
}

// Delete handles DELETE /api/reports/:id
func (h *ReportHandler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid report ID")
	}

	if err := h.service.DeleteReport(c.Request().Context(), id); err != nil {
		return response.Error(c, err)
	}

	if h.audit != nil {
		h.audit.ReportDeleted(c.RealIP(), id)
	}

	return response.SuccessWithMessage(c, nil, "Report deleted")
}

// AddAttachments handles POST /api/reports/:id/attachments
func (h *ReportHandler) AddAttachments(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return response.BadRequest(c, "invalid report ID")
	}

	images, videos, err := h.readUploads(c)
	if err != nil {
		return response.Error(c, err)
	}
	if len(images)+len(videos) == 0 {
		return response.BadRequest(c, "no attachments provided")
	}

	result, err := h.service.AddAttachments(c.Request().Context(), id, images, videos)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, newSubmitResponse(result))
}

// readUploads collects the image and video parts of a multipart request.
// A request without a multipart body carries no uploads.
func (h *ReportHandler) readUploads(c echo.Context) (images, videos []services.Upload, err error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: malformed multipart body", apperrors.ErrInvalidInput)
	}

	// Images are read whole; the request itself is bounded by the body limit
	if images, err = readFiles(form.File[FormFieldImages], 0); err != nil {
		return nil, nil, err
	}
	if videos, err = readFiles(form.File[FormFieldVideos], h.maxUploadBytes+1); err != nil {
		return nil, nil, err
	}
	return images, videos, nil
}

// readFiles reads each file, stopping after limit bytes when limit is positive.
// Videos are read one byte past their ceiling so the attachment store can
// still tell that an oversized file is too large.
func readFiles(headers []*multipart.FileHeader, limit int64) ([]services.Upload, error) {
	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		// Browsers send an unnamed empty part for an untouched file input
		if fh.Filename == "" && fh.Size == 0 {
			continue
		}

		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open upload %s: %w", fh.Filename, err)
		}
		var r io.Reader = f
		if limit > 0 {
			r = io.LimitReader(f, limit)
		}
		data, err := io.ReadAll(r)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read upload %s: %w", fh.Filename, err)
		}

		uploads = append(uploads, services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(echo.HeaderContentType),
			Data:        data,
		})
	}
	return uploads, nil
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: id", apperrors.ErrInvalidInput)
	}
	return uint(id), nil
}
