package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/logger"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/repository"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/storage"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/validator"
)

// Attachment kinds
const (
	KindImage = "image"
	KindVideo = "video"
)

// Intake sources recorded in the audit log
const (
	SourceHTTP = "http"
	SourceSMTP = "smtp"
)

// ReportInput carries the user-supplied fields of a new report
type ReportInput struct {
	Title        string
	SUIdentifier string
	UserName     string
	UserEmail    string
	Message      string
	Category     string
	// Source names the intake channel; empty means SourceHTTP
	Source string
}

// AttachmentError describes one upload that could not be stored
type AttachmentError struct {
	Kind     string
	Filename string
	Err      error
}

// Error implements the error interface
func (e AttachmentError) Error() string {
	return e.Kind + " " + e.Filename + ": " + e.Err.Error()
}

// Unwrap returns the underlying error
func (e AttachmentError) Unwrap() error {
	return e.Err
}

// Code returns the API error code of the failure
func (e AttachmentError) Code() string {
	return apperrors.GetErrorCode(e.Err)
}

// SubmitResult is the outcome of storing a report and its attachments
type SubmitResult struct {
	Report   *models.Report
	Images   []models.ImageAttachment
	Videos   []models.VideoAttachment
	Rejected []AttachmentError
}

// Stored returns how many attachments were kept
func (r *SubmitResult) Stored() int {
	return len(r.Images) + len(r.Videos)
}

// ReportBroadcaster pushes newly created reports to live subscribers
type ReportBroadcaster interface {
	BroadcastReportCreated(report *models.Report)
}

// CriticalNotifier alerts operators about critical reports
type CriticalNotifier interface {
	NotifyCritical(ctx context.Context, report *models.Report) error
}

// ReportService defines the application operations on diagnostic reports
type ReportService interface {
	// SubmitReport validates and creates a report, then stores each attachment.
	// Attachment failures are collected in the result and never undo the report.
	SubmitReport(ctx context.Context, input ReportInput, images, videos []Upload) (*SubmitResult, error)

	// AddAttachments stores more attachments on an existing report
	AddAttachments(ctx context.Context, reportID uint, images, videos []Upload) (*SubmitResult, error)

	// ListReports returns one filtered, sorted page of reports
	ListReports(ctx context.Context, filter query.Filter) (*query.Page[models.Report], error)

	GetReport(ctx context.Context, id uint) (*models.Report, error)
	DeleteReport(ctx context.Context, id uint) error

	// OpenImage and OpenVideo return an attachment with a reader over its file.
	// The caller closes the reader.
	OpenImage(ctx context.Context, id uint) (*models.ImageAttachment, io.ReadCloser, error)
	OpenVideo(ctx context.Context, id uint) (*models.VideoAttachment, io.ReadCloser, error)
}

// ReportServiceDeps holds the collaborators of the report service.
// Broadcaster, Notifier, Audit and Logger are optional.
type ReportServiceDeps struct {
	Reports     repository.ReportRepository
	Attachments repository.AttachmentRepository
	Store       AttachmentStore
	Storage     storage.FileStorage
	Broadcaster ReportBroadcaster
	Notifier    CriticalNotifier
	Audit       *logger.AuditLogger
	Logger      *slog.Logger
}

// reportService implements ReportService
type reportService struct {
	ReportServiceDeps
}

// NewReportService creates a new ReportService instance
func NewReportService(deps ReportServiceDeps) ReportService {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &reportService{ReportServiceDeps: deps}
}

// SubmitReport creates a report and attaches images first, then videos
func (s *reportService) SubmitReport(ctx context.Context, input ReportInput, images, videos []Upload) (*SubmitResult, error) {
	fields := validator.ReportFields{
		Title:        input.Title,
		SUIdentifier: input.SUIdentifier,
		UserName:     input.UserName,
		UserEmail:    input.UserEmail,
		Message:      input.Message,
		Category:     input.Category,
	}.Clean()

	category, vErr := validator.ValidateReport(fields)
	if vErr != nil {
		return nil, vErr
	}

	report := &models.Report{
		Title:        fields.Title,
		SUIdentifier: fields.SUIdentifier,
		UserName:     fields.UserName,
		UserEmail:    fields.UserEmail,
		Message:      fields.Message,
		Category:     category,
	}
	if err := s.Reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	source := input.Source
	if source == "" {
		source = SourceHTTP
	}

	result := &SubmitResult{Report: report}
	s.attach(ctx, source, result, images, videos)

	if s.Audit != nil {
		s.Audit.ReportSubmitted(source, report.ID, string(report.Category), result.Stored())
	}
	if s.Broadcaster != nil {
		s.Broadcaster.BroadcastReportCreated(result.Report)
	}
	if report.Category == models.CategoryCritica && s.Notifier != nil {
		if err := s.Notifier.NotifyCritical(ctx, result.Report); err != nil {
			s.Logger.Warn("Critical report notification failed",
				slog.Uint64("report_id", uint64(report.ID)),
				slog.Any("error", err),
			)
		}
	}

	return result, nil
}

// AddAttachments stores uploads against an existing report
func (s *reportService) AddAttachments(ctx context.Context, reportID uint, images, videos []Upload) (*SubmitResult, error) {
	report, err := s.Reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, err
	}

	result := &SubmitResult{Report: report}
	s.attach(ctx, SourceHTTP, result, images, videos)
	return result, nil
}

// attach runs every upload through the attachment store, isolating failures,
// and refreshes the report when anything was stored
func (s *reportService) attach(ctx context.Context, source string, result *SubmitResult, images, videos []Upload) {
	reportID := result.Report.ID

	for _, up := range images {
		image, err := s.Store.AddImage(ctx, reportID, up)
		if err != nil {
			s.reject(source, result, KindImage, up, err)
			continue
		}
		result.Images = append(result.Images, *image)
	}

	for _, up := range videos {
		video, err := s.Store.AddVideo(ctx, reportID, up)
		if err != nil {
			s.reject(source, result, KindVideo, up, err)
			continue
		}
		result.Videos = append(result.Videos, *video)
	}

	if result.Stored() == 0 {
		return
	}

	if err := s.Reports.Touch(ctx, reportID); err != nil {
		s.Logger.Warn("Failed to refresh report timestamp",
			slog.Uint64("report_id", uint64(reportID)),
			slog.Any("error", err),
		)
	}
	if fresh, err := s.Reports.GetByID(ctx, reportID); err == nil {
		result.Report = fresh
	}
}

func (s *reportService) reject(source string, result *SubmitResult, kind string, up Upload, err error) {
	result.Rejected = append(result.Rejected, AttachmentError{
		Kind:     kind,
		Filename: up.Filename,
		Err:      err,
	})

	code := apperrors.GetErrorCode(err)
	if code == apperrors.CodeInternalError || code == apperrors.CodeStorageWrite {
		s.Logger.Error("Failed to store attachment",
			slog.Uint64("report_id", uint64(result.Report.ID)),
			slog.String("kind", kind),
			slog.String("filename", up.Filename),
			slog.Any("error", err),
		)
		return
	}
	if s.Audit != nil {
		s.Audit.UploadRejected(source, result.Report.ID, kind, up.Filename, code)
	}
}

// ListReports delegates to the repository query
func (s *reportService) ListReports(ctx context.Context, filter query.Filter) (*query.Page[models.Report], error) {
	page, err := s.Reports.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	return page, nil
}

// GetReport retrieves a report with its attachments
func (s *reportService) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	return s.Reports.GetByID(ctx, id)
}

// DeleteReport removes a report, its attachment rows and their files
func (s *reportService) DeleteReport(ctx context.Context, id uint) error {
	return s.Reports.Delete(ctx, id)
}

// OpenImage returns an image attachment and its file contents
func (s *reportService) OpenImage(ctx context.Context, id uint) (*models.ImageAttachment, io.ReadCloser, error) {
	image, err := s.Attachments.GetImage(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.open(image.FilePath, apperrors.ErrImageNotFound)
	if err != nil {
		return nil, nil, err
	}
	return image, reader, nil
}

// OpenVideo returns a video attachment and its file contents
func (s *reportService) OpenVideo(ctx context.Context, id uint) (*models.VideoAttachment, io.ReadCloser, error) {
	video, err := s.Attachments.GetVideo(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	reader, err := s.open(video.FilePath, apperrors.ErrVideoNotFound)
	if err != nil {
		return nil, nil, err
	}
	return video, reader, nil
}

func (s *reportService) open(path string, notFound error) (io.ReadCloser, error) {
	reader, err := s.Storage.Get(path)
	if err != nil {
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, notFound
		}
		return nil, fmt.Errorf("failed to open attachment file: %w", err)
	}
	return reader, nil
}
