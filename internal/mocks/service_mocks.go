package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/media"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
)

// MockReportService implements services.ReportService
type MockReportService struct {
	mock.Mock
}

// SubmitReport creates a report with attachments
func (m *MockReportService) SubmitReport(ctx context.Context, input services.ReportInput, images, videos []services.Upload) (*services.SubmitResult, error) {
	args := m.Called(ctx, input, images, videos)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitResult), args.Error(1)
}

// AddAttachments stores attachments on an existing report
func (m *MockReportService) AddAttachments(ctx context.Context, reportID uint, images, videos []services.Upload) (*services.SubmitResult, error) {
	args := m.Called(ctx, reportID, images, videos)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.SubmitResult), args.Error(1)
}

// ListReports returns a page of reports
func (m *MockReportService) ListReports(ctx context.Context, filter query.Filter) (*query.Page[models.Report], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Page[models.Report]), args.Error(1)
}

// GetReport retrieves a report
func (m *MockReportService) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

// DeleteReport removes a report
func (m *MockReportService) DeleteReport(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// OpenImage returns an image and its contents
func (m *MockReportService) OpenImage(ctx context.Context, id uint) (*models.ImageAttachment, io.ReadCloser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.ImageAttachment), args.Get(1).(io.ReadCloser), args.Error(2)
}

// OpenVideo returns a video and its contents
func (m *MockReportService) OpenVideo(ctx context.Context, id uint) (*models.VideoAttachment, io.ReadCloser, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*models.VideoAttachment), args.Get(1).(io.ReadCloser), args.Error(2)
}

// MockAttachmentStore implements services.AttachmentStore
type MockAttachmentStore struct {
	mock.Mock
}

// AddImage stores an image
func (m *MockAttachmentStore) AddImage(ctx context.Context, reportID uint, upload services.Upload) (*models.ImageAttachment, error) {
	args := m.Called(ctx, reportID, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImageAttachment), args.Error(1)
}

// AddVideo stores a video
func (m *MockAttachmentStore) AddVideo(ctx context.Context, reportID uint, upload services.Upload) (*models.VideoAttachment, error) {
	args := m.Called(ctx, reportID, upload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VideoAttachment), args.Error(1)
}

// MockImageNormalizer implements services.ImageNormalizer
type MockImageNormalizer struct {
	mock.Mock
}

// Normalize converts image bytes
func (m *MockImageNormalizer) Normalize(data []byte) (*media.NormalizedImage, error) {
	args := m.Called(data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*media.NormalizedImage), args.Error(1)
}

// MockVideoTranscoder implements services.VideoTranscoder
type MockVideoTranscoder struct {
	mock.Mock
}

// Transcode converts in to out
func (m *MockVideoTranscoder) Transcode(ctx context.Context, in, out string) error {
	args := m.Called(ctx, in, out)
	return args.Error(0)
}

// MockNotifier implements services.CriticalNotifier
type MockNotifier struct {
	mock.Mock
}

// NotifyCritical alerts about a critical report
func (m *MockNotifier) NotifyCritical(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// MockBroadcaster implements services.ReportBroadcaster and records every report
type MockBroadcaster struct {
	mu      sync.Mutex
	Reports []*models.Report
}

// NewMockBroadcaster creates a new MockBroadcaster instance
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{Reports: make([]*models.Report, 0)}
}

// BroadcastReportCreated records the report
func (m *MockBroadcaster) BroadcastReportCreated(report *models.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, report)
}

// GetReports returns all recorded broadcasts
func (m *MockBroadcaster) GetReports() []*models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.Report(nil), m.Reports...)
}

var (
	_ services.ReportService     = (*MockReportService)(nil)
	_ services.AttachmentStore   = (*MockAttachmentStore)(nil)
	_ services.ImageNormalizer   = (*MockImageNormalizer)(nil)
	_ services.VideoTranscoder   = (*MockVideoTranscoder)(nil)
	_ services.CriticalNotifier  = (*MockNotifier)(nil)
	_ services.ReportBroadcaster = (*MockBroadcaster)(nil)
)
