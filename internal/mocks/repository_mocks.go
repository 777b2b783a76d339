// Package mocks provides testify mocks of the repository, storage and service interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/repository"
)

// MockReportRepository implements repository.ReportRepository
type MockReportRepository struct {
	mock.Mock
}

// Create creates a new report
func (m *MockReportRepository) Create(ctx context.Context, report *models.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

// GetByID retrieves a report by its ID
func (m *MockReportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Report), args.Error(1)
}

// Query returns a page of reports
func (m *MockReportRepository) Query(ctx context.Context, filter query.Filter) (*query.Page[models.Report], error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*query.Page[models.Report]), args.Error(1)
}

// Touch refreshes updated_at of a report
func (m *MockReportRepository) Touch(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Delete deletes a report by its ID
func (m *MockReportRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAttachmentRepository implements repository.AttachmentRepository
type MockAttachmentRepository struct {
	mock.Mock
}

// CreateImage creates a new image attachment record
func (m *MockAttachmentRepository) CreateImage(ctx context.Context, image *models.ImageAttachment) error {
	args := m.Called(ctx, image)
	return args.Error(0)
}

// CreateVideo creates a new video attachment record
func (m *MockAttachmentRepository) CreateVideo(ctx context.Context, video *models.VideoAttachment) error {
	args := m.Called(ctx, video)
	return args.Error(0)
}

// GetImage retrieves an image attachment by its ID
func (m *MockAttachmentRepository) GetImage(ctx context.Context, id uint) (*models.ImageAttachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImageAttachment), args.Error(1)
}

// GetVideo retrieves a video attachment by its ID
func (m *MockAttachmentRepository) GetVideo(ctx context.Context, id uint) (*models.VideoAttachment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.VideoAttachment), args.Error(1)
}

// ReplaceVideoFile swaps the stored blob of a video
func (m *MockAttachmentRepository) ReplaceVideoFile(ctx context.Context, id uint, file repository.VideoFile) error {
	args := m.Called(ctx, id, file)
	return args.Error(0)
}

var (
	_ repository.ReportRepository     = (*MockReportRepository)(nil)
	_ repository.AttachmentRepository = (*MockAttachmentRepository)(nil)
)
