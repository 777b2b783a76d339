package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"gorm.io/gorm"
)

// VideoFile describes the blob a video attachment points at
type VideoFile struct {
	FilePath    string
	ContentType string
	SizeBytes   int64
	Transcoded  bool
}

// AttachmentRepository defines the interface for attachment data access
type AttachmentRepository interface {
	CreateImage(ctx context.Context, image *models.ImageAttachment) error
	CreateVideo(ctx context.Context, video *models.VideoAttachment) error
	GetImage(ctx context.Context, id uint) (*models.ImageAttachment, error)
	GetVideo(ctx context.Context, id uint) (*models.VideoAttachment, error)
	// ReplaceVideoFile swaps the stored blob of a video in a single update
	ReplaceVideoFile(ctx context.Context, id uint, file VideoFile) error
}

// attachmentRepository implements AttachmentRepository using GORM
type attachmentRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewAttachmentRepository creates a new AttachmentRepository instance
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreateImage creates a new image attachment record
func (r *attachmentRepository) CreateImage(ctx context.Context, image *models.ImageAttachment) error {
	image.CreatedAt = r.now()
	image.UpdatedAt = image.CreatedAt
	result := r.db.WithContext(ctx).Create(image)
	if result.Error != nil {
		return fmt.Errorf("failed to create image attachment: %w", result.Error)
	}
	return nil
}

// CreateVideo creates a new video attachment record
func (r *attachmentRepository) CreateVideo(ctx context.Context, video *models.VideoAttachment) error {
	video.CreatedAt = r.now()
	video.UpdatedAt = video.CreatedAt
	result := r.db.WithContext(ctx).Create(video)
	if result.Error != nil {
		return fmt.Errorf("failed to create video attachment: %w", result.Error)
	}
	return nil
}

// GetImage retrieves an image attachment by its ID
func (r *attachmentRepository) GetImage(ctx context.Context, id uint) (*models.ImageAttachment, error) {
	var image models.ImageAttachment
	result := r.db.WithContext(ctx).First(&image, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrImageNotFound
		}
		return nil, fmt.Errorf("failed to get image by ID: %w", result.Error)
	}
	return &image, nil
}

// GetVideo retrieves a video attachment by its ID
func (r *attachmentRepository) GetVideo(ctx context.Context, id uint) (*models.VideoAttachment, error) {
	var video models.VideoAttachment
	result := r.db.WithContext(ctx).First(&video, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrVideoNotFound
		}
		return nil, fmt.Errorf("failed to get video by ID: %w", result.Error)
	}
	return &video, nil
}

// ReplaceVideoFile points a video at a new blob and refreshes its timestamp
func (r *attachmentRepository) ReplaceVideoFile(ctx context.Context, id uint, file VideoFile) error {
	result := r.db.WithContext(ctx).Model(&models.VideoAttachment{}).Where("id = ?", id).Updates(map[string]interface{}{
		"file_path":    file.FilePath,
		"content_type": file.ContentType,
		"size_bytes":   file.SizeBytes,
		"transcoded":   file.Transcoded,
		"updated_at":   r.now(),
	})
	if result.Error != nil {
		return fmt.Errorf("failed to replace video file: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrVideoNotFound
	}
	return nil
}
