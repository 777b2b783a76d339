package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/h2non/filetype"
	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/media"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/repository"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/storage"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/validator"
)

// DefaultMaxVideoBytes is the video upload ceiling (20 MiB)
const DefaultMaxVideoBytes int64 = 20 << 20

const defaultContentType = "application/octet-stream"

// Upload is one file received from a client
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the upload length in bytes
func (u Upload) Size() int64 {
	return int64(len(u.Data))
}

// ImageNormalizer converts raw image bytes into a bounded rendition
type ImageNormalizer interface {
	Normalize(data []byte) (*media.NormalizedImage, error)
}

// VideoTranscoder re-encodes a stored video file into another path
type VideoTranscoder interface {
	Transcode(ctx context.Context, in, out string) error
}

// AttachmentConfig holds limits enforced by the attachment store
type AttachmentConfig struct {
	MaxVideoBytes int64
}

// AttachmentStore associates media files with reports
type AttachmentStore interface {
	// AddImage stores an image, normalized when possible and as uploaded otherwise
	AddImage(ctx context.Context, reportID uint, upload Upload) (*models.ImageAttachment, error)

	// AddVideo validates size then declared type, persists the original,
	// then attempts a transcode that replaces it on success
	AddVideo(ctx context.Context, reportID uint, upload Upload) (*models.VideoAttachment, error)
}

// attachmentStore implements AttachmentStore
type attachmentStore struct {
	repo    repository.AttachmentRepository
	storage storage.FileStorage
	images  ImageNormalizer
	videos  VideoTranscoder
	config  AttachmentConfig
	logger  *slog.Logger
}

// NewAttachmentStore creates a new AttachmentStore instance.
// A nil transcoder keeps every video as uploaded.
func NewAttachmentStore(
	repo repository.AttachmentRepository,
	fileStorage storage.FileStorage,
	images ImageNormalizer,
	videos VideoTranscoder,
	config AttachmentConfig,
	logger *slog.Logger,
) AttachmentStore {
	if config.MaxVideoBytes <= 0 {
		config.MaxVideoBytes = DefaultMaxVideoBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &attachmentStore{
		repo:    repo,
		storage: fileStorage,
		images:  images,
		videos:  videos,
		config:  config,
		logger:  logger,
	}
}

// AddImage stores an image for a report. Images are never rejected for their
// content type; bytes that cannot be decoded are kept unchanged. A zero-byte
// upload is the one exception: it is refused as invalid input rather than
// stored as an empty blob.
func (s *attachmentStore) AddImage(ctx context.Context, reportID uint, upload Upload) (*models.ImageAttachment, error) {
	if upload.Size() == 0 {
		return nil, fmt.Errorf("%w: empty image upload", apperrors.ErrInvalidInput)
	}

	filename := validator.SanitizeFilename(upload.Filename)
	image := &models.ImageAttachment{
		ReportID:    reportID,
		Filename:    filename,
		ContentType: declaredOrSniffed(upload.ContentType, upload.Data),
	}
	data := upload.Data

	if s.images != nil {
		normalized, err := s.images.Normalize(upload.Data)
		switch {
		case err == nil:
			data = normalized.Data
			image.Filename = media.NormalizedFilename(filename)
			image.ContentType = normalized.ContentType
			image.Normalized = true
		case errors.Is(err, media.ErrUnsupportedMedia):
			s.logger.Debug("Image kept as uploaded",
				slog.Uint64("report_id", uint64(reportID)),
				slog.String("filename", filename),
				slog.Any("error", err),
			)
		default:
			s.logger.Warn("Image normalization failed, keeping original",
				slog.Uint64("report_id", uint64(reportID)),
				slog.String("filename", filename),
				slog.Any("error", err),
			)
		}
	}

	path, err := s.storage.Save(image.Filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageWrite, err)
	}
	image.FilePath = path
	image.SizeBytes = int64(len(data))

	if err := s.repo.CreateImage(ctx, image); err != nil {
		_ = s.storage.Delete(path)
		return nil, fmt.Errorf("failed to record image: %w", err)
	}

	return image, nil
}

// AddVideo stores a video for a report.
// Checks run in a fixed order: size, declared type, persistence, transcode.
func (s *attachmentStore) AddVideo(ctx context.Context, reportID uint, upload Upload) (*models.VideoAttachment, error) {
	if upload.Size() > s.config.MaxVideoBytes {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			apperrors.ErrPayloadTooLarge, upload.Filename, upload.Size(), s.config.MaxVideoBytes)
	}

	contentType := strings.ToLower(strings.TrimSpace(upload.ContentType))
	if contentType != "" && !strings.HasPrefix(contentType, "video/") {
		return nil, fmt.Errorf("%w: %s declared as %s", apperrors.ErrUnsupportedMedia, upload.Filename, contentType)
	}

	if upload.Size() == 0 {
		return nil, fmt.Errorf("%w: empty video upload", apperrors.ErrInvalidInput)
	}

	filename := validator.SanitizeFilename(upload.Filename)
	path, err := s.storage.Save(filename, bytes.NewReader(upload.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStorageWrite, err)
	}

	video := &models.VideoAttachment{
		ReportID:    reportID,
		Filename:    filename,
		ContentType: declaredOrSniffed(contentType, upload.Data),
		FilePath:    path,
		SizeBytes:   upload.Size(),
	}
	if err := s.repo.CreateVideo(ctx, video); err != nil {
		_ = s.storage.Delete(path)
		return nil, fmt.Errorf("failed to record video: %w", err)
	}

	s.transcode(ctx, video)
	return video, nil
}

// transcode attempts one re-encode of a persisted video. Every failure
// leaves the original file and row untouched.
func (s *attachmentStore) transcode(ctx context.Context, video *models.VideoAttachment) {
	if s.videos == nil {
		return
	}
	log := s.logger.With(
		slog.Uint64("video_id", uint64(video.ID)),
		slog.String("filename", video.Filename),
	)

	in, err := s.storage.Path(video.FilePath)
	if err != nil {
		log.Warn("Cannot locate stored video for transcode", slog.Any("error", err))
		return
	}

	outRel, outAbs, err := s.storage.Reserve(media.TranscodedExt)
	if err != nil {
		log.Warn("Cannot reserve transcode output", slog.Any("error", err))
		return
	}

	if err := s.videos.Transcode(ctx, in, outAbs); err != nil {
		_ = s.storage.Delete(outRel)
		log.Info("Video kept as uploaded", slog.Any("error", err))
		return
	}

	info, err := os.Stat(outAbs)
	if err != nil {
		_ = s.storage.Delete(outRel)
		log.Warn("Transcode output disappeared", slog.Any("error", err))
		return
	}

	err = s.repo.ReplaceVideoFile(ctx, video.ID, repository.VideoFile{
		FilePath:    outRel,
		ContentType: media.TranscodedContentType,
		SizeBytes:   info.Size(),
		Transcoded:  true,
	})
	if err != nil {
		_ = s.storage.Delete(outRel)
		log.Warn("Failed to record transcoded video", slog.Any("error", err))
		return
	}

	original := video.FilePath
	if fresh, err := s.repo.GetVideo(ctx, video.ID); err == nil {
		*video = *fresh
	} else {
		video.FilePath = outRel
		video.ContentType = media.TranscodedContentType
		video.SizeBytes = info.Size()
		video.Transcoded = true
	}

	if err := s.storage.Delete(original); err != nil {
		log.Warn("Failed to remove pre-transcode file", slog.String("path", original), slog.Any("error", err))
	}
}

// declaredOrSniffed returns the declared content type, or one detected from magic bytes
func declaredOrSniffed(declared string, data []byte) string {
	if declared = strings.TrimSpace(declared); declared != "" {
		return declared
	}
	if kind, err := filetype.Match(data); err == nil && kind != filetype.Unknown {
		return kind.MIME.Value
	}
	return defaultContentType
}
