package models

import "time"

// ImageAttachment is an image stored for a report.
// Once normalization succeeds FilePath points at the re-encoded web image.
type ImageAttachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReportID    uint      `gorm:"not null;index" json:"report_id"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	FilePath    string    `gorm:"size:500" json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	Normalized  bool      `gorm:"default:false" json:"normalized"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for ImageAttachment
func (ImageAttachment) TableName() string {
	return "report_images"
}

// VideoAttachment is a video stored for a report.
// Transcoded is false while FilePath still holds the original upload.
type VideoAttachment struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ReportID    uint      `gorm:"not null;index" json:"report_id"`
	Filename    string    `gorm:"size:255" json:"filename"`
	ContentType string    `gorm:"size:100" json:"content_type"`
	FilePath    string    `gorm:"size:500" json:"-"`
	SizeBytes   int64     `json:"size_bytes"`
	Transcoded  bool      `gorm:"default:false" json:"transcoded"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the table name for VideoAttachment
func (VideoAttachment) TableName() string {
	return "report_videos"
}
