package models

import (
	"slices"
	"time"
)

// Category classifies a diagnostic report
type Category string

const (
	CategoryNormal  Category = "normal"
	CategoryCritica Category = "critica"
)

// Categories lists every accepted category in display order
var Categories = []Category{CategoryNormal, CategoryCritica}

// Valid reports whether c is one of the known categories
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// Label returns the human readable name of the category
func (c Category) Label() string {
	switch c {
	case CategoryNormal:
		return "Normal"
	case CategoryCritica:
		return "Crítica"
	default:
		return string(c)
	}
}

// Field limits shared by validation and the schema
const (
	MaxTitleLength        = 200
	MaxSUIdentifierLength = 120
	MaxUserNameLength     = 120
	MaxUserEmailLength    = 254
)

// Report represents a single equipment diagnostic submission
type Report struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Title        string    `gorm:"not null;size:200;index" json:"title"`
	SUIdentifier string    `gorm:"size:120" json:"su_identifier,omitempty"`
	UserName     string    `gorm:"not null;size:120" json:"user_name"`
	UserEmail    string    `gorm:"not null;size:254" json:"user_email"`
	Message      string    `gorm:"not null;type:text" json:"message"`
	Category     Category  `gorm:"not null;size:20;default:normal;index" json:"category"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relationships
	Images []ImageAttachment `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"images,omitempty"`
	Videos []VideoAttachment `gorm:"foreignKey:ReportID;constraint:OnDelete:CASCADE" json:"videos,omitempty"`
}

// TableName returns the table name for Report
func (Report) TableName() string {
	return "reports"
}

// String mirrors the display form used in listings, e.g. "Pump failure (Crítica)"
func (r *Report) String() string {
	return r.Title + " (" + r.Category.Label() + ")"
}

// FilePaths returns the storage paths of every attachment loaded on the report
func (r *Report) FilePaths() []string {
	paths := make([]string, 0, len(r.Images)+len(r.Videos))
	for _, img := range r.Images {
		if img.FilePath != "" {
			paths = append(paths, img.FilePath)
		}
	}
	for _, v := range r.Videos {
		if v.FilePath != "" {
			paths = append(paths, v.FilePath)
		}
	}
	return paths
}
