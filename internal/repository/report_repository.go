package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/storage"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository defines the interface for report data access
type ReportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id uint) (*models.Report, error)
	Query(ctx context.Context, filter query.Filter) (*query.Page[models.Report], error)
	Touch(ctx context.Context, id uint) error
	Delete(ctx context.Context, id uint) error
}

// reportRepository implements ReportRepository using GORM
type reportRepository struct {
	db          *gorm.DB
	fileStorage storage.FileStorage
	now         func() time.Time
}

// NewReportRepository creates a new ReportRepository instance.
// fileStorage may be nil, in which case Delete leaves blobs in place.
func NewReportRepository(db *gorm.DB, fileStorage storage.FileStorage) ReportRepository {
	return &reportRepository{
		db:          db,
		fileStorage: fileStorage,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create inserts a report; both timestamps are set to the same UTC instant
func (r *reportRepository) Create(ctx context.Context, report *models.Report) error {
	if report == nil {
		return ErrInvalidInput
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = r.now()
	} else {
		report.CreatedAt = report.CreatedAt.UTC()
	}
	report.UpdatedAt = report.CreatedAt
	if report.Category == "" {
		report.Category = models.CategoryNormal
	}

	result := r.db.WithContext(ctx).Create(report)
	if result.Error != nil {
		return fmt.Errorf("failed to create report: %w", result.Error)
	}
	return nil
}

// GetByID retrieves a report by its ID with preloaded attachments
func (r *reportRepository) GetByID(ctx context.Context, id uint) (*models.Report, error) {
	var report models.Report
	result := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&report, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report by ID: %w", result.Error)
	}
	return &report, nil
}

// Query returns one page of reports matching the filter.
// A page beyond the last one yields the last page.
func (r *reportRepository) Query(ctx context.Context, filter query.Filter) (*query.Page[models.Report], error) {
	scoped := r.db.WithContext(ctx).Model(&models.Report{}).Scopes(filterScope(filter))

	var total int64
	if err := scoped.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count reports: %w", err)
	}

	paginator := query.NewPaginator(total, query.PageSize)
	number := paginator.Clamp(filter.PageOrDefault())

	sortKey := filter.SortKeyOrDefault()
	desc := sortKey.Descending()

	var reports []models.Report
	err := r.db.WithContext(ctx).
		Scopes(filterScope(filter)).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Videos", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortKey.Column()}, Desc: desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: desc}).
		Limit(paginator.PageSize).
		Offset(paginator.Offset(number)).
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return query.NewPage(reports, paginator, number), nil
}

// filterScope applies the text, category and date constraints of a filter
func filterScope(filter query.Filter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if filter.Text != "" {
			db = db.Where(titleMatch(db), "%"+escapeLike(strings.ToLower(filter.Text))+"%")
		}
		if filter.Category != "" {
			db = db.Where("category = ?", filter.Category)
		}
		from, to := filter.Bounds()
		if from != nil {
			db = db.Where("created_at >= ?", *from)
		}
		if to != nil {
			db = db.Where("created_at <= ?", *to)
		}
		return db
	}
}

// titleMatch returns the case-insensitive title condition for the dialect.
// SQLite's LOWER only folds ASCII, so accented titles match case-sensitively there.
func titleMatch(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "title ILIKE ? ESCAPE '\\'"
	}
	return "LOWER(title) LIKE ? ESCAPE '\\'"
}

// escapeLike neutralizes LIKE wildcards in user input
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Touch refreshes updated_at of a report
func (r *reportRepository) Touch(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Model(&models.Report{}).Where("id = ?", id).Update("updated_at", r.now())
	if result.Error != nil {
		return fmt.Errorf("failed to touch report: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrReportNotFound
	}
	return nil
}

// Delete removes a report and its attachment rows in one transaction,
// then removes the attachment files. File removal failures are ignored.
func (r *reportRepository) Delete(ctx context.Context, id uint) error {
	var paths []string

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var report models.Report
		if err := tx.Preload("Images").Preload("Videos").First(&report, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrReportNotFound
			}
			return fmt.Errorf("failed to load report: %w", err)
		}
		paths = report.FilePaths()

		if err := tx.Where("report_id = ?", id).Delete(&models.ImageAttachment{}).Error; err != nil {
			return fmt.Errorf("failed to delete report images: %w", err)
		}
		if err := tx.Where("report_id = ?", id).Delete(&models.VideoAttachment{}).Error; err != nil {
			return fmt.Errorf("failed to delete report videos: %w", err)
		}
		if err := tx.Delete(&models.Report{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if r.fileStorage != nil {
		for _, p := range paths {
			_ = r.fileStorage.Delete(p)
		}
	}
	return nil
}
