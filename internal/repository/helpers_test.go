package repository

import (
	"bytes"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a file-backed SQLite database with foreign keys enforced
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "reports.db") + "?_foreign_keys=on"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&models.Report{}, &models.ImageAttachment{}, &models.VideoAttachment{})
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, _ := db.DB(); sqlDB != nil {
			sqlDB.Close()
		}
	})
	return db
}

// countRows counts the rows of model that belong to a report
func countRows(t *testing.T, db *gorm.DB, model interface{}, reportID uint) int64 {
	t.Helper()

	var n int64
	require.NoError(t, db.Model(model).Where("report_id = ?", reportID).Count(&n).Error)
	return n
}

// MockFileStorageForRepo records deletions
type MockFileStorageForRepo struct {
	DeletedPaths []string
	DeleteError  error
}

func (m *MockFileStorageForRepo) Save(filename string, content io.Reader) (string, error) {
	return "mo/" + filename, nil
}

func (m *MockFileStorageForRepo) Reserve(ext string) (string, string, error) {
	return "mo/reserved" + ext, "/tmp/mo/reserved" + ext, nil
}

func (m *MockFileStorageForRepo) Get(filepath string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader([]byte("mock content"))), nil
}

func (m *MockFileStorageForRepo) Path(filepath string) (string, error) {
	return "/tmp/" + filepath, nil
}

func (m *MockFileStorageForRepo) Delete(filepath string) error {
	m.DeletedPaths = append(m.DeletedPaths, filepath)
	return m.DeleteError
}

// Ensure MockFileStorageForRepo implements storage.FileStorage
var _ storage.FileStorage = (*MockFileStorageForRepo)(nil)
