//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PostgresIntegrationTestSuite runs repository operations against real PostgreSQL
type PostgresIntegrationTestSuite struct {
	suite.Suite
	container   testcontainers.Container
	db          *gorm.DB
	reports     ReportRepository
	attachments AttachmentRepository
	storage     *MockFileStorageForRepo
}

// SetupSuite starts PostgreSQL container and initializes database
func (s *PostgresIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "diagnostics_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(s.T(), err)
	s.container = container

	host, err := container.Host(ctx)
	require.NoError(s.T(), err)

	port, err := container.MappedPort(ctx, "5432")
	require.NoError(s.T(), err)

	dsn := fmt.Sprintf("host=%s port=%s user=test password=test dbname=diagnostics_test sslmode=disable",
		host, port.Port())

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err)
	s.db = db

	err = db.AutoMigrate(&models.Report{}, &models.ImageAttachment{}, &models.VideoAttachment{})
	require.NoError(s.T(), err)

	s.storage = &MockFileStorageForRepo{}
	s.reports = NewReportRepository(db, s.storage)
	s.attachments = NewAttachmentRepository(db)
}

// TearDownSuite stops the PostgreSQL container
func (s *PostgresIntegrationTestSuite) TearDownSuite() {
	if s.container != nil {
		s.container.Terminate(context.Background())
	}
}

// SetupTest cleans the tables between tests
func (s *PostgresIntegrationTestSuite) SetupTest() {
	s.db.Exec("TRUNCATE report_images, report_videos, reports RESTART IDENTITY CASCADE")
	s.storage.DeletedPaths = nil
}

func TestPostgresIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationTestSuite))
}

func (s *PostgresIntegrationTestSuite) create(title string, at time.Time) *models.Report {
	r := &models.Report{Title: title, UserName: "Ana", UserEmail: "ana@example.com", Message: "m", CreatedAt: at}
	require.NoError(s.T(), s.reports.Create(context.Background(), r))
	return r
}

func (s *PostgresIntegrationTestSuite) TestQuery_FiltersAndPaginates() {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(s.T(), err)

	for i := 0; i < 12; i++ {
		s.create(fmt.Sprintf("Pump %02d", i), time.Date(2024, 1, 1, 1+i, 0, 0, 0, loc))
	}
	s.create("Pump next day", time.Date(2024, 1, 2, 0, 0, 0, 0, loc))
	s.create("Fan", time.Date(2024, 1, 1, 9, 0, 0, 0, loc))

	day, _ := query.ParseDate("2024-01-01")
	page, err := s.reports.Query(context.Background(), query.Filter{
		Text:      "pump",
		StartDate: &day,
		EndDate:   &day,
		Page:      50,
		Location:  loc,
	})

	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(12), page.Total)
	assert.Equal(s.T(), 2, page.Number)
	require.Len(s.T(), page.Items, 2)
	assert.Equal(s.T(), "Pump 01", page.Items[0].Title)
	assert.Equal(s.T(), "Pump 00", page.Items[1].Title)
}

func (s *PostgresIntegrationTestSuite) TestQuery_TextFoldsAccentedCase() {
	s.create("VÁLVULA travada", time.Now())
	s.create("Bomba", time.Now())

	page, err := s.reports.Query(context.Background(), query.Filter{Text: "válvula"})

	require.NoError(s.T(), err)
	require.Len(s.T(), page.Items, 1)
	assert.Equal(s.T(), "VÁLVULA travada", page.Items[0].Title)
}

func (s *PostgresIntegrationTestSuite) TestDelete_Cascades() {
	ctx := context.Background()
	r := s.create("Doomed", time.Time{})
	require.NoError(s.T(), s.attachments.CreateImage(ctx, &models.ImageAttachment{ReportID: r.ID, FilePath: "aa/1.webp"}))
	require.NoError(s.T(), s.attachments.CreateVideo(ctx, &models.VideoAttachment{ReportID: r.ID, FilePath: "bb/1.mp4"}))

	require.NoError(s.T(), s.reports.Delete(ctx, r.ID))

	assert.Zero(s.T(), countRows(s.T(), s.db, &models.ImageAttachment{}, r.ID))
	assert.Zero(s.T(), countRows(s.T(), s.db, &models.VideoAttachment{}, r.ID))
	assert.Len(s.T(), s.storage.DeletedPaths, 2)
}
