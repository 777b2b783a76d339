package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/mocks"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/websocket"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupRouterDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mock.ExpectPing()
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db, DriverName: "postgres"}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func routeSet(cfg *RouterConfig) map[string]bool {
	routes := make(map[string]bool)
	for _, r := range NewRouter(cfg).Routes() {
		routes[r.Method+" "+r.Path] = true
	}
	return routes
}

func TestNewRouter_RegistersRoutes(t *testing.T) {
	db, _ := setupRouterDB(t)

	routes := routeSet(&RouterConfig{DB: db, Service: new(mocks.MockReportService), Hub: websocket.NewHub(nil)})

	for _, want := range []string{
		"GET /health",
		"GET /ready",
		"GET /api/reports",
		"POST /api/reports",
		"GET /api/reports/:id",
		"DELETE /api/reports/:id",
		"POST /api/reports/:id/attachments",
		"GET /api/images/:id/file",
		"GET /api/videos/:id/file",
		"GET /ws",
	} {
		assert.True(t, routes[want], want)
	}
}

func TestNewRouter_LiveFeedRequiresHub(t *testing.T) {
	db, _ := setupRouterDB(t)

	routes := routeSet(&RouterConfig{DB: db, Service: new(mocks.MockReportService)})

	assert.False(t, routes["GET /ws"])
}

func TestNewRouter_ServesReportsWithSecurityHeaders(t *testing.T) {
	db, _ := setupRouterDB(t)
	service := new(mocks.MockReportService)
	service.On("ListReports", mock.Anything, mock.Anything).
		Return(&query.Page[models.Report]{Number: 1, NumPages: 1, PageSize: query.PageSize}, nil)

	e := NewRouter(&RouterConfig{DB: db, Service: service, AllowedOrigins: []string{"http://localhost:3000"}})

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	service.AssertExpectations(t)
}

func TestNewRouter_RateLimits(t *testing.T) {
	db, mock := setupRouterDB(t)
	mock.ExpectPing()

	e := NewRouter(&RouterConfig{DB: db, Service: new(mocks.MockReportService), RateLimit: 1, RateBurst: 1})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestNewRouter_BodyLimit(t *testing.T) {
	db, _ := setupRouterDB(t)

	e := NewRouter(&RouterConfig{DB: db, Service: new(mocks.MockReportService), BodyLimit: 8})

	req := httptest.NewRequest(http.MethodPost, "/api/reports", http.NoBody)
	req.ContentLength = 1024
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}
