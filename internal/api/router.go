package api

import (
	"log/slog"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/api/middleware"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/logger"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/websocket"
	"gorm.io/gorm"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	DB      *gorm.DB
	Service services.ReportService
	Logger  *slog.Logger
	Audit   *logger.AuditLogger

	// Live feed; the /ws route is only mounted when Hub is set
	Hub      *websocket.Hub
	Upgrader *gorillaws.Upgrader

	// Optional health probes keyed by service name
	HealthChecks map[string]handlers.CheckFunc

	// Security configuration
	AllowedOrigins []string // Allowed CORS origins
	Production     bool     // Drops the "*" origin
	RateLimit      float64  // Requests per second (0 = default)
	RateBurst      int      // Burst size for rate limiter
	BodyLimit      int64    // Maximum request body in bytes (0 = unlimited)

	// Upload handling
	MaxUploadBytes int64
	Location       *time.Location
}

// NewRouter creates and configures the Echo router with all routes
func NewRouter(cfg *RouterConfig) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Security Middleware (applied in correct order)
	// 1. Recover from panics
	e.Use(middleware.Recover())

	// 2. Security headers (applied to all responses)
	e.Use(middleware.SecureHeaders())

	// 3. CORS
	e.Use(middleware.SecureCORS(cfg.AllowedOrigins, cfg.Production))

	// 4. Rate limiting
	if cfg.RateLimit > 0 {
		e.Use(middleware.RateLimiterWithConfig(cfg.RateLimit, cfg.RateBurst, cfg.Audit))
	} else {
		e.Use(middleware.RateLimiter(cfg.Audit))
	}

	// 5. Request logging
	if cfg.Logger != nil {
		e.Use(middleware.RequestLogger(cfg.Logger))
	}

	// 6. Body limit
	if cfg.BodyLimit > 0 {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB)
	for name, check := range cfg.HealthChecks {
		healthHandler.WithCheck(name, check)
	}
	reportHandler := handlers.NewReportHandler(cfg.Service, handlers.ReportHandlerConfig{
		Audit:          cfg.Audit,
		Location:       cfg.Location,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})
	mediaHandler := handlers.NewMediaHandler(cfg.Service, cfg.Logger)

	// Health routes
	e.GET("/health", healthHandler.Health)
	e.GET("/ready", healthHandler.Ready)

	// API routes
	api := e.Group("/api")

	// Report routes
	reports := api.Group("/reports")
	reports.GET("", reportHandler.List)
	reports.POST("", reportHandler.Create)
	reports.GET("/:id", reportHandler.Get)
	reports.DELETE("/:id", reportHandler.Delete)
	reports.POST("/:id/attachments", reportHandler.AddAttachments)

	// Attachment file routes
	api.GET("/images/:id/file", mediaHandler.Image)
	api.GET("/videos/:id/file", mediaHandler.Video)

	// Live feed
	if cfg.Hub != nil {
		upgrader := cfg.Upgrader
		if upgrader == nil {
			u := websocket.NewSecureUpgrader(cfg.AllowedOrigins, cfg.Audit)
			upgrader = &u
		}
		wsHandler := handlers.NewWebSocketHandler(cfg.Hub, upgrader, cfg.Logger)
		e.GET("/ws", wsHandler.Serve)
	}

	return e
}
