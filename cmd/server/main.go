package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	gosmtp "github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/api"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/api/handlers"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/config"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/database"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/logger"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/media"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/notify"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/repository"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
	smtpgw "github.com/welldanyogia/webrana-diagnostics-backend/internal/smtp"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/storage"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/websocket"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadWithValidation()
	if err != nil {
		return err
	}

	// Setup logger
	level, _ := cfg.SlogLevel()
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	slog.Info("Starting Diagnostics Backend Server...")
	cfg.LogConfig(log)

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	// Database
	db, err := database.Connect(database.Options{
		URL:        cfg.DatabaseURL,
		Production: cfg.IsProduction(),
		Debug:      level <= slog.LevelDebug,
	})
	if err != nil {
		return err
	}
	defer database.Close(db)

	if err := database.Migrate(db); err != nil {
		return err
	}

	// File storage
	fileStorage, err := storage.NewLocalStorage(cfg.MediaStoragePath)
	if err != nil {
		return err
	}

	// Media pipeline
	imageCfg := media.DefaultImageConfig()
	imageCfg.MaxWidth = cfg.ImageMaxWidth
	imageCfg.MaxHeight = cfg.ImageMaxHeight
	imageCfg.Quality = cfg.ImageQuality

	videoCfg := media.DefaultVideoConfig()
	videoCfg.Binary = cfg.FFmpegPath
	videoCfg.Timeout = cfg.TranscodeTimeout
	transcoder := media.NewVideoTranscoder(videoCfg, media.ExecRunner{}, log)
	if err := transcoder.Available(); err != nil {
		slog.Warn("Video transcoder unavailable, videos will be kept as uploaded", slog.Any("error", err))
	}

	// Repositories
	reportRepo := repository.NewReportRepository(db, fileStorage)
	attachmentRepo := repository.NewAttachmentRepository(db)

	// Live feed
	hub := websocket.NewHub(log)
	go hub.Run()
	defer hub.Stop()

	audit := logger.NewAuditLogger()

	store := services.NewAttachmentStore(
		attachmentRepo,
		fileStorage,
		media.NewImageNormalizer(imageCfg),
		transcoder,
		services.AttachmentConfig{MaxVideoBytes: cfg.MaxVideoBytes()},
		log,
	)

	deps := services.ReportServiceDeps{
		Reports:     reportRepo,
		Attachments: attachmentRepo,
		Store:       store,
		Storage:     fileStorage,
		Broadcaster: hub,
		Audit:       audit,
		Logger:      log,
	}

	notifier := notify.NewEmailNotifier(notify.Config{
		Addr:     cfg.NotifySMTPAddr,
		From:     cfg.NotifyFrom,
		To:       cfg.NotifyTo,
		Location: loc,
	}, log)
	if notifier.Enabled() {
		deps.Notifier = notifier
	}

	reportService := services.NewReportService(deps)

	// HTTP server
	upgrader := websocket.NewSecureUpgrader(cfg.AllowedOriginList(), audit)
	router := api.NewRouter(&api.RouterConfig{
		DB:       db,
		Service:  reportService,
		Logger:   log,
		Audit:    audit,
		Hub:      hub,
		Upgrader: &upgrader,

		HealthChecks: map[string]handlers.CheckFunc{
			"transcoder": func(context.Context) error { return transcoder.Available() },
		},

		AllowedOrigins: cfg.AllowedOriginList(),
		Production:     cfg.IsProduction(),
		RateLimit:      cfg.RateLimitRequests,
		RateBurst:      cfg.RateLimitBurst,
		BodyLimit:      cfg.MaxRequestBytes(),
		MaxUploadBytes: cfg.MaxVideoBytes(),
		Location:       loc,
	})

	httpServer := &http.Server{
		Addr:              cfg.APIAddr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		slog.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// SMTP intake
	var smtpServer *gosmtp.Server
	if cfg.SMTPEnabled {
		certs, err := smtpgw.NewCertificateStore(cfg.SMTPTLSCert, cfg.SMTPTLSKey, log)
		if err != nil {
			return err
		}
		if certs != nil {
			go reloadCertificatesOnHangup(certs)
		}
		backend := smtpgw.NewBackend(&smtpgw.BackendConfig{
			Service:         reportService,
			IntakeAddresses: cfg.SMTPIntakeAddresses,
			Logger:          log,
		})
		smtpServer = smtpgw.NewSecureServer(backend, &smtpgw.ServerConfig{
			Addr:           cfg.SMTPAddr(),
			Domain:         cfg.SMTPDomain,
			MaxMessageSize: cfg.MaxRequestBytes(),
			TLSConfig:      certs.TLSConfig(),
		})
		go func() {
			slog.Info("SMTP server listening", slog.String("addr", smtpServer.Addr))
			if err := smtpServer.ListenAndServe(); err != nil && !errors.Is(err, gosmtp.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		slog.Info("Shutting down server...")
	case err := <-errCh:
		slog.Error("Server error, shutting down", slog.Any("error", err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if smtpServer != nil {
		if err := smtpServer.Shutdown(shutdownCtx); err != nil {
			slog.Warn("SMTP server shutdown failed", slog.Any("error", err))
		}
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown failed", slog.Any("error", err))
	}

	slog.Info("Server stopped")
	return nil
}

// reloadCertificatesOnHangup reloads the SMTP certificate on every SIGHUP
func reloadCertificatesOnHangup(certs *smtpgw.CertificateStore) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	for range hup {
		if err := certs.Reload(); err != nil {
			slog.Error("SMTP certificate reload failed", slog.Any("error", err))
		}
	}
}
