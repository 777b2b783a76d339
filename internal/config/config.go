package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Database
	DatabaseURL string

	// Server ports
	APIPort  int
	SMTPPort int

	// Storage
	MediaStoragePath string

	// Upload limits
	MaxVideoUploadMB int
	MaxRequestMB     int

	// Image rendition
	ImageMaxWidth  int
	ImageMaxHeight int
	ImageQuality   int

	// Video rendition
	FFmpegPath       string
	TranscodeTimeout time.Duration

	// Date filters are interpreted in this zone
	TimeZone string

	// Logging
	LogLevel string

	// Security
	AllowedOrigins string
	AppEnv         string

	// Rate Limiting
	RateLimitRequests float64
	RateLimitBurst    int

	// Email intake
	SMTPEnabled         bool
	SMTPDomain          string
	SMTPIntakeAddresses []string
	SMTPTLSCert         string
	SMTPTLSKey          string

	// Critical report notifications
	NotifySMTPAddr string
	NotifyFrom     string
	NotifyTo       []string
}

// Load reads configuration from environment variables.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{}

	// Required: DATABASE_URL
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required but not set")
	}

	var err error
	if cfg.APIPort, err = envInt("API_PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = envInt("SMTP_PORT", 2525); err != nil {
		return nil, err
	}

	cfg.MediaStoragePath = envString("MEDIA_STORAGE_PATH", "./media")

	if cfg.MaxVideoUploadMB, err = envInt("MAX_VIDEO_UPLOAD_MB", 20); err != nil {
		return nil, err
	}
	if cfg.MaxRequestMB, err = envInt("MAX_REQUEST_MB", 200); err != nil {
		return nil, err
	}

	if cfg.ImageMaxWidth, err = envInt("IMAGE_MAX_WIDTH", 1920); err != nil {
		return nil, err
	}
	if cfg.ImageMaxHeight, err = envInt("IMAGE_MAX_HEIGHT", 1080); err != nil {
		return nil, err
	}
	if cfg.ImageQuality, err = envInt("IMAGE_QUALITY", 80); err != nil {
		return nil, err
	}

	cfg.FFmpegPath = envString("FFMPEG_PATH", "ffmpeg")
	if cfg.TranscodeTimeout, err = envDuration("TRANSCODE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	cfg.TimeZone = envString("TIME_ZONE", "America/Sao_Paulo")
	cfg.LogLevel = envString("LOG_LEVEL", "info")

	// Security configuration
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")
	cfg.AppEnv = envString("APP_ENV", "development")

	// Rate limiting configuration; malformed values keep the defaults
	cfg.RateLimitRequests = 10.0
	if rps := os.Getenv("RATE_LIMIT_REQUESTS"); rps != "" {
		if v, err := strconv.ParseFloat(rps, 64); err == nil {
			cfg.RateLimitRequests = v
		}
	}
	cfg.RateLimitBurst = 20
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.RateLimitBurst = v
		}
	}

	// Email intake
	if cfg.SMTPEnabled, err = envBool("SMTP_ENABLED", false); err != nil {
		return nil, err
	}
	cfg.SMTPDomain = envString("SMTP_DOMAIN", "localhost")
	cfg.SMTPIntakeAddresses = splitList(os.Getenv("SMTP_INTAKE_ADDRESSES"))
	cfg.SMTPTLSCert = os.Getenv("SMTP_TLS_CERT")
	cfg.SMTPTLSKey = os.Getenv("SMTP_TLS_KEY")

	// Notifications
	cfg.NotifySMTPAddr = os.Getenv("NOTIFY_SMTP_ADDR")
	cfg.NotifyFrom = os.Getenv("NOTIFY_FROM")
	cfg.NotifyTo = splitList(os.Getenv("NOTIFY_TO"))

	return cfg, nil
}

// LoadWithValidation loads and validates configuration, failing fast on errors
func LoadWithValidation() (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Production-specific validation
	if cfg.IsProduction() {
		if err := cfg.ValidateProduction(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DatabaseURL cannot be empty")
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("APIPort must be between 1 and 65535")
	}
	if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
		return fmt.Errorf("SMTPPort must be between 1 and 65535")
	}
	if c.MediaStoragePath == "" {
		return fmt.Errorf("MediaStoragePath cannot be empty")
	}
	if c.MaxVideoUploadMB <= 0 {
		return fmt.Errorf("MAX_VIDEO_UPLOAD_MB must be positive")
	}
	if c.MaxRequestMB < c.MaxVideoUploadMB {
		return fmt.Errorf("MAX_REQUEST_MB must be at least MAX_VIDEO_UPLOAD_MB")
	}
	if c.ImageMaxWidth <= 0 || c.ImageMaxHeight <= 0 {
		return fmt.Errorf("IMAGE_MAX_WIDTH and IMAGE_MAX_HEIGHT must be positive")
	}
	if c.ImageQuality < 1 || c.ImageQuality > 100 {
		return fmt.Errorf("IMAGE_QUALITY must be between 1 and 100")
	}
	if c.TranscodeTimeout <= 0 {
		return fmt.Errorf("TRANSCODE_TIMEOUT must be positive")
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("TIME_ZONE %q is not a known zone: %w", c.TimeZone, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	if (c.SMTPTLSCert == "") != (c.SMTPTLSKey == "") {
		return fmt.Errorf("SMTP_TLS_CERT and SMTP_TLS_KEY must be set together")
	}
	return nil
}

// ValidateProduction performs additional validation for production environment
func (c *Config) ValidateProduction() error {
	if c.AllowedOrigins == "" {
		return fmt.Errorf("ALLOWED_ORIGINS is required in production")
	}

	// Check for wildcard in production
	if strings.Contains(c.AllowedOrigins, "*") {
		return fmt.Errorf("wildcard (*) origins are not allowed in production")
	}

	if !c.UsesPostgres() {
		return fmt.Errorf("a PostgreSQL DATABASE_URL is required in production")
	}

	// Check for sslmode=disable in database URL
	if strings.Contains(c.DatabaseURL, "sslmode=disable") {
		return fmt.Errorf("sslmode=disable is not allowed in production")
	}

	if c.SMTPEnabled && c.SMTPTLSCert == "" {
		return fmt.Errorf("SMTP_TLS_CERT and SMTP_TLS_KEY are required when SMTP is enabled in production")
	}

	return nil
}

// IsProduction reports whether APP_ENV is production
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// UsesPostgres reports whether DATABASE_URL selects PostgreSQL rather than a SQLite file
func (c *Config) UsesPostgres() bool {
	return IsPostgresURL(c.DatabaseURL)
}

// IsPostgresURL reports whether dsn is a PostgreSQL URL or keyword/value DSN
func IsPostgresURL(dsn string) bool {
	dsn = strings.TrimSpace(dsn)
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.HasPrefix(dsn, "host=")
}

// MaxVideoBytes returns the video upload ceiling in bytes
func (c *Config) MaxVideoBytes() int64 {
	return int64(c.MaxVideoUploadMB) << 20
}

// MaxRequestBytes returns the request body ceiling in bytes
func (c *Config) MaxRequestBytes() int64 {
	return int64(c.MaxRequestMB) << 20
}

// AllowedOriginList splits ALLOWED_ORIGINS into its entries
func (c *Config) AllowedOriginList() []string {
	return splitList(c.AllowedOrigins)
}

// Location loads TIME_ZONE
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.TimeZone)
}

// SlogLevel converts LOG_LEVEL into a slog level
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL %q must be one of debug, info, warn, error", c.LogLevel)
	}
	return level, nil
}

// SMTPAddr returns the listen address of the intake server
func (c *Config) SMTPAddr() string {
	return fmt.Sprintf(":%d", c.SMTPPort)
}

// APIAddr returns the listen address of the HTTP server
func (c *Config) APIAddr() string {
	return fmt.Sprintf(":%d", c.APIPort)
}

// LogConfig logs configuration values (excluding secrets)
func (c *Config) LogConfig(logger *slog.Logger) {
	logger.Info("configuration loaded",
		slog.Int("api_port", c.APIPort),
		slog.Bool("smtp_enabled", c.SMTPEnabled),
		slog.Int("smtp_port", c.SMTPPort),
		slog.Int("smtp_intake_addresses", len(c.SMTPIntakeAddresses)),
		slog.Bool("smtp_tls", c.SMTPTLSCert != ""),
		slog.String("storage_path", c.MediaStoragePath),
		slog.Int("max_video_upload_mb", c.MaxVideoUploadMB),
		slog.Int("max_request_mb", c.MaxRequestMB),
		slog.String("ffmpeg_path", c.FFmpegPath),
		slog.Duration("transcode_timeout", c.TranscodeTimeout),
		slog.String("time_zone", c.TimeZone),
		slog.Bool("postgres", c.UsesPostgres()),
		slog.String("log_level", c.LogLevel),
		slog.String("app_env", c.AppEnv),
		slog.Bool("allowed_origins_set", c.AllowedOrigins != ""),
		slog.Float64("rate_limit_rps", c.RateLimitRequests),
		slog.Int("rate_limit_burst", c.RateLimitBurst),
		slog.Bool("notify_enabled", c.NotifySMTPAddr != "" && len(c.NotifyTo) > 0),
	)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return v, nil
}

func envBool(key string, def bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a valid boolean: %w", key, err)
	}
	return v, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration: %w", key, err)
	}
	return v, nil
}

// splitList splits a comma separated value, dropping blank entries
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
