// Package logger provides audit logging for the diagnostics backend.
package logger

import (
	"log/slog"
	"os"
	"time"
)

// AuditLogger records security and intake events as structured JSON.
// It ensures sensitive data is never logged.
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new AuditLogger with JSON output.
func NewAuditLogger() *AuditLogger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	return &AuditLogger{
		logger: slog.New(handler),
	}
}

// NewAuditLoggerWithHandler creates an AuditLogger with a custom handler.
func NewAuditLoggerWithHandler(handler slog.Handler) *AuditLogger {
	return &AuditLogger{
		logger: slog.New(handler),
	}
}

// RateLimitExceeded logs when a client exceeds rate limits.
func (s *AuditLogger) RateLimitExceeded(ip, path string) {
	s.logger.Warn("rate_limit_exceeded",
		slog.String("event_type", "rate_limit"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// PathTraversalAttempt logs a path traversal attempt.
func (s *AuditLogger) PathTraversalAttempt(ip, path, attemptedPath string) {
	s.logger.Warn("path_traversal_attempt",
		slog.String("event_type", "path_traversal"),
		slog.String("ip", ip),
		slog.String("path", path),
		slog.String("attempted_path", attemptedPath),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// InvalidOrigin logs a rejected WebSocket connection due to invalid origin.
func (s *AuditLogger) InvalidOrigin(ip, origin string) {
	s.logger.Warn("invalid_origin",
		slog.String("event_type", "invalid_origin"),
		slog.String("ip", ip),
		slog.String("origin", origin),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// UploadRejected logs an attachment refused by validation.
// source names the intake channel, e.g. "http" or "smtp".
func (s *AuditLogger) UploadRejected(source string, reportID uint, kind, filename, reason string) {
	s.logger.Warn("upload_rejected",
		slog.String("event_type", "upload_rejected"),
		slog.String("source", source),
		slog.Uint64("report_id", uint64(reportID)),
		slog.String("kind", kind),
		slog.String("filename", filename),
		slog.String("reason", reason),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// ReportSubmitted logs a newly created report.
// The submitter's email is deliberately omitted.
func (s *AuditLogger) ReportSubmitted(source string, reportID uint, category string, attachments int) {
	s.logger.Info("report_submitted",
		slog.String("event_type", "report_submitted"),
		slog.String("source", source),
		slog.Uint64("report_id", uint64(reportID)),
		slog.String("category", category),
		slog.Int("attachments", attachments),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// ReportDeleted logs the removal of a report.
func (s *AuditLogger) ReportDeleted(ip string, reportID uint) {
	s.logger.Info("report_deleted",
		slog.String("event_type", "report_deleted"),
		slog.String("ip", ip),
		slog.Uint64("report_id", uint64(reportID)),
		slog.Time("timestamp", time.Now().UTC()),
	)
}

// SecurityEvent logs a generic security event.
func (s *AuditLogger) SecurityEvent(eventType, ip string, details map[string]string) {
	attrs := []any{
		slog.String("event_type", eventType),
		slog.String("ip", ip),
		slog.Time("timestamp", time.Now().UTC()),
	}

	for k, v := range details {
		// Filter out sensitive keys
		if isSensitiveKey(k) {
			continue
		}
		attrs = append(attrs, slog.String(k, v))
	}

	s.logger.Warn("security_event", attrs...)
}

// Info logs an informational message.
func (s *AuditLogger) Info(msg string, args ...any) {
	s.logger.Info(msg, args...)
}

// Error logs an error message.
func (s *AuditLogger) Error(msg string, args ...any) {
	s.logger.Error(msg, args...)
}

// GetLogger returns the underlying slog.Logger for use with middleware.
func (s *AuditLogger) GetLogger() *slog.Logger {
	return s.logger
}

// isSensitiveKey checks if a key might contain sensitive data.
func isSensitiveKey(key string) bool {
	sensitiveKeys := map[string]bool{
		"password":      true,
		"api_key":       true,
		"apikey":        true,
		"token":         true,
		"secret":        true,
		"authorization": true,
		"auth":          true,
		"credential":    true,
		"credentials":   true,
		"session":       true,
		"cookie":        true,
		"email":         true,
		"user_email":    true,
	}
	return sensitiveKeys[key]
}
