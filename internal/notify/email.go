// Package notify alerts operators by email when critical reports arrive.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/jhillyerd/enmime"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
)

// DefaultFrom is the sender used when none is configured
const DefaultFrom = "diagnostics@localhost"

// ErrNotConfigured is returned when no relay or recipient is set
var ErrNotConfigured = errors.New("notifier not configured")

// SendFunc delivers an encoded message through an SMTP relay
type SendFunc func(addr, from string, to []string, msg io.Reader) error

// Config holds the relay and addressing of notification emails
type Config struct {
	// Addr is the host:port of the SMTP relay
	Addr string
	From string
	To   []string
	// Location is used to render report timestamps
	Location *time.Location
}

// EmailNotifier sends a plain-text email for every critical report
type EmailNotifier struct {
	config Config
	send   SendFunc
	logger *slog.Logger
}

// NewEmailNotifier creates a notifier delivering through go-smtp
func NewEmailNotifier(cfg Config, logger *slog.Logger) *EmailNotifier {
	return NewEmailNotifierWithSender(cfg, sendMail, logger)
}

// NewEmailNotifierWithSender creates a notifier with a custom delivery function
func NewEmailNotifierWithSender(cfg Config, send SendFunc, logger *slog.Logger) *EmailNotifier {
	if cfg.From == "" {
		cfg.From = DefaultFrom
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmailNotifier{config: cfg, send: send, logger: logger}
}

// Enabled reports whether a relay and at least one recipient are configured
func (n *EmailNotifier) Enabled() bool {
	return n.config.Addr != "" && len(n.config.To) > 0
}

// NotifyCritical emails the configured recipients about a report
func (n *EmailNotifier) NotifyCritical(ctx context.Context, report *models.Report) error {
	if !n.Enabled() {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.Compose(report)
	if err != nil {
		return err
	}

	if err := n.send(n.config.Addr, n.config.From, n.config.To, bytes.NewReader(msg)); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Info("critical report notification sent",
		slog.Uint64("report_id", uint64(report.ID)),
		slog.Int("recipients", len(n.config.To)),
	)
	return nil
}

// Compose builds the encoded notification message for a report
func (n *EmailNotifier) Compose(report *models.Report) ([]byte, error) {
	to := make([]mail.Address, 0, len(n.config.To))
	for _, addr := range n.config.To {
		to = append(to, mail.Address{Address: addr})
	}

	part, err := enmime.Builder().
		From("Diagnostics", n.config.From).
		ToAddrs(to).
		Subject("Report: "+report.String()).
		Header("X-Report-ID", fmt.Sprint(report.ID)).
		Text([]byte(n.body(report))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build notification: %w", err)
	}

	var buf bytes.Buffer
	if err := part.Encode(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode notification: %w", err)
	}
	return buf.Bytes(), nil
}

func (n *EmailNotifier) body(report *models.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A critical diagnostic report was submitted.\n\n")
	fmt.Fprintf(&b, "Report:    #%d\n", report.ID)
	fmt.Fprintf(&b, "Title:     %s\n", report.Title)
	if report.SUIdentifier != "" {
		fmt.Fprintf(&b, "Unit:      %s\n", report.SUIdentifier)
	}
	fmt.Fprintf(&b, "Reporter:  %s <%s>\n", report.UserName, report.UserEmail)
	fmt.Fprintf(&b, "Submitted: %s\n", report.CreatedAt.In(n.config.Location).Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Media:     %d image(s), %d video(s)\n\n", len(report.Images), len(report.Videos))
	b.WriteString(report.Message)
	b.WriteString("\n")
	return b.String()
}

func sendMail(addr, from string, to []string, msg io.Reader) error {
	return smtp.SendMail(addr, nil, from, to, msg)
}
