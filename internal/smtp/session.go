package smtp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/emersion/go-smtp"
	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
)

// Session implements the go-smtp Session interface
type Session struct {
	backend    *Backend
	remoteAddr string
	from       string
	recipients []string
}

// NewSession creates a new SMTP session
func NewSession(backend *Backend, remoteAddr string) *Session {
	return &Session{
		backend:    backend,
		remoteAddr: remoteAddr,
		recipients: make([]string, 0),
	}
}

// Mail handles the MAIL FROM command
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	s.backend.logger.Debug("MAIL FROM", slog.String("from", from))
	return nil
}

// Rcpt handles the RCPT TO command
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	if _, _, err := parseEmailAddress(to); err != nil {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 3},
			Message:      "Invalid recipient address",
		}
	}

	address := normalizeAddress(to)
	if !s.backend.accepts(address) {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "Mailbox does not accept reports",
		}
	}

	s.recipients = append(s.recipients, address)
	s.backend.logger.Debug("RCPT TO", slog.String("to", address))
	return nil
}

// Data parses the message and submits it as one report, however many
// intake recipients it was addressed to
func (s *Session) Data(r io.Reader) error {
	if len(s.recipients) == 0 {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "No recipients specified",
		}
	}

	parsed, err := ParseReportEmail(r)
	if err != nil {
		s.backend.logger.Warn("failed to parse email", slog.String("remote_addr", s.remoteAddr), slog.Any("error", err))
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 6, 0},
			Message:      "Failed to parse email",
		}
	}

	// Fall back to the envelope sender
	if parsed.UserEmail == "" {
		parsed.UserEmail = trimAddress(s.from)
		if parsed.UserName == "" {
			parsed.UserName, _, _ = strings.Cut(parsed.UserEmail, "@")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.backend.submitTimeout)
	defer cancel()

	result, err := s.backend.service.SubmitReport(ctx, parsed.Input(), parsed.Images, parsed.Videos)
	if err != nil {
		if vErr := apperrors.GetValidationError(err); vErr != nil {
			return &smtp.SMTPError{
				Code:         550,
				EnhancedCode: smtp.EnhancedCode{5, 6, 0},
				Message:      "Invalid report: " + invalidFields(vErr),
			}
		}
		s.backend.logger.Error("failed to store emailed report",
			slog.String("from", s.from),
			slog.Any("error", err),
		)
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Temporary error, try again later",
		}
	}

	s.backend.logger.Info("report received by email",
		slog.Uint64("report_id", uint64(result.Report.ID)),
		slog.String("from", s.from),
		slog.Int("attachments", result.Stored()),
		slog.Int("rejected", len(result.Rejected)),
		slog.Int("ignored_parts", parsed.Ignored),
	)
	return nil
}

// Reset resets the session state
func (s *Session) Reset() {
	s.from = ""
	s.recipients = make([]string, 0)
}

// Logout handles the end of the session
func (s *Session) Logout() error {
	return nil
}

func invalidFields(vErr *apperrors.ValidationError) string {
	fields := make([]string, 0, len(vErr.Fields))
	for _, fe := range vErr.Fields {
		fields = append(fields, fe.Field)
	}
	return strings.Join(fields, ", ")
}

// parseEmailAddress parses an email address into local part and domain
func parseEmailAddress(address string) (localPart, domain string, err error) {
	address = normalizeAddress(address)

	parts := strings.Split(address, "@")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	localPart, domain = parts[0], parts[1]
	if localPart == "" || domain == "" {
		return "", "", fmt.Errorf("invalid email address: %s", address)
	}

	return localPart, domain, nil
}
