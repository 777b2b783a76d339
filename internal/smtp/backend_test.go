package smtp

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/mocks"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBackend(svc services.ReportService, intake ...string) *Backend {
	return NewBackend(&BackendConfig{
		Service:         svc,
		IntakeAddresses: intake,
		Logger:          quietLogger(),
	})
}

func smtpCode(t *testing.T, err error) int {
	t.Helper()
	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr), "expected SMTP error, got %v", err)
	return smtpErr.Code
}

func TestNewSecureServer(t *testing.T) {
	backend := newTestBackend(nil)

	t.Run("default configuration", func(t *testing.T) {
		server := NewSecureServer(backend, &ServerConfig{Addr: ":2525", Domain: "localhost"})

		assert.Equal(t, ":2525", server.Addr)
		assert.Equal(t, "localhost", server.Domain)
		assert.Equal(t, int64(DefaultMaxMessageSize), server.MaxMessageBytes)
		assert.Equal(t, DefaultMaxRecipients, server.MaxRecipients)
		assert.Equal(t, DefaultReadTimeout, server.ReadTimeout)
		assert.Equal(t, DefaultWriteTimeout, server.WriteTimeout)
		assert.False(t, server.AllowInsecureAuth, "insecure auth should be disabled by default")
		assert.Equal(t, DefaultMaxLineLength, server.MaxLineLength)
	})

	t.Run("custom configuration", func(t *testing.T) {
		server := NewSecureServer(backend, &ServerConfig{
			Addr:           ":25",
			Domain:         "diag.example.com",
			MaxMessageSize: 10 * 1024 * 1024,
			MaxRecipients:  3,
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			AllowInsecure:  true,
		})

		assert.Equal(t, int64(10*1024*1024), server.MaxMessageBytes)
		assert.Equal(t, 3, server.MaxRecipients)
		assert.Equal(t, 30*time.Second, server.ReadTimeout)
		assert.Equal(t, 30*time.Second, server.WriteTimeout)
		assert.True(t, server.AllowInsecureAuth)
	})
}

func TestSession_Rcpt(t *testing.T) {
	backend := newTestBackend(nil, "Reports@Diag.example.com")

	t.Run("intake address accepted case-insensitively", func(t *testing.T) {
		s := NewSession(backend, "")
		require.NoError(t, s.Rcpt("<reports@diag.example.com>", nil))
		assert.Equal(t, []string{"reports@diag.example.com"}, s.recipients)
	})

	t.Run("other mailbox refused", func(t *testing.T) {
		s := NewSession(backend, "")
		err := s.Rcpt("someone@diag.example.com", nil)
		assert.Equal(t, 550, smtpCode(t, err))
		assert.Empty(t, s.recipients)
	})

	t.Run("malformed address refused", func(t *testing.T) {
		s := NewSession(backend, "")
		err := s.Rcpt("not-an-address", nil)
		assert.Equal(t, 550, smtpCode(t, err))
	})

	t.Run("any address when no intake configured", func(t *testing.T) {
		s := NewSession(newTestBackend(nil), "")
		assert.NoError(t, s.Rcpt("whoever@anywhere.test", nil))
	})
}

func TestSession_DataWithoutRecipients(t *testing.T) {
	s := NewSession(newTestBackend(nil), "")
	err := s.Data(strings.NewReader(multipartReport))
	assert.Equal(t, 503, smtpCode(t, err))
}

func TestSession_DataSubmitsReport(t *testing.T) {
	svc := new(mocks.MockReportService)
	svc.On("SubmitReport", mock.Anything,
		mock.MatchedBy(func(in services.ReportInput) bool {
			return in.Title == "Pump 3 overheating" &&
				in.Category == "critica" &&
				in.UserEmail == "maria@example.com" &&
				in.Source == services.SourceSMTP
		}),
		mock.MatchedBy(func(images []services.Upload) bool { return len(images) == 1 }),
		mock.MatchedBy(func(videos []services.Upload) bool { return len(videos) == 1 }),
	).Return(&services.SubmitResult{Report: &models.Report{ID: 11}}, nil).Once()

	s := NewSession(newTestBackend(svc, "reports@diag.example.com"), "")
	require.NoError(t, s.Rcpt("reports@diag.example.com", nil))
	require.NoError(t, s.Data(strings.NewReader(multipartReport)))

	svc.AssertExpectations(t)
}

func TestSession_DataFallsBackToEnvelopeSender(t *testing.T) {
	svc := new(mocks.MockReportService)
	svc.On("SubmitReport", mock.Anything,
		mock.MatchedBy(func(in services.ReportInput) bool {
			return in.UserEmail == "Field.Tech@example.com" && in.UserName == "Field.Tech"
		}),
		mock.Anything, mock.Anything,
	).Return(&services.SubmitResult{Report: &models.Report{ID: 1}}, nil).Once()

	s := NewSession(newTestBackend(svc), "")
	require.NoError(t, s.Mail("<Field.Tech@example.com>", nil))
	require.NoError(t, s.Rcpt("reports@diag.example.com", nil))
	require.NoError(t, s.Data(strings.NewReader("Subject: No sender header\n\nbody")))

	svc.AssertExpectations(t)
}

func TestSession_DataValidationFailure(t *testing.T) {
	vErr := &apperrors.ValidationError{}
	vErr.Add("title", "This field is required.")
	vErr.Add("user_email", "Enter a valid email address.")

	svc := new(mocks.MockReportService)
	svc.On("SubmitReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, vErr)

	s := NewSession(newTestBackend(svc), "")
	require.NoError(t, s.Rcpt("reports@diag.example.com", nil))

	err := s.Data(strings.NewReader("From: x\nSubject: \n\nbody"))
	var smtpErr *smtp.SMTPError
	require.True(t, errors.As(err, &smtpErr))
	assert.Equal(t, 550, smtpErr.Code)
	assert.Equal(t, smtp.EnhancedCode{5, 6, 0}, smtpErr.EnhancedCode)
	assert.Contains(t, smtpErr.Message, "title")
	assert.Contains(t, smtpErr.Message, "user_email")
}

func TestSession_DataStorageFailure(t *testing.T) {
	svc := new(mocks.MockReportService)
	svc.On("SubmitReport", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("database is locked"))

	s := NewSession(newTestBackend(svc), "")
	require.NoError(t, s.Rcpt("reports@diag.example.com", nil))

	err := s.Data(strings.NewReader(multipartReport))
	assert.Equal(t, 451, smtpCode(t, err))
}

func TestSession_Reset(t *testing.T) {
	s := NewSession(newTestBackend(nil), "")
	require.NoError(t, s.Mail("a@example.com", nil))
	require.NoError(t, s.Rcpt("b@example.com", nil))

	s.Reset()

	assert.Empty(t, s.from)
	assert.Empty(t, s.recipients)
	assert.NoError(t, s.Logout())
}

func TestParseEmailAddress(t *testing.T) {
	local, domain, err := parseEmailAddress("<User@Example.COM>")
	require.NoError(t, err)
	assert.Equal(t, "user", local)
	assert.Equal(t, "example.com", domain)

	for _, bad := range []string{"", "user", "@example.com", "user@", "a@b@c"} {
		_, _, err := parseEmailAddress(bad)
		assert.Error(t, err, bad)
	}
}

func startServer(t *testing.T, backend *Backend) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	server := NewSecureServer(backend, &ServerConfig{Domain: "localhost", AllowInsecure: true})
	go func() {
		_ = server.Serve(listener)
	}()
	t.Cleanup(func() { _ = server.Close() })

	return listener.Addr().String()
}

func TestServer_EndToEnd(t *testing.T) {
	svc := new(mocks.MockReportService)
	svc.On("SubmitReport", mock.Anything,
		mock.MatchedBy(func(in services.ReportInput) bool {
			return in.Title == "Pump 3 overheating" && in.SUIdentifier == "SU-0042"
		}),
		mock.Anything, mock.Anything,
	).Return(&services.SubmitResult{Report: &models.Report{ID: 5}}, nil).Once()

	addr := startServer(t, newTestBackend(svc, "reports@diag.example.com"))
	msg := strings.ReplaceAll(multipartReport, "\n", "\r\n")

	err := smtp.SendMail(addr, nil, "maria@example.com", []string{"reports@diag.example.com"}, strings.NewReader(msg))
	require.NoError(t, err)
	svc.AssertExpectations(t)

	err = smtp.SendMail(addr, nil, "maria@example.com", []string{"postmaster@diag.example.com"}, strings.NewReader(msg))
	assert.Equal(t, 550, smtpCode(t, err))
	svc.AssertNumberOfCalls(t, "SubmitReport", 1)
}
