package smtp

import (
	"crypto/tls"
	"log/slog"
	"strings"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/services"
)

// Security limits
const (
	DefaultMaxMessageSize = 25 * 1024 * 1024 // 25 MB
	DefaultMaxRecipients  = 10
	DefaultReadTimeout    = 60 * time.Second
	DefaultWriteTimeout   = 60 * time.Second
	DefaultMaxLineLength  = 2000
	DefaultSubmitTimeout  = 10 * time.Minute
)

// Backend implements the go-smtp Backend interface
type Backend struct {
	service       services.ReportService
	intake        map[string]struct{}
	submitTimeout time.Duration
	logger        *slog.Logger
}

// BackendConfig holds configuration for the SMTP backend
type BackendConfig struct {
	Service services.ReportService
	// IntakeAddresses lists the recipients that accept reports.
	// When empty every well-formed recipient is accepted.
	IntakeAddresses []string
	// SubmitTimeout bounds the processing of one message, transcodes included
	SubmitTimeout time.Duration
	Logger        *slog.Logger
}

// NewBackend creates a new SMTP backend
func NewBackend(cfg *BackendConfig) *Backend {
	intake := make(map[string]struct{}, len(cfg.IntakeAddresses))
	for _, addr := range cfg.IntakeAddresses {
		if addr = normalizeAddress(addr); addr != "" {
			intake[addr] = struct{}{}
		}
	}

	timeout := cfg.SubmitTimeout
	if timeout <= 0 {
		timeout = DefaultSubmitTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Backend{
		service:       cfg.Service,
		intake:        intake,
		submitTimeout: timeout,
		logger:        logger,
	}
}

// NewSession creates a new SMTP session
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	remote := ""
	if c != nil && c.Conn() != nil {
		remote = c.Conn().RemoteAddr().String()
	}
	b.logger.Debug("new SMTP connection", slog.String("remote_addr", remote))
	return NewSession(b, remote), nil
}

// accepts reports whether the address is an intake mailbox
func (b *Backend) accepts(address string) bool {
	if len(b.intake) == 0 {
		return true
	}
	_, ok := b.intake[address]
	return ok
}

// ServerConfig holds security configuration for the SMTP server
type ServerConfig struct {
	Addr           string
	Domain         string
	MaxMessageSize int64
	MaxRecipients  int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowInsecure  bool
	TLSConfig      *tls.Config
}

// NewSecureServer creates a new SMTP server with security settings
func NewSecureServer(backend *Backend, cfg *ServerConfig) *smtp.Server {
	s := smtp.NewServer(backend)

	s.Addr = cfg.Addr
	s.Domain = cfg.Domain

	if cfg.MaxMessageSize > 0 {
		s.MaxMessageBytes = cfg.MaxMessageSize
	} else {
		s.MaxMessageBytes = DefaultMaxMessageSize
	}

	if cfg.MaxRecipients > 0 {
		s.MaxRecipients = cfg.MaxRecipients
	} else {
		s.MaxRecipients = DefaultMaxRecipients
	}

	if cfg.ReadTimeout > 0 {
		s.ReadTimeout = cfg.ReadTimeout
	} else {
		s.ReadTimeout = DefaultReadTimeout
	}

	if cfg.WriteTimeout > 0 {
		s.WriteTimeout = cfg.WriteTimeout
	} else {
		s.WriteTimeout = DefaultWriteTimeout
	}

	s.AllowInsecureAuth = cfg.AllowInsecure

	if cfg.TLSConfig != nil {
		s.TLSConfig = cfg.TLSConfig
	}

	// Set max line length to prevent buffer overflow attacks
	s.MaxLineLength = DefaultMaxLineLength

	return s
}

// trimAddress strips whitespace and angle brackets from an address
func trimAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimPrefix(address, "<")
	address = strings.TrimSuffix(address, ">")
	return strings.TrimSpace(address)
}

// normalizeAddress lowercases a trimmed address for intake matching
func normalizeAddress(address string) string {
	return strings.ToLower(trimAddress(address))
}
