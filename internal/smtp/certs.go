package smtp

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"sync"
)

// CertificateStore holds the STARTTLS certificate of the intake server.
// The pair can be reloaded from disk without restarting the listener.
type CertificateStore struct {
	mu       sync.RWMutex
	certFile string
	keyFile  string
	cert     *tls.Certificate
	logger   *slog.Logger
}

// NewCertificateStore loads the certificate pair. Empty paths disable TLS
// and return a nil store.
func NewCertificateStore(certFile, keyFile string, logger *slog.Logger) (*CertificateStore, error) {
	if certFile == "" || keyFile == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &CertificateStore{certFile: certFile, keyFile: keyFile, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload reads the pair again. On failure the previous certificate stays in use.
func (s *CertificateStore) Reload() error {
	cert, err := tls.LoadX509KeyPair(s.certFile, s.keyFile)
	if err != nil {
		return fmt.Errorf("failed to load SMTP certificate: %w", err)
	}

	s.mu.Lock()
	s.cert = &cert
	s.mu.Unlock()

	s.logger.Info("SMTP certificate loaded", slog.String("cert_file", s.certFile))
	return nil
}

// GetCertificate is suitable for tls.Config.GetCertificate
func (s *CertificateStore) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cert == nil {
		return nil, fmt.Errorf("no SMTP certificate loaded")
	}
	return s.cert, nil
}

// TLSConfig returns a STARTTLS configuration backed by the store.
// A nil store yields a nil configuration.
func (s *CertificateStore) TLSConfig() *tls.Config {
	if s == nil {
		return nil
	}
	return &tls.Config{
		GetCertificate: s.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
