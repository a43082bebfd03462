package server

import (
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/logging"
)

// NewTLSConfig loads a certificate and key pair for serving the API over
// HTTPS. TLS 1.2 is the minimum accepted version.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
		VerifyConnection: func(cs tls.ConnectionState) error {
			logging.Debug("TLS handshake",
				zap.String("server_name", cs.ServerName),
				zap.String("version", tls.VersionName(cs.Version)),
				zap.String("cipher_suite", tls.CipherSuiteName(cs.CipherSuite)),
			)
			return nil
		},
	}, nil
}
