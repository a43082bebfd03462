package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/logging"
)

// DefaultShutdownTimeout bounds graceful shutdown.
const DefaultShutdownTimeout = 10 * time.Second

// Config holds the server configuration
type Config struct {
	// Listen is the host:port to bind, e.g. ":8080".
	Listen string
	// ShutdownTimeout bounds how long Start waits for in-flight requests
	// once its context ends.
	ShutdownTimeout time.Duration
	// CertPath and KeyPath switch the listener to HTTPS when both are set.
	CertPath string
	KeyPath  string
}

// Server exposes the supervised devices over HTTP and streams their events
// over a websocket.
type Server struct {
	config    *Config
	tlsConfig *tls.Config
	devices   *device.Manager
	hub     *Hub
	http    *http.Server

	listening chan struct{}
	addr      net.Addr
}

// New creates a server for the devices of mgr. It fails only when a TLS
// certificate is configured and cannot be loaded.
func New(config *Config, mgr *device.Manager) (*Server, error) {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		if config.CertPath == "" || config.KeyPath == "" {
			return nil, errors.New("TLS needs both a certificate and a key")
		}
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, err
		}
	}

	s := &Server{
		config:    config,
		tlsConfig: tlsConfig,
		devices:   mgr,
		hub:       NewHub(),

		listening: make(chan struct{}),
	}
	s.http = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Scheme returns "https" when the server terminates TLS, otherwise "http".
func (s *Server) Scheme() string {
	if s.tlsConfig != nil {
		return "https"
	}
	return "http"
}

// Addr returns the bound address once Start is listening.
func (s *Server) Addr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.listening:
		return s.addr, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Start listens and serves until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Listen, err)
	}
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
	}
	s.addr = listener.Addr()
	close(s.listening)

	logging.Info("HTTP server listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("scheme", s.Scheme()),
	)

	events, unsubscribe := s.devices.Subscribe(256)
	defer unsubscribe()
	go s.hub.Run(ctx, events)

	errChan := make(chan error, 1)
	go func() {
		errChan <- s.http.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logging.Info("Shutting down HTTP server...")
		return s.Shutdown(context.WithoutCancel(ctx))
	case err := <-errChan:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown stops accepting requests, closes websocket clients and waits for
// in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.hub.CloseAll()
	if err := s.http.Shutdown(ctx); err != nil {
		logging.Warn("Shutdown timeout, forcing close", zap.Error(err))
		return s.http.Close()
	}
	logging.Info("All connections closed gracefully")
	return nil
}

// GetActiveConnections returns the number of connected websocket clients.
func (s *Server) GetActiveConnections() int {
	return s.hub.Len()
}
