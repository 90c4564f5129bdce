// Package server wraps the HTTP listener with TLS support and graceful
// shutdown.
package server

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"twin-bridge/internal/common/logging"
)

// Server represents the bridge's HTTP front end.
type Server struct {
	srv     *http.Server
	tlsCert string
	tlsKey  string
	logger  logging.Logger
}

// New creates a new server instance. Read and write timeouts are sized
// off the per-request budget so a stalled sender cannot hold a
// connection longer than an invocation is allowed to run.
func New(handler http.Handler, port, tlsCert, tlsKey string, requestTimeout time.Duration, logger logging.Logger) *Server {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:         ":" + port,
			Handler:      handler,
			ReadTimeout:  requestTimeout,
			WriteTimeout: requestTimeout + 5*time.Second,
			IdleTimeout:  120 * time.Second,
		},
		tlsCert: tlsCert,
		tlsKey:  tlsKey,
		logger:  logger,
	}
}

// Start begins serving in a background goroutine. Listen failures are
// reported on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)

	serve := s.srv.ListenAndServe
	if s.tlsCert != "" && s.tlsKey != "" {
		s.srv.TLSConfig = &tls.Config{
			MinVersion: tls.VersionTLS12,
		}
		cert, key := s.tlsCert, s.tlsKey
		serve = func() error {
			return s.srv.ListenAndServeTLS(cert, key)
		}
		s.logger.Info("TLS enabled", logging.Field{Key: "cert", Value: s.tlsCert})
	}

	go func() {
		s.logger.Info("Server listening", logging.Field{Key: "addr", Value: s.srv.Addr})
		if err := serve(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown gracefully shuts down the server, waiting for in-flight
// deliveries to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
