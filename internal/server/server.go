package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/nowdeck/nowdeck/internal/domain"
	"go.uber.org/zap"
)

// Server is the HTTP layer: it exposes the tracker's read-only queries and
// the two browser overlay pages. It never writes to the tracker.
type Server struct {
	logger  *zap.Logger
	cfg     domain.Config
	tracker domain.Tracker
	artwork domain.ArtworkSource

	httpSrv  *http.Server
	listener net.Listener
}

// New creates a Server reading from the given tracker and artwork source
func New(logger *zap.Logger, cfg domain.Config, tracker domain.Tracker, artwork domain.ArtworkSource) *Server {
	return &Server{
		logger:  logger,
		cfg:     cfg,
		tracker: tracker,
		artwork: artwork,
	}
}

// Start binds the listen address and serves in a background goroutine.
// Binding happens synchronously so a bad address fails startup.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr(), err)
	}
	s.listener = ln
	s.httpSrv = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server stopped", zap.Error(err))
		}
	}()

	s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
	return nil
}

// Stop drains in-flight requests and closes the listener
func (s *Server) Stop(ctx context.Context) error {
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the bound listen address, empty before Start
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
