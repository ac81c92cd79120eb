package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/audss/oncall/errors"
	"github.com/audss/oncall/oncall"
	"github.com/audss/oncall/schedule"
)

// Server exposes the roster, schedule and gateway operations over HTTP,
// plus a WebSocket stream of dispatcher events.
type Server struct {
	svc            *oncall.Service
	dispatcher     *schedule.Dispatcher
	hub            *Hub
	mux            *http.ServeMux
	httpServer     *http.Server
	port           int
	allowedOrigins []string
	log            *zap.SugaredLogger
}

// Options configures the HTTP server.
type Options struct {
	Port           int
	AllowedOrigins []string
}

// New creates the server and registers all routes. dispatcher may be
// nil when running API-only (the status endpoint then omits loop stats).
func New(svc *oncall.Service, dispatcher *schedule.Dispatcher, opts Options, log *zap.SugaredLogger) *Server {
	s := &Server{
		svc:            svc,
		dispatcher:     dispatcher,
		hub:            NewHub(log),
		mux:            http.NewServeMux(),
		port:           opts.Port,
		allowedOrigins: opts.AllowedOrigins,
		log:            log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub so the dispatcher can broadcast through it.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routed handler, used directly by tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.hub.Run(ctx)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.mux,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("HTTP server listening", "port", s.port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "HTTP server shutdown failed")
		}
		s.log.Infow("HTTP server stopped")
		return nil
	}
}
