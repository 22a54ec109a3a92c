package services

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// HTTPService serves the broker API.
type HTTPService struct {
	Addr    string
	Handler http.Handler
	Logger  zerolog.Logger

	server   *http.Server
	listener net.Listener
	wg       sync.WaitGroup
}

// NewHTTPService initializes a new HTTPService listening on addr.
func NewHTTPService(addr string, handler http.Handler, logger zerolog.Logger) *HTTPService {
	return &HTTPService{Addr: addr, Handler: handler, Logger: logger}
}

// Start binds the listener and serves in a separate goroutine. Bind errors
// are returned directly.
func (s *HTTPService) Start() error {
	if s.server != nil {
		s.Logger.Warn().Msg("HTTPService is already running")
		return errors.New("http service is already running")
	}

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.Logger.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.Logger.Info().Str("addr", ln.Addr().String()).Msg("HTTPService started successfully")
	return nil
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *HTTPService) Stop() error {
	if s.server == nil {
		s.Logger.Warn().Msg("HTTPService is not running")
		return errors.New("http service is not running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.server.Shutdown(ctx)
	s.wg.Wait()

	s.server = nil
	s.listener = nil

	s.Logger.Info().Msg("HTTPService stopped successfully")
	return err
}

// ListenAddr returns the bound address, or "" when stopped.
func (s *HTTPService) ListenAddr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
