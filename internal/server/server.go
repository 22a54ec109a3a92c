// Package server exposes the broker over HTTP with JSON bodies.
package server

import (
	"context"
	"net/http"

	"github.com/benmeehan/link-failover/internal/constants"
	http_middleware "github.com/benmeehan/link-failover/internal/middlewares/http"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/telemetry"
	"github.com/rs/zerolog"
)

// Relay is the set of broker operations the HTTP layer serves.
type Relay interface {
	PushHeartbeat(ctx context.Context, req models.HeartbeatRequest) (models.HeartbeatRecord, error)
	PushCommand(ctx context.Context, secret string, action constants.Action) (models.CommandRecord, error)
	Acknowledge(ctx context.Context, secret string) (bool, error)
	GetStatus(ctx context.Context, secret string) (models.StatusResponse, error)
}

// Server routes broker requests.
type Server struct {
	relay  Relay
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New builds the broker's routes.
func New(relay Relay, logger zerolog.Logger) *Server {
	s := &Server{relay: relay, logger: logger, mux: http.NewServeMux()}

	s.handle("POST /api/heartbeat", "heartbeat", s.heartbeat)
	s.handle("POST /api/command/enable", "command_enable", s.command(constants.ActionEnable))
	s.handle("POST /api/command/disable", "command_disable", s.command(constants.ActionDisable))
	s.handle("GET /api/status", "status", s.status)
	s.handle("POST /api/acknowledge", "acknowledge", s.acknowledge)
	s.handle("GET /health", "health", s.health)
	s.mux.Handle("GET /metrics", telemetry.MetricsHandler())

	return s
}

func (s *Server) handle(pattern, op string, h http.HandlerFunc) {
	s.mux.Handle(pattern, telemetry.Instrument(op, h))
}

// Handler returns the root handler with logging and panic recovery applied.
func (s *Server) Handler() http.Handler {
	return http_middleware.Chain(s.mux,
		http_middleware.Logging(s.logger),
		http_middleware.Recover(s.logger),
	)
}
