package services

import (
	"context"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/state_managers"
)

// BrokerAPI is the relay as seen from the daemon and the monitor.
type BrokerAPI interface {
	PushHeartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error)
	PushCommand(ctx context.Context, action constants.Action) (*models.CommandResponse, error)
	Acknowledge(ctx context.Context) (*models.AckResponse, error)
	GetStatus(ctx context.Context) (*models.StatusResponse, error)
}

// MonitorStateStore persists the monitor state across restarts.
type MonitorStateStore interface {
	LoadState() (state_managers.MonitorState, error)
	SaveState(state state_managers.MonitorState) error
}

// Sweeper removes expired broker records and reports how many.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

// SweepFunc adapts a function to Sweeper.
type SweepFunc func(ctx context.Context) (int, error)

func (f SweepFunc) Sweep(ctx context.Context) (int, error) {
	return f(ctx)
}
