package mocks

import (
	"context"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/stretchr/testify/mock"
)

// BrokerAPI is a mock implementation of the relay client used by the services
type BrokerAPI struct {
	mock.Mock
}

func (m *BrokerAPI) PushHeartbeat(ctx context.Context, req models.HeartbeatRequest) (*models.HeartbeatResponse, error) {
	args := m.Called(ctx, req)
	resp, _ := args.Get(0).(*models.HeartbeatResponse)
	return resp, args.Error(1)
}

func (m *BrokerAPI) PushCommand(ctx context.Context, action constants.Action) (*models.CommandResponse, error) {
	args := m.Called(ctx, action)
	resp, _ := args.Get(0).(*models.CommandResponse)
	return resp, args.Error(1)
}

func (m *BrokerAPI) Acknowledge(ctx context.Context) (*models.AckResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*models.AckResponse)
	return resp, args.Error(1)
}

func (m *BrokerAPI) GetStatus(ctx context.Context) (*models.StatusResponse, error) {
	args := m.Called(ctx)
	resp, _ := args.Get(0).(*models.StatusResponse)
	return resp, args.Error(1)
}
