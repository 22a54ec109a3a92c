package services_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/mocks"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/services"
	"github.com/benmeehan/link-failover/pkg/connectivity"
	"github.com/benmeehan/link-failover/pkg/shell"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newConnectivity(prober *mocks.Prober, link connectivity.LinkChecker, broker *mocks.BrokerAPI, join string) *services.ConnectivityService {
	return services.NewConnectivityService(services.ConnectivityConfig{
		CheckInterval:     time.Hour,
		FailureThreshold:  2,
		RecoveryThreshold: 3,
		RequestTimeout:    time.Second,
		JoinCommand:       join,
	}, prober, link, broker, shell.NewRunner(5*time.Second, 0, zerolog.Nop()), zerolog.Nop())
}

func pushed(broker *mocks.BrokerAPI, action constants.Action) int {
	n := 0
	for _, call := range broker.Calls {
		if call.Method == "PushCommand" && call.Arguments.Get(1) == action {
			n++
		}
	}
	return n
}

func TestConnectivityService_StartStop(t *testing.T) {
	c := newConnectivity(new(mocks.Prober), nil, new(mocks.BrokerAPI), "")

	require.NoError(t, c.Start())
	assert.EqualError(t, c.Start(), "connectivity service is already running")
	require.NoError(t, c.Stop())
	assert.EqualError(t, c.Stop(), "connectivity service is not running")
}

func TestConnectivityService_FailoverAndRecovery(t *testing.T) {
	ctx := context.Background()

	prober := new(mocks.Prober)
	broker := new(mocks.BrokerAPI)
	broker.On("PushCommand", mock.Anything, constants.ActionEnable).Return(&models.CommandResponse{Success: true}, nil).Once()
	broker.On("PushCommand", mock.Anything, constants.ActionDisable).Return(&models.CommandResponse{Success: true}, nil).Once()

	c := newConnectivity(prober, nil, broker, "")

	down := prober.On("Probe", mock.Anything).Return(errors.New("dial tcp 8.8.8.8:53: i/o timeout"))
	c.Check(ctx)
	assert.False(t, c.FailedOver())
	c.Check(ctx)
	assert.True(t, c.FailedOver())
	c.Check(ctx)
	c.Check(ctx)
	assert.Equal(t, 1, pushed(broker, constants.ActionEnable))

	down.Unset()
	prober.On("Probe", mock.Anything).Return(nil)
	c.Check(ctx)
	c.Check(ctx)
	assert.True(t, c.FailedOver(), "recovery needs three consecutive successes")
	c.Check(ctx)
	assert.False(t, c.FailedOver())

	broker.AssertExpectations(t)
}

func TestConnectivityService_FlappingLinkDoesNotFailOver(t *testing.T) {
	ctx := context.Background()
	prober := new(mocks.Prober)
	broker := new(mocks.BrokerAPI)
	c := newConnectivity(prober, nil, broker, "")

	for i := 0; i < 5; i++ {
		down := prober.On("Probe", mock.Anything).Return(errors.New("unreachable"))
		c.Check(ctx)
		down.Unset()
		up := prober.On("Probe", mock.Anything).Return(nil)
		c.Check(ctx)
		up.Unset()
	}

	assert.False(t, c.FailedOver())
	broker.AssertNotCalled(t, "PushCommand", mock.Anything, mock.Anything)
}

func TestConnectivityService_RetriesEnableUntilBrokerAccepts(t *testing.T) {
	ctx := context.Background()
	prober := new(mocks.Prober)
	prober.On("Probe", mock.Anything).Return(errors.New("no route"))
	broker := new(mocks.BrokerAPI)
	broker.On("PushCommand", mock.Anything, constants.ActionEnable).Return(nil, errors.New("no route")).Once()
	broker.On("PushCommand", mock.Anything, constants.ActionEnable).Return(&models.CommandResponse{Success: true}, nil)

	c := newConnectivity(prober, nil, broker, "")
	c.Check(ctx)
	c.Check(ctx)
	assert.False(t, c.FailedOver(), "a rejected request is not a failover")
	assert.Equal(t, 1, pushed(broker, constants.ActionEnable))

	c.Check(ctx)
	assert.True(t, c.FailedOver())
	assert.Equal(t, 2, pushed(broker, constants.ActionEnable))

	for i := 0; i < 3; i++ {
		c.Check(ctx)
	}
	assert.Equal(t, 2, pushed(broker, constants.ActionEnable))
}

func TestConnectivityService_RetriesWhenJoinFails(t *testing.T) {
	ctx := context.Background()
	prober := new(mocks.Prober)
	prober.On("Probe", mock.Anything).Return(errors.New("no route"))
	broker := new(mocks.BrokerAPI)
	broker.On("PushCommand", mock.Anything, constants.ActionEnable).Return(&models.CommandResponse{Success: true}, nil)

	c := newConnectivity(prober, nil, broker, "exit 1")
	c.Check(ctx)
	c.Check(ctx)
	c.Check(ctx)

	assert.False(t, c.FailedOver())
	assert.Equal(t, 2, pushed(broker, constants.ActionEnable))
}

func TestConnectivityService_RetriesDisableUntilBrokerAccepts(t *testing.T) {
	ctx := context.Background()
	prober := new(mocks.Prober)
	broker := new(mocks.BrokerAPI)
	broker.On("PushCommand", mock.Anything, constants.ActionEnable).Return(&models.CommandResponse{Success: true}, nil)
	broker.On("PushCommand", mock.Anything, constants.ActionDisable).Return(nil, errors.New("503")).Once()
	broker.On("PushCommand", mock.Anything, constants.ActionDisable).Return(&models.CommandResponse{Success: true}, nil)

	c := newConnectivity(prober, nil, broker, "")
	down := prober.On("Probe", mock.Anything).Return(errors.New("no route"))
	c.Check(ctx)
	c.Check(ctx)
	require.True(t, c.FailedOver())
	down.Unset()

	prober.On("Probe", mock.Anything).Return(nil)
	for i := 0; i < 3; i++ {
		c.Check(ctx)
	}
	assert.True(t, c.FailedOver())
	c.Check(ctx)
	assert.False(t, c.FailedOver())
	assert.Equal(t, 2, pushed(broker, constants.ActionDisable))
}

func TestConnectivityService_BackupNetworkDoesNotCountAsRecovery(t *testing.T) {
	ctx := context.Background()
	joined := filepath.Join(t.TempDir(), "joined")

	prober := new(mocks.Prober)
	link := new(mocks.LinkChecker)
	broker := new(mocks.BrokerAPI)
	broker.On("PushCommand", mock.Anything, constants.ActionEnable).Return(&models.CommandResponse{Success: true}, nil).Once()

	c := newConnectivity(prober, link, broker, "touch "+joined)

	onPrimary := link.On("OnPrimary", mock.Anything).Return(true, nil)
	down := prober.On("Probe", mock.Anything).Return(errors.New("no route"))
	c.Check(ctx)
	c.Check(ctx)
	require.True(t, c.FailedOver())
	assert.FileExists(t, joined)
	onPrimary.Unset()
	down.Unset()

	// the joined backup network reaches the internet
	link.On("OnPrimary", mock.Anything).Return(false, nil)
	prober.On("Probe", mock.Anything).Return(nil)
	for i := 0; i < 6; i++ {
		c.Check(ctx)
	}

	assert.True(t, c.FailedOver())
	assert.Equal(t, 0, pushed(broker, constants.ActionDisable))
	prober.AssertNumberOfCalls(t, "Probe", 2)
	broker.AssertExpectations(t)
}

func TestConnectivityService_OffPrimaryResetsCounters(t *testing.T) {
	ctx := context.Background()
	prober := new(mocks.Prober)
	prober.On("Probe", mock.Anything).Return(errors.New("no route"))
	link := new(mocks.LinkChecker)
	broker := new(mocks.BrokerAPI)

	c := newConnectivity(prober, link, broker, "")

	on := link.On("OnPrimary", mock.Anything).Return(true, nil)
	c.Check(ctx)
	on.Unset()
	off := link.On("OnPrimary", mock.Anything).Return(false, errors.New("networksetup failed"))
	c.Check(ctx)
	off.Unset()
	link.On("OnPrimary", mock.Anything).Return(true, nil)
	c.Check(ctx)

	assert.False(t, c.FailedOver())
	broker.AssertNotCalled(t, "PushCommand", mock.Anything, mock.Anything)
}
