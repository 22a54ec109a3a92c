package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/liveness"
	"github.com/benmeehan/link-failover/internal/mocks"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/notify"
	"github.com/benmeehan/link-failover/internal/services"
	"github.com/benmeehan/link-failover/internal/state_managers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type memoryStateStore struct {
	mu      sync.Mutex
	state   state_managers.MonitorState
	loadErr error
	saves   int
}

func (s *memoryStateStore) LoadState() (state_managers.MonitorState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return state_managers.MonitorState{}, s.loadErr
	}
	return s.state, nil
}

func (s *memoryStateStore) SaveState(state state_managers.MonitorState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.saves++
	return nil
}

func (s *memoryStateStore) current() state_managers.MonitorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *memoryStateStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func activeStatus(age time.Duration) *models.StatusResponse {
	last := time.Now().Add(-age)
	return &models.StatusResponse{
		DaemonStatus:        constants.DaemonOnline,
		DaemonOnline:        true,
		DaemonLastHeartbeat: &last,
		DaemonMode:          constants.ModeActive,
		TimeSinceHeartbeat:  age.Seconds(),
	}
}

func level(l notify.Level) interface{} {
	return mock.MatchedBy(func(e notify.Event) bool { return e.Level == l })
}

func newMonitor(broker *mocks.BrokerAPI, act *mocks.Actuator, notifier *mocks.Notifier, state services.MonitorStateStore) *services.MonitorService {
	return services.NewMonitorService(services.MonitorConfig{
		PollInterval:       time.Hour,
		StalenessThreshold: 10 * time.Second,
		OfflineThreshold:   2,
		RequestTimeout:     time.Second,
	}, broker, act, notifier, state, zerolog.Nop())
}

func TestMonitorService_StartStop(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(activeStatus(time.Second), nil)

	m := newMonitor(broker, new(mocks.Actuator), new(mocks.Notifier), &memoryStateStore{})
	require.NoError(t, m.Start())
	assert.EqualError(t, m.Start(), "monitor service is already running")

	require.NoError(t, m.Stop())
	assert.EqualError(t, m.Stop(), "monitor service is not running")
}

func TestMonitorService_FreshActiveStaysOnline(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(activeStatus(2*time.Second), nil)
	act := new(mocks.Actuator)
	state := &memoryStateStore{}

	m := newMonitor(broker, act, new(mocks.Notifier), state)
	for i := 0; i < 5; i++ {
		d := m.Poll(context.Background())
		assert.Equal(t, liveness.PhaseOnline, d.State.Phase)
	}

	act.AssertNotCalled(t, "Enable", mock.Anything)
	assert.Equal(t, 5, state.saveCount())
	assert.Equal(t, liveness.PhaseOnline, m.Snapshot().Phase)
}

func TestMonitorService_UnreachableBrokerTriggersFailoverOnce(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(nil, errors.New("context deadline exceeded"))
	act := new(mocks.Actuator)
	act.On("Enable", mock.Anything).Return(nil).Once()
	notifier := new(mocks.Notifier)
	notifier.On("Notify", mock.Anything, level(notify.LevelInfo)).Return(nil).Once()

	m := newMonitor(broker, act, notifier, &memoryStateStore{})

	d := m.Poll(context.Background())
	assert.Equal(t, liveness.PhaseOfflinePending, d.State.Phase)
	assert.False(t, d.TriggerFailover)

	d = m.Poll(context.Background())
	assert.True(t, d.TriggerFailover)
	assert.Equal(t, liveness.PhaseFailoverCommitted, d.State.Phase)

	for i := 0; i < 5; i++ {
		assert.False(t, m.Poll(context.Background()).TriggerFailover)
	}

	act.AssertNumberOfCalls(t, "Enable", 1)
	notifier.AssertExpectations(t)
}

func TestMonitorService_FailedActuationNotifiesAndLatches(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(activeStatus(30*time.Second), nil)
	act := new(mocks.Actuator)
	act.On("Enable", mock.Anything).Return(errors.New("nmcli: device busy"))
	notifier := new(mocks.Notifier)
	notifier.On("Notify", mock.Anything, level(notify.LevelCritical)).Return(nil).Once()

	m := newMonitor(broker, act, notifier, &memoryStateStore{})
	for i := 0; i < 4; i++ {
		m.Poll(context.Background())
	}

	act.AssertNumberOfCalls(t, "Enable", 1)
	notifier.AssertExpectations(t)
	assert.True(t, m.Snapshot().FailoverTriggered)
}

func TestMonitorService_PausedSuppressesFailover(t *testing.T) {
	last := time.Now().Add(-5 * time.Minute)
	paused := &models.StatusResponse{
		DaemonStatus:        constants.DaemonOffline,
		DaemonLastHeartbeat: &last,
		DaemonMode:          constants.ModePaused,
		TimeSinceHeartbeat:  300,
	}
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(paused, nil)
	act := new(mocks.Actuator)

	m := newMonitor(broker, act, new(mocks.Notifier), &memoryStateStore{})
	for i := 0; i < 10; i++ {
		assert.Equal(t, liveness.PhasePaused, m.Poll(context.Background()).State.Phase)
	}
	act.AssertNotCalled(t, "Enable", mock.Anything)
}

func TestMonitorService_ResumesPersistedEvidence(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(nil, errors.New("connection refused"))
	act := new(mocks.Actuator)
	act.On("Enable", mock.Anything).Return(nil)
	notifier := new(mocks.Notifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(nil)
	state := &memoryStateStore{state: state_managers.MonitorState{
		State: liveness.State{Phase: liveness.PhaseOfflinePending, ConsecutiveOffline: 1},
	}}

	m := services.NewMonitorService(services.MonitorConfig{
		PollInterval:     time.Hour,
		OfflineThreshold: 2,
		RequestTimeout:   time.Second,
	}, broker, act, notifier, state, zerolog.Nop())
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return state.current().Phase == liveness.PhaseFailoverCommitted
	}, eventually, tick, "the first stale poll after restart completes the threshold")
	assert.Eventually(t, func() bool {
		return m.Snapshot().FailoverTriggered
	}, eventually, tick)
}

func TestMonitorService_CarriesOutPendingCommandOnce(t *testing.T) {
	issued := time.Now().Add(-time.Second)
	status := activeStatus(time.Second)
	status.CommandAction = constants.ActionDisable
	status.CommandIssuedAt = &issued

	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(status, nil)
	broker.On("Acknowledge", mock.Anything).Return(&models.AckResponse{Success: true}, nil).Once()
	act := new(mocks.Actuator)
	act.On("Disable", mock.Anything).Return(nil).Once()

	m := newMonitor(broker, act, new(mocks.Notifier), &memoryStateStore{})
	m.Poll(context.Background())
	m.Poll(context.Background())

	act.AssertExpectations(t)
	broker.AssertNumberOfCalls(t, "Acknowledge", 1)
}

func TestMonitorService_FailedCommandIsNotAcknowledged(t *testing.T) {
	issued := time.Now()
	status := activeStatus(time.Second)
	status.CommandAction = constants.ActionEnable
	status.CommandIssuedAt = &issued

	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(status, nil)
	act := new(mocks.Actuator)
	act.On("Enable", mock.Anything).Return(errors.New("no such device"))
	notifier := new(mocks.Notifier)
	notifier.On("Notify", mock.Anything, level(notify.LevelCritical)).Return(nil).Once()

	m := newMonitor(broker, act, notifier, &memoryStateStore{})
	m.Poll(context.Background())

	broker.AssertNotCalled(t, "Acknowledge", mock.Anything)
	notifier.AssertExpectations(t)
}

func TestMonitorService_AcknowledgedCommandIsIgnored(t *testing.T) {
	issued := time.Now()
	status := activeStatus(time.Second)
	status.CommandAction = constants.ActionEnable
	status.CommandIssuedAt = &issued
	status.MacAcknowledged = true

	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(status, nil)
	act := new(mocks.Actuator)

	m := newMonitor(broker, act, new(mocks.Notifier), &memoryStateStore{})
	m.Poll(context.Background())

	act.AssertNotCalled(t, "Enable", mock.Anything)
}

func TestMonitorService_CancelledPollIsNotEvidence(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(nil, context.Canceled)
	state := &memoryStateStore{}

	m := newMonitor(broker, new(mocks.Actuator), new(mocks.Notifier), state)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := m.Poll(ctx)
	assert.Equal(t, 0, d.State.ConsecutiveOffline)
	assert.Equal(t, 0, state.saveCount())
}

func TestMonitorService_HandledCommandSurvivesRestart(t *testing.T) {
	issued := time.Now().Add(-time.Second).UTC()
	status := activeStatus(time.Second)
	status.CommandAction = constants.ActionEnable
	status.CommandIssuedAt = &issued

	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(status, nil)
	act := new(mocks.Actuator)
	act.On("Enable", mock.Anything).Return(errors.New("no such device"))
	notifier := new(mocks.Notifier)
	notifier.On("Notify", mock.Anything, level(notify.LevelCritical)).Return(nil)
	store := &memoryStateStore{}

	first := newMonitor(broker, act, notifier, store)
	first.Poll(context.Background())
	require.NotNil(t, store.current().HandledCommandAt)
	assert.True(t, issued.Equal(*store.current().HandledCommandAt))

	saved := store.saveCount()
	second := newMonitor(broker, act, notifier, store)
	require.NoError(t, second.Start())
	assert.Eventually(t, func() bool { return store.saveCount() > saved }, eventually, tick)
	require.NoError(t, second.Stop())

	act.AssertNumberOfCalls(t, "Enable", 1)
	broker.AssertNotCalled(t, "Acknowledge", mock.Anything)
	assert.True(t, issued.Equal(*store.current().HandledCommandAt))
}

func TestMonitorService_UnreadableStateStartsFresh(t *testing.T) {
	broker := new(mocks.BrokerAPI)
	broker.On("GetStatus", mock.Anything).Return(activeStatus(time.Second), nil)
	store := &memoryStateStore{loadErr: errors.New("invalid character 'x' looking for beginning of value")}

	m := newMonitor(broker, new(mocks.Actuator), new(mocks.Notifier), store)
	require.NoError(t, m.Start())
	defer m.Stop()

	assert.Eventually(t, func() bool {
		return m.Snapshot().Phase == liveness.PhaseOnline
	}, eventually, tick)
	assert.Eventually(t, func() bool { return store.saveCount() > 0 }, eventually, tick)
}
