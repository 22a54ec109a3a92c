package liveness_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benmeehan/link-failover/internal/broker"
	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/liveness"
	"github.com/benmeehan/link-failover/internal/mocks"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/pkg/kvstore"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	staleness        = 10 * time.Second
	offlineThreshold = 2
)

// harness wires a real broker to an engine with a shared fake clock.
type harness struct {
	t           *testing.T
	clock       *mocks.Clock
	broker      *broker.Broker
	engine      *liveness.Engine
	start       time.Time
	unreachable bool
	actuations  int
}

func newHarness(t *testing.T) *harness {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := mocks.NewClock(start)
	secrets, err := broker.NewSecretVerifier("secret", "")
	require.NoError(t, err)
	b, err := broker.New(kvstore.NewMemoryStore(), secrets, broker.Config{}, zerolog.Nop(), broker.WithClock(clock.Now))
	require.NoError(t, err)
	return &harness{t: t, clock: clock, broker: b, engine: liveness.NewEngine(offlineThreshold, liveness.State{}), start: start}
}

func (h *harness) at(offset time.Duration) {
	h.clock.Set(h.start.Add(offset))
}

func (h *harness) push(mode constants.Mode) {
	_, err := h.broker.PushHeartbeat(context.Background(), models.HeartbeatRequest{Secret: "secret", Status: mode})
	require.NoError(h.t, err)
}

func (h *harness) poll() liveness.Decision {
	var status *models.StatusResponse
	var err error
	if h.unreachable {
		err = errors.New("dial tcp: i/o timeout")
	} else {
		s, getErr := h.broker.GetStatus(context.Background(), "")
		status, err = &s, getErr
	}
	d := h.engine.Observe(liveness.Classify(status, err, staleness), h.clock.Now())
	if d.TriggerFailover {
		h.actuations++
	}
	return d
}

func TestLoop_FreshActiveStaysOnline(t *testing.T) {
	h := newHarness(t)
	h.push(constants.ModeActive)

	for _, s := range []time.Duration{1, 3, 5} {
		h.at(s * time.Second)
		d := h.poll()
		assert.Equal(t, liveness.PhaseOnline, d.State.Phase)
		assert.Equal(t, 0, d.State.ConsecutiveOffline)
	}
	assert.Equal(t, 0, h.actuations)
}

func TestLoop_NoHeartbeatTriggersOnce(t *testing.T) {
	h := newHarness(t)

	h.at(0)
	d := h.poll()
	assert.Equal(t, liveness.PhaseOfflinePending, d.State.Phase)
	assert.Equal(t, 1, d.State.ConsecutiveOffline)

	h.at(10 * time.Second)
	d = h.poll()
	assert.Equal(t, liveness.PhaseFailoverCommitted, d.State.Phase)
	assert.Equal(t, 1, h.actuations)
}

func TestLoop_PausedPastStalenessStaysPaused(t *testing.T) {
	h := newHarness(t)
	h.push(constants.ModePaused)

	h.at(20 * time.Second)
	d := h.poll()
	assert.Equal(t, liveness.PhasePaused, d.State.Phase)
	assert.Equal(t, 0, d.State.ConsecutiveOffline)
}

func TestLoop_UnreachableBrokerCountsAsStale(t *testing.T) {
	h := newHarness(t)
	h.push(constants.ModeActive)
	h.unreachable = true

	h.at(10 * time.Second)
	d := h.poll()
	assert.Equal(t, 1, d.State.ConsecutiveOffline)
	assert.Equal(t, liveness.PhaseOfflinePending, d.State.Phase)

	h.at(20 * time.Second)
	d = h.poll()
	assert.Equal(t, liveness.PhaseFailoverCommitted, d.State.Phase)
	assert.Equal(t, 1, h.actuations)
}

func TestLoop_ConvergenceUnderRegularHeartbeats(t *testing.T) {
	h := newHarness(t)

	// the engine starts with offline evidence from a previous episode
	h.poll()
	require.Equal(t, 1, h.engine.State().ConsecutiveOffline)

	// heartbeats every 2s, polls every 5s, for ten minutes
	for ms := 0; ms <= 600_000; ms += 1000 {
		h.at(time.Duration(ms) * time.Millisecond)
		if ms%2000 == 0 {
			h.push(constants.ModeActive)
		}
		if ms%5000 == 0 {
			d := h.poll()
			assert.Equal(t, liveness.PhaseOnline, d.State.Phase)
		}
	}
	assert.Equal(t, 0, h.actuations)
}

func TestLoop_TransportFailuresMatchStaleReads(t *testing.T) {
	stale := newHarness(t)
	stale.push(constants.ModeActive)
	failing := newHarness(t)
	failing.push(constants.ModeActive)
	failing.unreachable = true

	for i := 1; i <= 5; i++ {
		offset := staleness + time.Duration(i)*5*time.Second
		stale.at(offset)
		failing.at(offset)
		assert.Equal(t, stale.poll().State.Phase, failing.poll().State.Phase)
	}
	assert.Equal(t, 1, stale.actuations)
	assert.Equal(t, stale.actuations, failing.actuations)
}

func TestLoop_PauseAfterLongOutage(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 6; i++ {
		h.at(time.Duration(i) * 5 * time.Second)
		h.poll()
	}
	require.Equal(t, 1, h.actuations)

	h.at(31 * time.Second)
	h.push(constants.ModePaused)
	h.at(35 * time.Second)
	d := h.poll()
	assert.Equal(t, liveness.PhasePaused, d.State.Phase)
	assert.Equal(t, 0, d.State.ConsecutiveOffline)

	h.at(40 * time.Second)
	d = h.poll()
	assert.Equal(t, liveness.PhasePaused, d.State.Phase)
	assert.Equal(t, 1, h.actuations)
}
