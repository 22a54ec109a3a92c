package liveness

import (
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
)

// Phase is the engine's externally visible state.
type Phase string

const (
	PhaseUnknown           Phase = "unknown"
	PhaseOnline            Phase = "online"
	PhasePaused            Phase = "paused"
	PhaseOfflinePending    Phase = "offline_pending"
	PhaseFailoverCommitted Phase = "failover_committed"
)

// State is everything the engine remembers between polls. It is persisted so
// a restart does not discard offline evidence.
type State struct {
	Phase              Phase          `json:"phase"`
	ConsecutiveOffline int            `json:"consecutive_offline_count"`
	FailoverTriggered  bool           `json:"failover_already_triggered"`
	LastClassification Classification `json:"last_classification,omitempty"`
	LastPollAt         time.Time      `json:"last_poll_at,omitempty"`
	LastTriggeredAt    *time.Time     `json:"last_triggered_at,omitempty"`
}

// Decision tells the caller what to do after a poll.
type Decision struct {
	State           State
	TriggerFailover bool
}

// Engine is the single-writer failover state machine. It is not safe for
// concurrent use; the monitor loop owns it.
type Engine struct {
	offlineThreshold int
	state            State
}

// NewEngine creates an engine resuming from state. A zero state starts in PhaseUnknown.
func NewEngine(offlineThreshold int, state State) *Engine {
	if offlineThreshold < 1 {
		offlineThreshold = constants.DefaultOfflineThreshold
	}
	if state.Phase == "" {
		state.Phase = PhaseUnknown
	}
	if state.ConsecutiveOffline < 0 {
		state.ConsecutiveOffline = 0
	}
	return &Engine{offlineThreshold: offlineThreshold, state: state}
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	return e.state
}

// Observe applies one classified poll taken at time at. TriggerFailover is
// true at most once per offline episode; the latch is set whether or not the
// caller's actuation then succeeds.
func (e *Engine) Observe(c Classification, at time.Time) Decision {
	e.state.LastClassification = c
	e.state.LastPollAt = at

	switch c {
	case FreshActive:
		e.reset(PhaseOnline)
		return Decision{State: e.state}
	case FreshPaused:
		e.reset(PhasePaused)
		return Decision{State: e.state}
	}

	e.state.ConsecutiveOffline++
	if e.state.FailoverTriggered {
		e.state.Phase = PhaseFailoverCommitted
		return Decision{State: e.state}
	}
	if e.state.ConsecutiveOffline < e.offlineThreshold {
		e.state.Phase = PhaseOfflinePending
		return Decision{State: e.state}
	}

	triggeredAt := at
	e.state.Phase = PhaseFailoverCommitted
	e.state.FailoverTriggered = true
	e.state.LastTriggeredAt = &triggeredAt
	return Decision{State: e.state, TriggerFailover: true}
}

func (e *Engine) reset(phase Phase) {
	e.state.Phase = phase
	e.state.ConsecutiveOffline = 0
	e.state.FailoverTriggered = false
}
