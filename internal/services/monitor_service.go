package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/liveness"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/internal/notify"
	"github.com/benmeehan/link-failover/internal/state_managers"
	"github.com/benmeehan/link-failover/pkg/actuator"
	"github.com/rs/zerolog"
)

// MonitorConfig holds the decision engine's timing.
type MonitorConfig struct {
	PollInterval       time.Duration
	StalenessThreshold time.Duration
	OfflineThreshold   int
	RequestTimeout     time.Duration
}

// MonitorService polls the broker, feeds the decision engine and enables the
// backup link when the engine commits to failover. It also carries out
// commands issued through the broker by hand or by the daemon.
type MonitorService struct {
	Config   MonitorConfig
	Broker   BrokerAPI
	Actuator actuator.Actuator
	Notifier notify.Notifier
	State    MonitorStateStore
	Logger   zerolog.Logger

	now    func() time.Time
	engine *liveness.Engine

	// last command handed to the actuator, by issue time; persisted
	handledCommand time.Time

	mu       sync.Mutex
	snapshot liveness.State

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewMonitorService initializes a new MonitorService. Zero config values fall
// back to the reference timings.
func NewMonitorService(cfg MonitorConfig, broker BrokerAPI, act actuator.Actuator, notifier notify.Notifier,
	state MonitorStateStore, logger zerolog.Logger) *MonitorService {

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = constants.DefaultPollInterval
	}
	if cfg.StalenessThreshold <= 0 {
		cfg.StalenessThreshold = constants.DefaultStalenessThreshold
	}
	if cfg.OfflineThreshold <= 0 {
		cfg.OfflineThreshold = constants.DefaultOfflineThreshold
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.DefaultRequestTimeout
	}
	return &MonitorService{
		Config:   cfg,
		Broker:   broker,
		Actuator: act,
		Notifier: notifier,
		State:    state,
		Logger:   logger,
		now:      time.Now,
	}
}

// Start restores persisted engine state and launches the poll loop.
func (m *MonitorService) Start() error {
	if m.ctx != nil {
		m.Logger.Warn().Msg("MonitorService is already running")
		return errors.New("monitor service is already running")
	}

	m.restore()

	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.runPollLoop()
	}()

	m.Logger.Info().
		Dur("poll_interval", m.Config.PollInterval).
		Dur("staleness_threshold", m.Config.StalenessThreshold).
		Int("offline_threshold", m.Config.OfflineThreshold).
		Dur("worst_case_latency", time.Duration(m.Config.OfflineThreshold)*m.Config.PollInterval).
		Msg("MonitorService started successfully")
	return nil
}

// Stop gracefully stops the monitor. An in-flight poll completes or times out.
func (m *MonitorService) Stop() error {
	if m.ctx == nil {
		m.Logger.Warn().Msg("MonitorService is not running")
		return errors.New("monitor service is not running")
	}

	m.cancel()
	m.wg.Wait()

	m.ctx = nil
	m.cancel = nil

	m.Logger.Info().Msg("MonitorService stopped successfully")
	return nil
}

// restore resumes from the persisted state. An unreadable state file is
// logged and the engine starts fresh.
func (m *MonitorService) restore() {
	var state state_managers.MonitorState
	if m.State != nil {
		loaded, err := m.State.LoadState()
		if err != nil {
			m.Logger.Error().Err(err).Msg("Failed to load monitor state, starting from scratch")
		} else {
			state = loaded
		}
	}
	m.engine = liveness.NewEngine(m.Config.OfflineThreshold, state.State)
	m.setSnapshot(m.engine.State())
	m.handledCommand = time.Time{}
	if state.HandledCommandAt != nil {
		m.handledCommand = *state.HandledCommandAt
	}

	if state.Phase != "" {
		m.Logger.Info().
			Str("phase", string(state.Phase)).
			Int("consecutive_offline", state.ConsecutiveOffline).
			Bool("failover_triggered", state.FailoverTriggered).
			Msg("Resumed engine state")
	}
}

func (m *MonitorService) runPollLoop() {
	ticker := time.NewTicker(m.Config.PollInterval)
	defer ticker.Stop()

	m.Poll(m.ctx)
	for {
		select {
		case <-ticker.C:
			m.Poll(m.ctx)
		case <-m.ctx.Done():
			m.Logger.Info().Msg("MonitorService stopping gracefully")
			return
		}
	}
}

// Poll runs one tick: read status, classify, advance the engine, act.
func (m *MonitorService) Poll(ctx context.Context) liveness.Decision {
	if m.engine == nil {
		m.engine = liveness.NewEngine(m.Config.OfflineThreshold, liveness.State{})
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.Config.RequestTimeout)
	status, err := m.Broker.GetStatus(reqCtx)
	cancel()
	if ctx.Err() != nil {
		// shutting down; an aborted poll is not evidence
		return liveness.Decision{State: m.engine.State()}
	}
	if err != nil {
		m.Logger.Warn().Err(err).Msg("Failed to fetch broker status")
	}

	previous := m.engine.State()
	classification := liveness.Classify(status, err, m.Config.StalenessThreshold)
	decision := m.engine.Observe(classification, m.now())
	m.logTransition(previous, decision.State, status)

	if decision.TriggerFailover {
		m.failover(ctx, decision.State)
	}

	m.setSnapshot(decision.State)
	m.persist()

	if err == nil && status != nil {
		m.handleCommand(ctx, status)
	}
	return decision
}

func (m *MonitorService) logTransition(prev, next liveness.State, status *models.StatusResponse) {
	event := m.Logger.Debug()
	if prev.Phase != next.Phase {
		event = m.Logger.Info()
	}
	if status != nil {
		event = event.Str("daemon_status", string(status.DaemonStatus)).Float64("time_since_heartbeat", status.TimeSinceHeartbeat)
	}
	event.
		Str("classification", string(next.LastClassification)).
		Str("phase", string(next.Phase)).
		Int("consecutive_offline", next.ConsecutiveOffline).
		Msg("Poll evaluated")
}

func (m *MonitorService) failover(ctx context.Context, state liveness.State) {
	m.Logger.Warn().Int("consecutive_offline", state.ConsecutiveOffline).Msg("Daemon offline, enabling backup link")

	if err := m.Actuator.Enable(ctx); err != nil {
		m.Logger.Error().Err(err).Msg("Failover actuation failed; not retrying until the daemon is seen again")
		m.notify(ctx, notify.Event{
			Level:   notify.LevelCritical,
			Title:   "Failover failed",
			Message: "Daemon is offline but the backup link could not be enabled: " + err.Error(),
		})
		return
	}
	m.notify(ctx, notify.Event{
		Level:   notify.LevelInfo,
		Title:   "Failover",
		Message: "Daemon is offline; backup link enabled",
	})
}

// handleCommand carries out an unacknowledged broker command once per issue.
func (m *MonitorService) handleCommand(ctx context.Context, status *models.StatusResponse) {
	action, pending := status.PendingCommand()
	if !pending || status.CommandIssuedAt == nil || status.CommandIssuedAt.Equal(m.handledCommand) {
		return
	}
	m.handledCommand = *status.CommandIssuedAt
	m.persist()

	var err error
	switch action {
	case constants.ActionEnable:
		err = m.Actuator.Enable(ctx)
	case constants.ActionDisable:
		err = m.Actuator.Disable(ctx)
	default:
		m.Logger.Warn().Str("action", string(action)).Msg("Ignoring unknown command")
		return
	}
	if err != nil {
		m.Logger.Error().Err(err).Str("action", string(action)).Msg("Failed to carry out command")
		m.notify(ctx, notify.Event{
			Level:   notify.LevelCritical,
			Title:   "Command failed",
			Message: fmt.Sprintf("Could not %s the backup link: %v", action, err),
		})
		return
	}

	reqCtx, cancel := context.WithTimeout(ctx, m.Config.RequestTimeout)
	defer cancel()
	if _, err := m.Broker.Acknowledge(reqCtx); err != nil {
		m.Logger.Error().Err(err).Str("action", string(action)).Msg("Failed to acknowledge command")
		return
	}
	m.Logger.Info().Str("action", string(action)).Msg("Command carried out and acknowledged")
}

func (m *MonitorService) persist() {
	if m.State == nil {
		return
	}
	state := state_managers.MonitorState{State: m.engine.State()}
	if !m.handledCommand.IsZero() {
		handled := m.handledCommand
		state.HandledCommandAt = &handled
	}
	if err := m.State.SaveState(state); err != nil {
		m.Logger.Error().Err(err).Msg("Failed to persist monitor state")
	}
}

func (m *MonitorService) notify(ctx context.Context, event notify.Event) {
	if m.Notifier == nil {
		return
	}
	if event.At.IsZero() {
		event.At = m.now()
	}
	if err := m.Notifier.Notify(ctx, event); err != nil {
		m.Logger.Error().Err(err).Str("title", event.Title).Msg("Failed to send notification")
	}
}

func (m *MonitorService) setSnapshot(s liveness.State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot = s
}

// Snapshot returns a copy of the engine state as of the last poll.
func (m *MonitorService) Snapshot() liveness.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}
