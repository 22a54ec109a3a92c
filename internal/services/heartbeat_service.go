package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/pkg/identity"
	"github.com/benmeehan/link-failover/pkg/idle"
	"github.com/rs/zerolog"
)

// HeartbeatService pushes the daemon's liveness to the broker on a fixed
// interval. Pushes are fire-and-forget: the next tick is the retry.
type HeartbeatService struct {
	Interval       time.Duration
	RequestTimeout time.Duration
	Version        string
	SourceInfo     identity.SourceInfoInterface
	Idle           idle.Detector
	Broker         BrokerAPI
	Logger         zerolog.Logger

	lastMode constants.Mode
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewHeartbeatService initializes a new HeartbeatService.
func NewHeartbeatService(interval, requestTimeout time.Duration, version string, sourceInfo identity.SourceInfoInterface,
	idleDetector idle.Detector, broker BrokerAPI, logger zerolog.Logger) *HeartbeatService {

	if interval <= 0 {
		interval = constants.DefaultHeartbeatInterval
	}
	if requestTimeout <= 0 {
		requestTimeout = constants.DefaultRequestTimeout
	}
	return &HeartbeatService{
		Interval:       interval,
		RequestTimeout: requestTimeout,
		Version:        version,
		SourceInfo:     sourceInfo,
		Idle:           idleDetector,
		Broker:         broker,
		Logger:         logger,
	}
}

// Start launches the heartbeat loop in a separate goroutine.
func (h *HeartbeatService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HeartbeatService is already running")
		return errors.New("heartbeat service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runHeartbeatLoop()
	}()

	h.Logger.Info().Dur("interval", h.Interval).Msg("HeartbeatService started successfully")
	return nil
}

// Stop gracefully stops the heartbeat service.
func (h *HeartbeatService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HeartbeatService is not running")
		return errors.New("heartbeat service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HeartbeatService stopped successfully")
	return nil
}

func (h *HeartbeatService) runHeartbeatLoop() {
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	h.SendHeartbeat(h.ctx)
	for {
		select {
		case <-ticker.C:
			h.SendHeartbeat(h.ctx)
		case <-h.ctx.Done():
			h.Logger.Info().Msg("HeartbeatService stopping gracefully")
			return
		}
	}
}

// CurrentMode is paused while the idle detector reports idle. A detector
// error counts as active so a broken check never suppresses failover.
func (h *HeartbeatService) CurrentMode(ctx context.Context) constants.Mode {
	if h.Idle == nil {
		return constants.ModeActive
	}
	isIdle, err := h.Idle.IsIdle(ctx)
	if err != nil {
		h.Logger.Warn().Err(err).Msg("Idle check failed, reporting active")
		return constants.ModeActive
	}
	if isIdle {
		return constants.ModePaused
	}
	return constants.ModeActive
}

// SendHeartbeat pushes one heartbeat with the current mode.
func (h *HeartbeatService) SendHeartbeat(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, h.RequestTimeout)
	defer cancel()

	mode := h.CurrentMode(ctx)
	if mode != h.lastMode {
		h.Logger.Info().Str("mode", string(mode)).Msg("Heartbeat mode changed")
		h.lastMode = mode
	}

	req := models.HeartbeatRequest{
		Status:  mode,
		Version: h.Version,
	}
	if h.SourceInfo != nil {
		req.SourceID = h.SourceInfo.GetSourceID()
	}

	if _, err := h.Broker.PushHeartbeat(ctx, req); err != nil {
		h.Logger.Error().Err(err).Msg("Failed to push heartbeat")
		return
	}
	h.Logger.Debug().Str("mode", string(mode)).Msg("Heartbeat pushed successfully")
}
