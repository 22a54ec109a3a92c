package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/telemetry"
	"github.com/rs/zerolog"
)

// HousekeepingService reclaims broker records past the retention window.
// Status reads already ignore such records, so this only frees storage.
type HousekeepingService struct {
	Interval time.Duration
	Sweepers []Sweeper
	Logger   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewHousekeepingService initializes a new HousekeepingService.
func NewHousekeepingService(interval time.Duration, logger zerolog.Logger, sweepers ...Sweeper) *HousekeepingService {
	if interval <= 0 {
		interval = constants.DefaultSweepInterval
	}
	return &HousekeepingService{
		Interval: interval,
		Sweepers: sweepers,
		Logger:   logger,
	}
}

// Start launches the sweep loop in a separate goroutine.
func (h *HousekeepingService) Start() error {
	if h.ctx != nil {
		h.Logger.Warn().Msg("HousekeepingService is already running")
		return errors.New("housekeeping service is already running")
	}

	h.ctx, h.cancel = context.WithCancel(context.Background())

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ticker := time.NewTicker(h.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				h.SweepOnce(h.ctx)
			case <-h.ctx.Done():
				return
			}
		}
	}()

	h.Logger.Info().Dur("interval", h.Interval).Msg("HousekeepingService started successfully")
	return nil
}

// Stop gracefully stops the housekeeping service.
func (h *HousekeepingService) Stop() error {
	if h.ctx == nil {
		h.Logger.Warn().Msg("HousekeepingService is not running")
		return errors.New("housekeeping service is not running")
	}

	h.cancel()
	h.wg.Wait()

	h.ctx = nil
	h.cancel = nil

	h.Logger.Info().Msg("HousekeepingService stopped successfully")
	return nil
}

// SweepOnce runs every sweeper and returns the total number of records removed.
func (h *HousekeepingService) SweepOnce(ctx context.Context) int {
	total := 0
	for _, s := range h.Sweepers {
		n, err := s.Sweep(ctx)
		total += n
		if err != nil {
			h.Logger.Error().Err(err).Msg("Sweep failed")
		}
	}
	if total > 0 {
		telemetry.SweptRecords.Add(float64(total))
		h.Logger.Info().Int("removed", total).Msg("Expired records swept")
	}
	return total
}
