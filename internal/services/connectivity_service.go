package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/pkg/connectivity"
	"github.com/benmeehan/link-failover/pkg/shell"
	"github.com/rs/zerolog"
)

// ConnectivityConfig holds the daemon's link watch settings.
type ConnectivityConfig struct {
	CheckInterval     time.Duration
	FailureThreshold  int
	RecoveryThreshold int
	RequestTimeout    time.Duration
	JoinCommand       string
}

// ConnectivityService watches the primary link from the daemon's side. When
// the link drops it asks the backup device, through the broker, to enable
// the backup link and optionally joins it; once the primary link is back
// it asks for the backup link to be disabled. A request that does not go
// through is retried on the next check.
//
// When Link is set, checks only count while the host is on its primary
// network; elsewhere both counters are reset.
type ConnectivityService struct {
	Config ConnectivityConfig
	Prober connectivity.Prober
	Link   connectivity.LinkChecker
	Broker BrokerAPI
	Runner *shell.Runner
	Logger zerolog.Logger

	failures   int
	successes  int
	failedOver bool
	lastReport time.Time
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConnectivityService initializes a new ConnectivityService.
// link may be nil.
func NewConnectivityService(cfg ConnectivityConfig, prober connectivity.Prober, link connectivity.LinkChecker,
	broker BrokerAPI, runner *shell.Runner, logger zerolog.Logger) *ConnectivityService {

	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = constants.DefaultCheckInterval
	}
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = constants.DefaultFailureThreshold
	}
	if cfg.RecoveryThreshold <= 0 {
		cfg.RecoveryThreshold = constants.DefaultRecoveryThreshold
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.DefaultRequestTimeout
	}
	return &ConnectivityService{
		Config: cfg,
		Prober: prober,
		Link:   link,
		Broker: broker,
		Runner: runner,
		Logger: logger,
		now:    time.Now,
	}
}

// Start launches the connectivity loop in a separate goroutine.
func (c *ConnectivityService) Start() error {
	if c.ctx != nil {
		c.Logger.Warn().Msg("ConnectivityService is already running")
		return errors.New("connectivity service is already running")
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.Config.CheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.Check(c.ctx)
			case <-c.ctx.Done():
				c.Logger.Info().Msg("ConnectivityService stopping gracefully")
				return
			}
		}
	}()

	c.Logger.Info().Dur("interval", c.Config.CheckInterval).Msg("ConnectivityService started successfully")
	return nil
}

// Stop gracefully stops the connectivity service.
func (c *ConnectivityService) Stop() error {
	if c.ctx == nil {
		c.Logger.Warn().Msg("ConnectivityService is not running")
		return errors.New("connectivity service is not running")
	}

	c.cancel()
	c.wg.Wait()

	c.ctx = nil
	c.cancel = nil

	c.Logger.Info().Msg("ConnectivityService stopped successfully")
	return nil
}

// FailedOver reports whether the service has asked for the backup link.
func (c *ConnectivityService) FailedOver() bool {
	return c.failedOver
}

// Check runs one probe and applies the failure and recovery thresholds.
func (c *ConnectivityService) Check(ctx context.Context) {
	if c.Link != nil {
		onPrimary, err := c.Link.OnPrimary(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			c.Logger.Warn().Err(err).Msg("Failed to determine the current network")
		}
		if err != nil || !onPrimary {
			c.failures, c.successes = 0, 0
			c.report(false, false)
			return
		}
	}

	err := c.Prober.Probe(ctx)
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		c.failures++
		c.successes = 0
		c.Logger.Warn().Err(err).Int("consecutive_failures", c.failures).Msg("Connectivity check failed")
		if !c.failedOver && c.failures >= c.Config.FailureThreshold && c.triggerFailover(ctx) {
			c.failedOver = true
			c.failures = 0
		}
	} else {
		c.successes++
		c.failures = 0
		if c.failedOver && c.successes >= c.Config.RecoveryThreshold && c.recover(ctx) {
			c.failedOver = false
			c.successes = 0
		}
	}
	c.report(true, err == nil)
}

// triggerFailover requests the backup link and joins it. It reports whether
// both steps succeeded.
func (c *ConnectivityService) triggerFailover(ctx context.Context) bool {
	c.Logger.Warn().Int("consecutive_failures", c.failures).Msg("Primary link lost, requesting backup link")

	if err := c.pushCommand(ctx, constants.ActionEnable); err != nil {
		return false
	}

	if c.Config.JoinCommand != "" && c.Runner != nil {
		if _, err := c.Runner.Run(ctx, c.Config.JoinCommand); err != nil {
			c.Logger.Error().Err(err).Msg("Failed to join backup link")
			return false
		}
		c.Logger.Info().Msg("Joined backup link")
	}
	return true
}

func (c *ConnectivityService) recover(ctx context.Context) bool {
	c.Logger.Info().Int("consecutive_successes", c.successes).Msg("Primary link restored, releasing backup link")
	return c.pushCommand(ctx, constants.ActionDisable) == nil
}

func (c *ConnectivityService) pushCommand(ctx context.Context, action constants.Action) error {
	ctx, cancel := context.WithTimeout(ctx, c.Config.RequestTimeout)
	defer cancel()
	if _, err := c.Broker.PushCommand(ctx, action); err != nil {
		c.Logger.Error().Err(err).Str("action", string(action)).Msg("Failed to push command to broker")
		return err
	}
	c.Logger.Info().Str("action", string(action)).Msg("Command pushed to broker")
	return nil
}

// report logs the link status at most once a minute.
func (c *ConnectivityService) report(onPrimary, online bool) {
	now := c.now()
	if !c.lastReport.IsZero() && now.Sub(c.lastReport) < time.Minute {
		return
	}
	c.lastReport = now
	c.Logger.Info().
		Bool("on_primary", onPrimary).
		Bool("online", online).
		Bool("failed_over", c.failedOver).
		Int("consecutive_failures", c.failures).
		Int("consecutive_successes", c.successes).
		Msg("Connectivity status")
}
