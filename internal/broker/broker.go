// Package broker holds the relay's two records and derives daemon status on
// read. It never acts on a timeout by itself: staleness is computed from
// record timestamps whenever status is requested.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/benmeehan/link-failover/internal/constants"
	"github.com/benmeehan/link-failover/internal/models"
	"github.com/benmeehan/link-failover/pkg/kvstore"
	"github.com/rs/zerolog"
)

// Config holds the broker's timing and validation settings.
type Config struct {
	FreshnessWindow     time.Duration
	Retention           time.Duration
	MinDaemonVersion    string
	RequireStatusSecret bool
}

// Option customises a Broker.
type Option func(*Broker)

// WithClock replaces the broker's clock.
func WithClock(now func() time.Time) Option {
	return func(b *Broker) { b.now = now }
}

// Broker implements the relay operations over a kvstore.Store.
type Broker struct {
	store      kvstore.Store
	secrets    SecretVerifier
	cfg        Config
	minVersion *semver.Version
	logger     zerolog.Logger
	now        func() time.Time

	// one writer at a time per record key
	heartbeatMu sync.Mutex
	commandMu   sync.Mutex
}

// New creates a Broker. Zero durations in cfg fall back to the reference values.
func New(store kvstore.Store, secrets SecretVerifier, cfg Config, logger zerolog.Logger, opts ...Option) (*Broker, error) {
	if store == nil || secrets == nil {
		return nil, errors.New("broker requires a store and a secret verifier")
	}
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = constants.DefaultFreshnessWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = constants.DefaultRetention
	}

	b := &Broker{
		store:   store,
		secrets: secrets,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
	if cfg.MinDaemonVersion != "" {
		v, err := semver.NewVersion(cfg.MinDaemonVersion)
		if err != nil {
			return nil, fmt.Errorf("invalid min daemon version %q: %w", cfg.MinDaemonVersion, err)
		}
		b.minVersion = v
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// PushHeartbeat overwrites the heartbeat record, stamped with the broker's clock.
func (b *Broker) PushHeartbeat(ctx context.Context, req models.HeartbeatRequest) (models.HeartbeatRecord, error) {
	if !b.secrets.Verify(req.Secret) {
		return models.HeartbeatRecord{}, ErrUnauthorized
	}
	if !req.Status.Valid() {
		return models.HeartbeatRecord{}, fmt.Errorf("%w: unknown status %q", ErrMalformed, req.Status)
	}
	if err := b.checkVersion(req.Version); err != nil {
		return models.HeartbeatRecord{}, err
	}

	b.heartbeatMu.Lock()
	defer b.heartbeatMu.Unlock()

	record := models.HeartbeatRecord{
		ReceivedAt: b.now(),
		Mode:       req.Status,
		SourceID:   req.SourceID,
		Version:    req.Version,
	}
	if err := b.put(ctx, constants.HeartbeatKey, record, b.cfg.Retention); err != nil {
		return models.HeartbeatRecord{}, err
	}

	b.logger.Debug().Str("mode", string(record.Mode)).Str("source_id", record.SourceID).Msg("Heartbeat recorded")
	return record, nil
}

func (b *Broker) checkVersion(raw string) error {
	if raw == "" {
		return nil
	}
	v, err := semver.NewVersion(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid version %q", ErrMalformed, raw)
	}
	if b.minVersion != nil && v.LessThan(b.minVersion) {
		return fmt.Errorf("%w: daemon version %s is older than %s", ErrMalformed, v, b.minVersion)
	}
	return nil
}

// PushCommand overwrites the command record with an unacknowledged action.
func (b *Broker) PushCommand(ctx context.Context, secret string, action constants.Action) (models.CommandRecord, error) {
	if !b.secrets.Verify(secret) {
		return models.CommandRecord{}, ErrUnauthorized
	}
	if !action.Valid() {
		return models.CommandRecord{}, fmt.Errorf("%w: unknown action %q", ErrMalformed, action)
	}

	b.commandMu.Lock()
	defer b.commandMu.Unlock()

	record := models.CommandRecord{Action: action, IssuedAt: b.now()}
	if err := b.put(ctx, constants.CommandKey, record, b.cfg.Retention); err != nil {
		return models.CommandRecord{}, err
	}

	b.logger.Info().Str("action", string(action)).Msg("Command recorded")
	return record, nil
}

// Acknowledge marks the current command as acknowledged. It reports false,
// without error, when there is no live command to acknowledge.
func (b *Broker) Acknowledge(ctx context.Context, secret string) (bool, error) {
	if !b.secrets.Verify(secret) {
		return false, ErrUnauthorized
	}

	b.commandMu.Lock()
	defer b.commandMu.Unlock()

	now := b.now()
	record, err := b.loadCommand(ctx, now)
	if err != nil || record == nil {
		return false, err
	}

	record.Acknowledged = true
	record.AcknowledgedAt = &now
	// keep the original expiry
	remaining := b.cfg.Retention - now.Sub(record.IssuedAt)
	if err := b.put(ctx, constants.CommandKey, *record, remaining); err != nil {
		return false, err
	}

	b.logger.Info().Str("action", string(record.Action)).Msg("Command acknowledged")
	return true, nil
}

// GetStatus reads both records and derives the daemon status. It never writes.
func (b *Broker) GetStatus(ctx context.Context, secret string) (models.StatusResponse, error) {
	if b.cfg.RequireStatusSecret && !b.secrets.Verify(secret) {
		return models.StatusResponse{}, ErrUnauthorized
	}

	now := b.now()
	hb, err := b.loadHeartbeat(ctx, now)
	if err != nil {
		return models.StatusResponse{}, err
	}
	cmd, err := b.loadCommand(ctx, now)
	if err != nil {
		return models.StatusResponse{}, err
	}

	derived := Derive(hb, now, b.cfg.FreshnessWindow)
	resp := models.StatusResponse{
		DaemonStatus:       derived.DaemonStatus,
		DaemonOnline:       derived.DaemonStatus == constants.DaemonOnline,
		TimeSinceHeartbeat: derived.TimeSinceHeartbeat.Seconds(),
		Timestamp:          now,
	}
	if hb != nil {
		receivedAt := hb.ReceivedAt
		resp.DaemonLastHeartbeat = &receivedAt
		resp.DaemonMode = hb.Mode
		resp.DaemonSourceID = hb.SourceID
	}
	if cmd != nil {
		issuedAt := cmd.IssuedAt
		resp.HotspotEnabled = cmd.Action == constants.ActionEnable
		resp.MacAcknowledged = cmd.Acknowledged
		resp.CommandAction = cmd.Action
		resp.CommandIssuedAt = &issuedAt
	}
	return resp, nil
}

// Sweep deletes records past the retention window and returns how many it removed.
func (b *Broker) Sweep(ctx context.Context) (int, error) {
	now := b.now()
	removed := 0

	sweepKey := func(mu *sync.Mutex, key string, issued func([]byte) (time.Time, error)) error {
		mu.Lock()
		defer mu.Unlock()

		raw, found, err := b.store.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		if !found {
			return nil
		}
		at, err := issued(raw)
		if err == nil && now.Sub(at) < b.cfg.Retention {
			return nil
		}
		if err != nil {
			b.logger.Warn().Err(err).Str("key", key).Msg("Dropping undecodable record")
		}
		if err := b.store.Delete(ctx, key); err != nil {
			return fmt.Errorf("%w: %v", ErrStorage, err)
		}
		removed++
		return nil
	}

	err := sweepKey(&b.heartbeatMu, constants.HeartbeatKey, func(raw []byte) (time.Time, error) {
		var hb models.HeartbeatRecord
		err := json.Unmarshal(raw, &hb)
		return hb.ReceivedAt, err
	})
	if err != nil {
		return removed, err
	}
	err = sweepKey(&b.commandMu, constants.CommandKey, func(raw []byte) (time.Time, error) {
		var cmd models.CommandRecord
		err := json.Unmarshal(raw, &cmd)
		return cmd.IssuedAt, err
	})
	return removed, err
}

// loadHeartbeat returns nil when the record is absent or past retention.
func (b *Broker) loadHeartbeat(ctx context.Context, now time.Time) (*models.HeartbeatRecord, error) {
	var hb models.HeartbeatRecord
	found, err := b.get(ctx, constants.HeartbeatKey, &hb)
	if err != nil || !found {
		return nil, err
	}
	if now.Sub(hb.ReceivedAt) >= b.cfg.Retention {
		return nil, nil
	}
	return &hb, nil
}

// loadCommand returns nil when the record is absent or past retention.
func (b *Broker) loadCommand(ctx context.Context, now time.Time) (*models.CommandRecord, error) {
	var cmd models.CommandRecord
	found, err := b.get(ctx, constants.CommandKey, &cmd)
	if err != nil || !found {
		return nil, err
	}
	if now.Sub(cmd.IssuedAt) >= b.cfg.Retention {
		return nil, nil
	}
	return &cmd, nil
}

func (b *Broker) get(ctx context.Context, key string, v any) (bool, error) {
	raw, found, err := b.store.Get(ctx, key)
	if err != nil {
		b.logger.Error().Err(err).Str("key", key).Msg("Failed to read record")
		return false, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		b.logger.Error().Err(err).Str("key", key).Msg("Failed to decode record")
		return false, fmt.Errorf("%w: decode %s: %v", ErrStorage, key, err)
	}
	return true, nil
}

func (b *Broker) put(ctx context.Context, key string, v any, ttl time.Duration) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %v", ErrStorage, key, err)
	}
	if err := b.store.Set(ctx, key, payload, ttl); err != nil {
		b.logger.Error().Err(err).Str("key", key).Msg("Failed to write record")
		return fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return nil
}
