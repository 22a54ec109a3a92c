// Package notify tells the operator about failover events.
package notify

import (
	"context"
	"errors"
	"time"

	"github.com/benmeehan/link-failover/internal/utils"
	"github.com/rs/zerolog"
)

// Level is an event's severity.
type Level string

const (
	LevelInfo     Level = "info"
	LevelCritical Level = "critical"
)

// Event is one notification.
type Event struct {
	Level   Level             `json:"level"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	At      time.Time         `json:"at"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier delivers events.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// LogNotifier writes events to the log.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	e := n.Logger.Info()
	if event.Level == LevelCritical {
		e = n.Logger.Error()
	}
	for k, v := range event.Fields {
		e = e.Str(k, v)
	}
	e.Str("title", event.Title).Time("at", event.At).Msg(event.Message)
	return nil
}

// Dispatcher fans events out to several notifiers on a worker pool so a slow
// sink never stalls the caller.
type Dispatcher struct {
	notifiers []Notifier
	pool      *utils.WorkerPool
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewDispatcher creates a Dispatcher. Each delivery is bounded by timeout.
func NewDispatcher(notifiers []Notifier, timeout time.Duration, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		notifiers: notifiers,
		pool:      utils.NewWorkerPool(2, 32),
		timeout:   timeout,
		logger:    logger,
	}
}

// ErrQueueFull is returned when an event had to be dropped for at least one notifier.
var ErrQueueFull = errors.New("notification queue is full")

// Notify queues event for every notifier and returns without waiting.
func (d *Dispatcher) Notify(_ context.Context, event Event) error {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	var dropped bool
	for _, n := range d.notifiers {
		n := n
		ok := d.pool.TrySubmit(func() {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()
			if err := n.Notify(ctx, event); err != nil {
				d.logger.Error().Err(err).Str("title", event.Title).Msg("Failed to deliver notification")
			}
		})
		if !ok {
			dropped = true
			d.logger.Warn().Str("title", event.Title).Msg("Notification dropped, queue is full")
		}
	}
	if dropped {
		return ErrQueueFull
	}
	return nil
}

// Close delivers queued events and stops the workers.
func (d *Dispatcher) Close() {
	d.pool.Shutdown()
}
