package events

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dmelnik7/order-payments-platform/internal/observability/metrics"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

// Publisher routes a serialized event to its broker destination. The broker
// package supplies the real implementation; tests supply fakes.
type Publisher interface {
	PublishEvent(ctx context.Context, eventType string, payload []byte) error
}

// TxBeginner is the slice of pgxpool.Pool the dispatcher needs.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Dispatcher polls outbox_events and publishes pending rows. Each service
// owning an outbox runs exactly one Dispatcher goroutine; SKIP LOCKED row
// claims make additional instances safe.
type Dispatcher struct {
	db         TxBeginner
	publisher  Publisher
	logger     *logging.Logger
	metrics    *metrics.PipelineMetrics
	batchSize  int32
	interval   time.Duration
	maxBackoff time.Duration
}

func NewDispatcher(db TxBeginner, publisher Publisher, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{
		db:         db,
		publisher:  publisher,
		logger:     logger,
		batchSize:  10,
		interval:   time.Second,
		maxBackoff: 30 * time.Second,
	}
}

func (d *Dispatcher) WithBatchSize(size int32) *Dispatcher {
	if size > 0 {
		d.batchSize = size
	}
	return d
}

func (d *Dispatcher) WithInterval(interval time.Duration) *Dispatcher {
	if interval > 0 {
		d.interval = interval
	}
	return d
}

func (d *Dispatcher) WithMetrics(m *metrics.PipelineMetrics) *Dispatcher {
	d.metrics = m
	return d
}

// Run polls until ctx is cancelled. Consecutive failures double the sleep up
// to maxBackoff; a clean pass resets it to the configured interval.
func (d *Dispatcher) Run(ctx context.Context) {
	delay := d.interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if err := d.DrainOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			d.logger.Error("outbox dispatch failed", "error", err)
			d.metrics.ObserveOutboxPollError()
			delay *= 2
			if delay > d.maxBackoff {
				delay = d.maxBackoff
			}
		} else {
			delay = d.interval
		}
	}
}

// DrainOnce claims one batch under row locks, publishes each row, and marks
// the acknowledged ones PROCESSED before committing. A publish failure stops
// the batch: rows already acknowledged commit as PROCESSED, the rest stay
// PENDING and are retried. A commit failure replays the whole batch, which is
// why consumers dedup.
func (d *Dispatcher) DrainOnce(ctx context.Context) error {
	tx, err := d.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	store := NewOutboxStore(tx)
	entries, err := store.LockPending(ctx, d.batchSize)
	if err != nil {
		return err
	}

	var publishErr error
	for _, entry := range entries {
		if err := d.publisher.PublishEvent(ctx, entry.Type, entry.Payload); err != nil {
			d.logger.Error("publish failed, leaving row pending", "event_id", entry.ID, "type", entry.Type, "error", err)
			publishErr = err
			break
		}
		if err := store.MarkProcessed(ctx, entry.ID); err != nil {
			return err
		}
		d.metrics.ObserveOutboxPublished(entry.Type)
		d.logger.Debug("outbox event published", "event_id", entry.ID, "type", entry.Type)
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return publishErr
}
