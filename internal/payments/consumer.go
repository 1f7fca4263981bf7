package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmelnik7/order-payments-platform/internal/events"
	"github.com/dmelnik7/order-payments-platform/internal/ledger"
	"github.com/dmelnik7/order-payments-platform/internal/observability/metrics"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

const (
	msgPaymentSuccessful = "Payment successful"
	msgPaymentFailed     = "Payment failed"
)

// TxBeginner is the slice of pgxpool.Pool the consumer needs.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Consumer drains payment.requests. Every delivery runs one transaction that
// claims the inbox row, attempts the debit, and enqueues the result in the
// outbox — so a crash at any point either replays the whole attempt (no row
// committed) or is suppressed by the dedup key (row committed).
type Consumer struct {
	db      TxBeginner
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
}

func NewConsumer(db TxBeginner, logger *logging.Logger) *Consumer {
	if db == nil {
		panic("payments: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{db: db, logger: logger}
}

func (c *Consumer) WithMetrics(m *metrics.PipelineMetrics) *Consumer {
	c.metrics = m
	return c
}

// Handle processes one delivery. Malformed payloads are acked and discarded.
// Transient errors leave the delivery unacknowledged; the broker redelivers
// and the inbox makes the retry idempotent.
func (c *Consumer) Handle(ctx context.Context, d amqp.Delivery) {
	var req events.PaymentRequest
	if err := json.Unmarshal(d.Body, &req); err != nil {
		c.logger.Error("discarding malformed payment request", "error", err)
		_ = d.Ack(false)
		return
	}

	if err := c.process(ctx, req, d.Body); err != nil {
		c.logger.Error("payment request failed, requeueing", "order_id", req.OrderID, "error", err)
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func (c *Consumer) process(ctx context.Context, req events.PaymentRequest, raw []byte) error {
	tx, err := c.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("payments: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	// The order id is the natural dedup key: each order produces exactly
	// one payment request.
	inbox := events.NewInboxStore(tx)
	inserted, err := inbox.Insert(ctx, req.OrderID, events.TypePaymentRequest, raw)
	if err != nil {
		return err
	}
	if !inserted {
		c.logger.Info("duplicate payment request suppressed", "order_id", req.OrderID)
		c.metrics.ObserveInboxDeduplicated()
		return tx.Commit(ctx)
	}

	ok, err := ledger.NewStore(tx).Debit(ctx, req.UserID, req.Amount)
	if err != nil {
		return err
	}

	status := events.StatusFailed
	message := msgPaymentFailed
	outcome := "failed"
	if ok {
		status = events.StatusProcessed
		message = msgPaymentSuccessful
		outcome = "success"
	}

	if err := inbox.SetStatus(ctx, req.OrderID, status); err != nil {
		return err
	}

	result := events.PaymentResult{
		OrderID: req.OrderID,
		UserID:  req.UserID,
		Success: ok,
		Message: message,
	}
	if _, err := events.NewOutboxStore(tx).Insert(ctx, events.TypePaymentResult, result); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("payments: commit: %w", err)
	}

	c.metrics.ObserveInboxProcessed(status)
	c.metrics.ObserveDebit(outcome)
	c.logger.Info("payment request handled", "order_id", req.OrderID, "user_id", req.UserID, "success", ok)
	return nil
}
