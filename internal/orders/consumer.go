package orders

import (
	"context"
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmelnik7/order-payments-platform/internal/events"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

// StatusUpdater is the consumer's view of the order service.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, orderID, status string) error
}

// ResultsConsumer applies payment results to order rows: success finishes
// the order, failure cancels it. Status transitions are idempotent, so
// broker redeliveries are harmless.
type ResultsConsumer struct {
	svc    StatusUpdater
	logger *logging.Logger
}

func NewResultsConsumer(svc StatusUpdater, logger *logging.Logger) *ResultsConsumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &ResultsConsumer{svc: svc, logger: logger}
}

// Handle processes one payment.results delivery. Malformed payloads are
// acked and dropped; transient database errors leave the delivery
// unacknowledged so the broker redelivers it.
func (c *ResultsConsumer) Handle(ctx context.Context, d amqp.Delivery) {
	var result events.PaymentResult
	if err := json.Unmarshal(d.Body, &result); err != nil {
		c.logger.Error("discarding malformed payment result", "error", err)
		_ = d.Ack(false)
		return
	}

	status := StatusCancelled
	if result.Success {
		status = StatusFinished
	}

	err := c.svc.UpdateStatus(ctx, result.OrderID, status)
	switch {
	case err == nil:
		_ = d.Ack(false)
	case errors.Is(err, ErrNotFound):
		c.logger.Warn("payment result for unknown order", "order_id", result.OrderID)
		_ = d.Ack(false)
	case errors.Is(err, ErrIllegalTransition):
		// Redelivery cannot fix a conflicting terminal status; keep the ack.
		c.logger.Error("conflicting payment result", "order_id", result.OrderID, "status", status, "error", err)
		_ = d.Ack(false)
	default:
		c.logger.Error("failed to apply payment result, requeueing", "order_id", result.OrderID, "error", err)
		_ = d.Nack(false, true)
	}
}
