package notifications

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmelnik7/order-payments-platform/internal/events"
	"github.com/dmelnik7/order-payments-platform/internal/observability/metrics"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

// Notifier is the consumer's view of the hub.
type Notifier interface {
	Notify(orderID string, payload []byte) int
}

// OrderUpdate is the frame pushed to subscribed clients.
type OrderUpdate struct {
	Type      string `json:"type"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ResultsConsumer turns payment results into order_update frames. Results
// arriving with no subscriber are discarded — there is no historical replay
// for clients that subscribe after completion.
type ResultsConsumer struct {
	hub     Notifier
	logger  *logging.Logger
	metrics *metrics.PipelineMetrics
	now     func() time.Time
}

func NewResultsConsumer(hub Notifier, logger *logging.Logger) *ResultsConsumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &ResultsConsumer{hub: hub, logger: logger, now: time.Now}
}

func (c *ResultsConsumer) WithMetrics(m *metrics.PipelineMetrics) *ResultsConsumer {
	c.metrics = m
	return c
}

// Handle processes one payment.results delivery. Fan-out is in-memory only,
// so every parseable delivery is acked regardless of subscriber count.
func (c *ResultsConsumer) Handle(ctx context.Context, d amqp.Delivery) {
	var result events.PaymentResult
	if err := json.Unmarshal(d.Body, &result); err != nil {
		c.logger.Error("discarding malformed payment result", "error", err)
		_ = d.Ack(false)
		return
	}

	status := "CANCELLED"
	if result.Success {
		status = "FINISHED"
	}

	payload, _ := json.Marshal(OrderUpdate{
		Type:      "order_update",
		OrderID:   result.OrderID,
		Status:    status,
		Message:   result.Message,
		Timestamp: c.now().Unix(),
	})

	delivered := c.hub.Notify(result.OrderID, payload)
	for i := 0; i < delivered; i++ {
		c.metrics.ObserveNotificationSent()
	}
	c.logger.Debug("order update dispatched", "order_id", result.OrderID, "status", status, "subscribers", delivered)

	_ = d.Ack(false)
}
