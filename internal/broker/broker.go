package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

// Queue and exchange names shared by every service in the pipeline.
//
// payment.requests is a plain durable queue with a single consumer group
// (the payments service). payment.results fans out to one durable queue per
// interested service: the orders service flips order status, the
// notifications service pushes frames to subscribed websocket clients.
const (
	PaymentRequestsQueue = "payment.requests"

	PaymentResultsExchange           = "payment.results"
	PaymentResultsOrdersQueue        = "payment.results.orders"
	PaymentResultsNotificationsQueue = "payment.results.notifications"
)

// Broker wraps an AMQP connection and the channel used for publishing.
// Channels are not safe for concurrent use; consumers open their own.
type Broker struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	logger *logging.Logger
}

// Connect dials RabbitMQ and declares the pipeline topology. Declarations are
// idempotent, so every service declares everything it touches at startup.
func Connect(url string, logger *logging.Logger) (*Broker, error) {
	if logger == nil {
		logger = logging.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: connect: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("broker: open channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &Broker{conn: conn, ch: ch, logger: logger}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if _, err := ch.QueueDeclare(PaymentRequestsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare %s: %w", PaymentRequestsQueue, err)
	}

	if err := ch.ExchangeDeclare(PaymentResultsExchange, "fanout", true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare exchange %s: %w", PaymentResultsExchange, err)
	}

	for _, queue := range []string{PaymentResultsOrdersQueue, PaymentResultsNotificationsQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("broker: declare %s: %w", queue, err)
		}
		if err := ch.QueueBind(queue, "", PaymentResultsExchange, false, nil); err != nil {
			return fmt.Errorf("broker: bind %s: %w", queue, err)
		}
	}

	return nil
}

// Close shuts the publish channel before the connection.
func (b *Broker) Close() error {
	if err := b.ch.Close(); err != nil {
		b.conn.Close()
		return err
	}
	return b.conn.Close()
}

// Publish sends a persistent JSON message. An empty exchange publishes
// directly to the queue named by key.
func (b *Broker) Publish(ctx context.Context, exchange, key string, body []byte) error {
	err := b.ch.PublishWithContext(ctx, exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("broker: publish to %s/%s: %w", exchange, key, err)
	}
	return nil
}

// Handler processes one delivery. The handler owns the ack decision:
// it must Ack, Nack, or Reject the delivery before returning.
type Handler func(ctx context.Context, d amqp.Delivery)

// Consume opens a dedicated channel for the queue and dispatches deliveries
// to the handler until ctx is cancelled or the delivery stream closes.
// Manual acks with prefetch 1 keep redelivery semantics predictable.
func (b *Broker) Consume(ctx context.Context, queue string, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("broker: open consumer channel: %w", err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("broker: set qos: %w", err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %s: %w", queue, err)
	}

	b.logger.Info("consuming", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("broker: delivery stream for %s closed", queue)
			}
			handler(ctx, d)
		}
	}
}
