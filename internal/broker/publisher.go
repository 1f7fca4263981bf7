package broker

import (
	"context"
	"fmt"

	"github.com/dmelnik7/order-payments-platform/internal/events"
)

// EventPublisher maps outbox event types to broker destinations:
// payment requests go straight to the requests queue, payment results fan
// out to every bound consumer queue.
type EventPublisher struct {
	broker *Broker
}

func NewEventPublisher(b *Broker) *EventPublisher {
	return &EventPublisher{broker: b}
}

func (p *EventPublisher) PublishEvent(ctx context.Context, eventType string, payload []byte) error {
	switch eventType {
	case events.TypePaymentRequest:
		return p.broker.Publish(ctx, "", PaymentRequestsQueue, payload)
	case events.TypePaymentResult:
		return p.broker.Publish(ctx, PaymentResultsExchange, "", payload)
	default:
		return fmt.Errorf("broker: no destination for event type %s", eventType)
	}
}
