package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type fakeAcker struct {
	acked  bool
	nacked bool
}

func (a *fakeAcker) Ack(uint64, bool) error        { a.acked = true; return nil }
func (a *fakeAcker) Nack(uint64, bool, bool) error { a.nacked = true; return nil }
func (a *fakeAcker) Reject(uint64, bool) error     { return nil }

type recordingHub struct {
	orderID string
	payload []byte
	result  int
}

func (h *recordingHub) Notify(orderID string, payload []byte) int {
	h.orderID = orderID
	h.payload = payload
	return h.result
}

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
}

func TestHandleBuildsOrderUpdateFrame(t *testing.T) {
	hub := &recordingHub{result: 1}
	acker := &fakeAcker{}
	c := NewResultsConsumer(hub, nil)
	c.now = fixedNow

	body := `{"order_id":"o1","user_id":"u1","success":true,"message":"Payment successful"}`
	c.Handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(body)})

	if hub.orderID != "o1" {
		t.Fatalf("unexpected order id %q", hub.orderID)
	}
	var frame OrderUpdate
	if err := json.Unmarshal(hub.payload, &frame); err != nil {
		t.Fatalf("malformed frame: %v", err)
	}
	want := OrderUpdate{
		Type:      "order_update",
		OrderID:   "o1",
		Status:    "FINISHED",
		Message:   "Payment successful",
		Timestamp: fixedNow().Unix(),
	}
	if frame != want {
		t.Fatalf("unexpected frame %+v, want %+v", frame, want)
	}
	if !acker.acked {
		t.Fatal("expected ack")
	}
}

func TestHandleFailureMapsToCancelled(t *testing.T) {
	hub := &recordingHub{}
	acker := &fakeAcker{}
	c := NewResultsConsumer(hub, nil)
	c.now = fixedNow

	body := `{"order_id":"o2","user_id":"u1","success":false,"message":"Insufficient funds"}`
	c.Handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(body)})

	var frame OrderUpdate
	if err := json.Unmarshal(hub.payload, &frame); err != nil {
		t.Fatalf("malformed frame: %v", err)
	}
	if frame.Status != "CANCELLED" || frame.Message != "Insufficient funds" {
		t.Fatalf("unexpected frame %+v", frame)
	}
}

// No subscriber means the update is discarded, and the delivery is still
// acked: there is no buffering for late subscribers.
func TestHandleNoSubscribersStillAcks(t *testing.T) {
	hub := &recordingHub{result: 0}
	acker := &fakeAcker{}
	c := NewResultsConsumer(hub, nil)

	body := `{"order_id":"o3","success":true}`
	c.Handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(body)})

	if !acker.acked || acker.nacked {
		t.Fatalf("expected ack, got acked=%v nacked=%v", acker.acked, acker.nacked)
	}
}

func TestHandleMalformedResultDropped(t *testing.T) {
	hub := &recordingHub{}
	acker := &fakeAcker{}
	c := NewResultsConsumer(hub, nil)

	c.Handle(context.Background(), amqp.Delivery{Acknowledger: acker, Body: []byte(`{broken`)})

	if hub.orderID != "" {
		t.Fatal("hub must not be called for malformed payloads")
	}
	if !acker.acked {
		t.Fatal("expected poison message to be acked")
	}
}
