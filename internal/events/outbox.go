package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutboxEvent is one row of outbox_events. Rows are written in the same
// transaction as the business change they describe and published later by
// the Dispatcher.
type OutboxEvent struct {
	ID        string
	Type      string
	Payload   json.RawMessage
	Status    string
	CreatedAt time.Time
}

// OutboxStore persists events for reliable delivery.
type OutboxStore struct {
	db DBTX
}

func NewOutboxStore(db DBTX) *OutboxStore {
	if db == nil {
		panic("events: db required")
	}
	return &OutboxStore{db: db}
}

// Insert records a pending event. Callers pass the transaction that carries
// the business change, which is the entire point of the outbox pattern.
func (s *OutboxStore) Insert(ctx context.Context, eventType string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("events: marshal payload: %w", err)
	}
	id := uuid.New().String()
	query := `
		INSERT INTO outbox_events (id, type, payload, status, created_at)
		VALUES ($1, $2, $3, $4, now())
	`
	if _, err := s.db.Exec(ctx, query, id, eventType, data, StatusPending); err != nil {
		return "", fmt.Errorf("events: insert outbox: %w", err)
	}
	return id, nil
}

// LockPending claims up to limit pending rows in created_at order. SKIP
// LOCKED lets multiple dispatcher instances poll the same table without
// blocking on each other's batches.
func (s *OutboxStore) LockPending(ctx context.Context, limit int32) ([]OutboxEvent, error) {
	query := `
		SELECT id, type, payload, status, created_at
		FROM outbox_events
		WHERE status = $1
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, StatusPending, limit)
	if err != nil {
		return nil, fmt.Errorf("events: lock pending: %w", err)
	}
	defer rows.Close()

	var entries []OutboxEvent
	for rows.Next() {
		var entry OutboxEvent
		var payload []byte
		if err := rows.Scan(&entry.ID, &entry.Type, &payload, &entry.Status, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("events: scan outbox: %w", err)
		}
		entry.Payload = append([]byte(nil), payload...)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// MarkProcessed flips a row to PROCESSED. Called only after the broker has
// acknowledged the publish, inside the transaction that locked the row.
func (s *OutboxStore) MarkProcessed(ctx context.Context, id string) error {
	query := `
		UPDATE outbox_events
		SET status = $1
		WHERE id = $2 AND status = $3
	`
	if _, err := s.db.Exec(ctx, query, StatusProcessed, id, StatusPending); err != nil {
		return fmt.Errorf("events: mark processed: %w", err)
	}
	return nil
}
