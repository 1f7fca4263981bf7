package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InboxStore records consumed event ids so redeliveries become no-ops.
// The row id is the originating business identifier (the order id for
// payment requests), which bounds each event to one real execution.
type InboxStore struct {
	db DBTX
}

func NewInboxStore(db DBTX) *InboxStore {
	if db == nil {
		panic("events: db required")
	}
	return &InboxStore{db: db}
}

// Insert claims an event id. It returns false when a row with that id already
// exists; the caller must then treat the delivery as a duplicate. The losing
// delivery bumps retry_count so redelivery storms are visible in the table.
func (s *InboxStore) Insert(ctx context.Context, id, eventType string, payload []byte) (bool, error) {
	query := `
		INSERT INTO inbox_events (id, type, payload, status, processed_at, retry_count)
		VALUES ($1, $2, $3, $4, now(), 0)
		ON CONFLICT (id) DO NOTHING
		RETURNING id
	`
	var inserted string
	err := s.db.QueryRow(ctx, query, id, eventType, payload, StatusPending).Scan(&inserted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if _, err := s.db.Exec(ctx,
				`UPDATE inbox_events SET retry_count = retry_count + 1 WHERE id = $1`, id); err != nil {
				return false, fmt.Errorf("events: bump retry count: %w", err)
			}
			return false, nil
		}
		return false, fmt.Errorf("events: insert inbox: %w", err)
	}
	return true, nil
}

// SetStatus records the terminal outcome of handling the event.
func (s *InboxStore) SetStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE inbox_events
		SET status = $1, processed_at = now()
		WHERE id = $2
	`
	if _, err := s.db.Exec(ctx, query, status, id); err != nil {
		return fmt.Errorf("events: set inbox status: %w", err)
	}
	return nil
}
