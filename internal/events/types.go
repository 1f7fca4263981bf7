package events

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// Event type tags stored in outbox_events/inbox_events rows.
const (
	TypePaymentRequest = "PAYMENT_REQUEST"
	TypePaymentResult  = "PAYMENT_RESULT"
)

// Row statuses. Outbox rows move PENDING -> PROCESSED exactly once and are
// never deleted. Inbox rows additionally record FAILED for terminal payment
// failures.
const (
	StatusPending   = "PENDING"
	StatusProcessed = "PROCESSED"
	StatusFailed    = "FAILED"
)

// PaymentRequest asks the payments service to debit a user for one order.
type PaymentRequest struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Amount  decimal.Decimal `json:"amount"`
}

// PaymentResult reports the terminal outcome of a payment attempt.
type PaymentResult struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx, so stores can run standalone
// or inside a caller-owned transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
