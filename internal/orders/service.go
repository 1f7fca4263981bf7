package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/dmelnik7/order-payments-platform/internal/events"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

var (
	ErrInvalidInput      = errors.New("orders: invalid input")
	ErrNotFound          = errors.New("orders: order not found")
	ErrIllegalTransition = errors.New("orders: illegal status transition")
)

// Order statuses. An order starts NEW and moves to exactly one terminal
// status in reaction to a payment result.
const (
	StatusNew       = "NEW"
	StatusFinished  = "FINISHED"
	StatusCancelled = "CANCELLED"
)

type Order struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
	Status      string          `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// DB is the slice of pgxpool.Pool the service needs.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Service is the order writer.
type Service struct {
	db     DB
	logger *logging.Logger
}

func NewService(db DB, logger *logging.Logger) *Service {
	if db == nil {
		panic("orders: db required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{db: db, logger: logger}
}

// Create inserts the order and its PAYMENT_REQUEST outbox row in one
// transaction, so the request is published iff the order exists.
func (s *Service) Create(ctx context.Context, userID string, amount decimal.Decimal, description string) (*Order, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user_id is required", ErrInvalidInput)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	order := &Order{
		ID:          uuid.New().String(),
		UserID:      userID,
		Amount:      amount,
		Description: description,
		Status:      StatusNew,
		CreatedAt:   time.Now().UTC().Truncate(time.Second),
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("orders: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO orders (id, user_id, amount, description, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.Exec(ctx, query,
		order.ID, order.UserID, order.Amount.String(), order.Description, order.Status, order.CreatedAt); err != nil {
		return nil, fmt.Errorf("orders: insert order: %w", err)
	}

	request := events.PaymentRequest{
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.Amount,
	}
	if _, err := events.NewOutboxStore(tx).Insert(ctx, events.TypePaymentRequest, request); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("orders: commit: %w", err)
	}

	s.logger.Info("order created", "order_id", order.ID, "user_id", order.UserID)
	return order, nil
}

// Get loads one order by id.
func (s *Service) Get(ctx context.Context, orderID string) (*Order, error) {
	query := `
		SELECT id, user_id, amount, description, status, created_at
		FROM orders WHERE id = $1
	`
	order, err := scanOrder(s.db.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("orders: get: %w", err)
	}
	return order, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*Order, error) {
	query := `
		SELECT id, user_id, amount, description, status, created_at
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("orders: list: %w", err)
	}
	defer rows.Close()

	orders := []*Order{}
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("orders: scan: %w", err)
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

// UpdateStatus applies NEW -> FINISHED or NEW -> CANCELLED. Repeating an
// already-applied terminal status is a silent no-op; anything else is
// ErrIllegalTransition. Only payment results drive this.
func (s *Service) UpdateStatus(ctx context.Context, orderID, status string) error {
	if status != StatusFinished && status != StatusCancelled {
		return fmt.Errorf("%w: %s", ErrIllegalTransition, status)
	}

	ct, err := s.db.Exec(ctx,
		`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
		status, orderID, StatusNew)
	if err != nil {
		return fmt.Errorf("orders: update status: %w", err)
	}
	if ct.RowsAffected() == 1 {
		s.logger.Info("order status updated", "order_id", orderID, "status", status)
		return nil
	}

	// Nothing matched: the order is missing or already terminal.
	var current string
	if err := s.db.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1`, orderID).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("orders: read status: %w", err)
	}
	if current == status {
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, current, status)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanOrder(row scannable) (*Order, error) {
	var order Order
	var amount pgtype.Numeric
	var description pgtype.Text
	if err := row.Scan(&order.ID, &order.UserID, &amount, &description, &order.Status, &order.CreatedAt); err != nil {
		return nil, err
	}
	order.Amount = decimalFromNumeric(amount)
	order.Description = description.String
	return &order, nil
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
