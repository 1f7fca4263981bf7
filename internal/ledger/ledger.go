package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyExists = errors.New("ledger: account already exists")
	ErrNotFound      = errors.New("ledger: account not found")
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
)

// Account is one row of accounts. version increases by exactly one with
// every balance mutation and backs the optimistic debit check.
type Account struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
	Version int32           `json:"version"`
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx. Debits run inside the inbox
// consumer's transaction; HTTP reads and deposits run on the pool.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the account ledger.
type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	if db == nil {
		panic("ledger: db required")
	}
	return &Store{db: db}
}

// CreateAccount opens an account with zero balance and version 0.
func (s *Store) CreateAccount(ctx context.Context, userID string) (*Account, error) {
	query := `
		INSERT INTO accounts (user_id, balance, version)
		VALUES ($1, 0, 0)
		RETURNING user_id, balance, version
	`
	acct, err := scanAccount(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("ledger: create account: %w", err)
	}
	return acct, nil
}

// Get loads an account by user id.
func (s *Store) Get(ctx context.Context, userID string) (*Account, error) {
	query := `SELECT user_id, balance, version FROM accounts WHERE user_id = $1`
	acct, err := scanAccount(s.db.QueryRow(ctx, query, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: get account: %w", err)
	}
	return acct, nil
}

// Deposit adds funds in a single statement. No version precondition is
// needed: the increment commutes with concurrent mutations, but the version
// still advances so debits observe the change.
func (s *Store) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*Account, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	query := `
		UPDATE accounts
		SET balance = balance + $1, version = version + 1
		WHERE user_id = $2
		RETURNING user_id, balance, version
	`
	acct, err := scanAccount(s.db.QueryRow(ctx, query, amount.String(), userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ledger: deposit: %w", err)
	}
	return acct, nil
}

// Debit attempts an optimistic-concurrency withdrawal. It reads the current
// version, then updates only if the balance still covers the amount and no
// concurrent writer advanced the version. The funds check is fused into the
// same predicate, so there is no window between check and update.
//
// A false return means insufficient funds or a lost race; the caller treats
// both as a failed payment and must not retry here — a redelivered payment
// request is suppressed by the inbox dedup key.
func (s *Store) Debit(ctx context.Context, userID string, amount decimal.Decimal) (bool, error) {
	if !amount.IsPositive() {
		return false, nil
	}

	acct, err := s.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	query := `
		UPDATE accounts
		SET balance = balance - $1, version = version + 1
		WHERE user_id = $2 AND balance >= $3 AND version = $4
		RETURNING user_id, balance, version
	`
	if _, err := scanAccount(s.db.QueryRow(ctx, query, amount.String(), userID, amount.String(), acct.Version)); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("ledger: debit: %w", err)
	}
	return true, nil
}

func scanAccount(row pgx.Row) (*Account, error) {
	var acct Account
	var balance pgtype.Numeric
	if err := row.Scan(&acct.UserID, &balance, &acct.Version); err != nil {
		return nil, err
	}
	acct.Balance = decimalFromNumeric(balance)
	return &acct, nil
}

func decimalFromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid || n.NaN || n.Int == nil {
		return decimal.Decimal{}
	}
	return decimal.NewFromBigInt(n.Int, n.Exp)
}
