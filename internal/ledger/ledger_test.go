package ledger

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
)

func numeric(units int64, exp int32) pgtype.Numeric {
	return pgtype.Numeric{Int: big.NewInt(units), Exp: exp, Valid: true}
}

func accountRows(userID string, balance pgtype.Numeric, version int32) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"user_id", "balance", "version"}).
		AddRow(userID, balance, version)
}

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	t.Cleanup(mock.Close)
	return mock
}

func TestCreateAccount(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("u1").
		WillReturnRows(accountRows("u1", numeric(0, 0), 0))

	acct, err := store.CreateAccount(context.Background(), "u1")
	if err != nil {
		t.Fatalf("create account failed: %v", err)
	}
	if !acct.Balance.IsZero() || acct.Version != 0 {
		t.Fatalf("expected fresh account, got %+v", acct)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreateAccountDuplicate(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("INSERT INTO accounts").
		WithArgs("u1").
		WillReturnError(&pgconn.PgError{Code: "23505"})

	if _, err := store.CreateAccount(context.Background(), "u1"); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGetNotFound(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("SELECT user_id, balance, version FROM accounts").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	if _, err := store.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDepositRejectsNonPositive(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	if _, err := store.Deposit(context.Background(), "u1", decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := store.Deposit(context.Background(), "u1", decimal.NewFromInt(-5)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestDepositIncrementsVersion(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("UPDATE accounts").
		WithArgs("25.5", "u1").
		WillReturnRows(accountRows("u1", numeric(255, -1), 3))

	acct, err := store.Deposit(context.Background(), "u1", decimal.RequireFromString("25.5"))
	if err != nil {
		t.Fatalf("deposit failed: %v", err)
	}
	if !acct.Balance.Equal(decimal.RequireFromString("25.5")) {
		t.Fatalf("unexpected balance %s", acct.Balance)
	}
	if acct.Version != 3 {
		t.Fatalf("unexpected version %d", acct.Version)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestDebitSuccess(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("SELECT user_id, balance, version FROM accounts").
		WithArgs("u1").
		WillReturnRows(accountRows("u1", numeric(100, 0), 2))
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("40", "u1", "40", int32(2)).
		WillReturnRows(accountRows("u1", numeric(60, 0), 3))

	ok, err := store.Debit(context.Background(), "u1", decimal.NewFromInt(40))
	if err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if !ok {
		t.Fatal("expected debit to succeed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

// Amount equal to the balance must pass: the CAS predicate uses >=.
func TestDebitExactBalance(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("SELECT user_id, balance, version FROM accounts").
		WithArgs("u1").
		WillReturnRows(accountRows("u1", numeric(100, 0), 0))
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("100", "u1", "100", int32(0)).
		WillReturnRows(accountRows("u1", numeric(0, 0), 1))

	ok, err := store.Debit(context.Background(), "u1", decimal.NewFromInt(100))
	if err != nil || !ok {
		t.Fatalf("expected exact-balance debit to succeed, ok=%v err=%v", ok, err)
	}
}

// Zero rows back from the CAS means insufficient funds or a lost version
// race; both surface as a clean false with no error.
func TestDebitConflictOrInsufficient(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("SELECT user_id, balance, version FROM accounts").
		WithArgs("u2").
		WillReturnRows(accountRows("u2", numeric(10, 0), 7))
	mock.ExpectQuery("UPDATE accounts").
		WithArgs("50", "u2", "50", int32(7)).
		WillReturnError(pgx.ErrNoRows)

	ok, err := store.Debit(context.Background(), "u2", decimal.NewFromInt(50))
	if err != nil {
		t.Fatalf("debit returned error: %v", err)
	}
	if ok {
		t.Fatal("expected debit to fail")
	}
}

func TestDebitUnknownAccount(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	mock.ExpectQuery("SELECT user_id, balance, version FROM accounts").
		WithArgs("ghost").
		WillReturnError(pgx.ErrNoRows)

	ok, err := store.Debit(context.Background(), "ghost", decimal.NewFromInt(5))
	if err != nil || ok {
		t.Fatalf("expected clean failure for unknown account, ok=%v err=%v", ok, err)
	}
}

func TestDebitNonPositiveAmount(t *testing.T) {
	mock := newMock(t)
	store := NewStore(mock)

	ok, err := store.Debit(context.Background(), "u1", decimal.Zero)
	if err != nil || ok {
		t.Fatalf("expected zero amount to fail without touching the db, ok=%v err=%v", ok, err)
	}
}
