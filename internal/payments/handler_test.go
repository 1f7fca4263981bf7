package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmelnik7/order-payments-platform/internal/ledger"
)

type stubLedger struct {
	createFn  func(ctx context.Context, userID string) (*ledger.Account, error)
	depositFn func(ctx context.Context, userID string, amount decimal.Decimal) (*ledger.Account, error)
	getFn     func(ctx context.Context, userID string) (*ledger.Account, error)
}

func (s *stubLedger) CreateAccount(ctx context.Context, userID string) (*ledger.Account, error) {
	return s.createFn(ctx, userID)
}

func (s *stubLedger) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*ledger.Account, error) {
	return s.depositFn(ctx, userID, amount)
}

func (s *stubLedger) Get(ctx context.Context, userID string) (*ledger.Account, error) {
	return s.getFn(ctx, userID)
}

func serve(t *testing.T, l Ledger, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	NewRouter(NewHandler(l, nil), nil).ServeHTTP(rec, req)
	return rec
}

func TestCreateAccount_HTTP(t *testing.T) {
	l := &stubLedger{
		createFn: func(_ context.Context, userID string) (*ledger.Account, error) {
			return &ledger.Account{UserID: userID, Balance: decimal.Zero, Version: 0}, nil
		},
	}

	rec := serve(t, l, http.MethodPost, "/api/accounts", `{"user_id":"u1"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	var acct ledger.Account
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&acct))
	assert.Equal(t, "u1", acct.UserID)
	assert.True(t, acct.Balance.IsZero())
	assert.Equal(t, int32(0), acct.Version)
}

func TestCreateAccount_Duplicate(t *testing.T) {
	l := &stubLedger{
		createFn: func(context.Context, string) (*ledger.Account, error) {
			return nil, ledger.ErrAlreadyExists
		},
	}

	rec := serve(t, l, http.MethodPost, "/api/accounts", `{"user_id":"u1"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account already exists")
}

func TestCreateAccount_RequiresUserID(t *testing.T) {
	l := &stubLedger{
		createFn: func(context.Context, string) (*ledger.Account, error) {
			t.Fatal("ledger must not be called without user_id")
			return nil, nil
		},
	}

	rec := serve(t, l, http.MethodPost, "/api/accounts", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeposit_HTTP(t *testing.T) {
	l := &stubLedger{
		depositFn: func(_ context.Context, userID string, amount decimal.Decimal) (*ledger.Account, error) {
			return &ledger.Account{UserID: userID, Balance: amount, Version: 1}, nil
		},
	}

	rec := serve(t, l, http.MethodPost, "/api/accounts/u1/deposit", `{"amount":"100"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var acct ledger.Account
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&acct))
	assert.True(t, acct.Balance.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int32(1), acct.Version)
}

func TestDeposit_InvalidAmount(t *testing.T) {
	l := &stubLedger{
		depositFn: func(context.Context, string, decimal.Decimal) (*ledger.Account, error) {
			return nil, ledger.ErrInvalidAmount
		},
	}

	rec := serve(t, l, http.MethodPost, "/api/accounts/u1/deposit", `{"amount":"0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeposit_UnknownAccount(t *testing.T) {
	l := &stubLedger{
		depositFn: func(context.Context, string, decimal.Decimal) (*ledger.Account, error) {
			return nil, ledger.ErrNotFound
		},
	}

	rec := serve(t, l, http.MethodPost, "/api/accounts/ghost/deposit", `{"amount":"10"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Account not found")
}

func TestGetBalance_HTTP(t *testing.T) {
	l := &stubLedger{
		getFn: func(_ context.Context, userID string) (*ledger.Account, error) {
			return &ledger.Account{UserID: userID, Balance: decimal.RequireFromString("42.50"), Version: 7}, nil
		},
	}

	rec := serve(t, l, http.MethodGet, "/api/accounts/u1/balance", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		UserID  string          `json:"user_id"`
		Balance decimal.Decimal `json:"balance"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "u1", resp.UserID)
	assert.True(t, resp.Balance.Equal(decimal.RequireFromString("42.50")))
}

func TestGetBalance_NotFound(t *testing.T) {
	l := &stubLedger{
		getFn: func(context.Context, string) (*ledger.Account, error) {
			return nil, ledger.ErrNotFound
		},
	}

	rec := serve(t, l, http.MethodGet, "/api/accounts/ghost/balance", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
