package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/dmelnik7/order-payments-platform/internal/ledger"
	"github.com/dmelnik7/order-payments-platform/pkg/logging"
)

// Ledger is the handler's view of the account store.
type Ledger interface {
	CreateAccount(ctx context.Context, userID string) (*ledger.Account, error)
	Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*ledger.Account, error)
	Get(ctx context.Context, userID string) (*ledger.Account, error)
}

// Handler handles HTTP requests for accounts
type Handler struct {
	ledger Ledger
	logger *logging.Logger
}

func NewHandler(l Ledger, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{ledger: l, logger: logger}
}

// NewRouter wires the payments HTTP surface.
func NewRouter(h *Handler, metricsHandler http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler)
	}
	r.Route("/api/accounts", func(r chi.Router) {
		r.Post("/", h.CreateAccount)
		r.Post("/{userID}/deposit", h.Deposit)
		r.Get("/{userID}/balance", h.GetBalance)
	})
	return r
}

type createAccountRequest struct {
	UserID string `json:"user_id"`
}

// CreateAccount handles POST /api/accounts
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	acct, err := h.ledger.CreateAccount(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, ledger.ErrAlreadyExists) {
			writeError(w, http.StatusBadRequest, "Account already exists")
			return
		}
		h.logger.Error("failed to create account", "error", err, "user_id", req.UserID)
		writeError(w, http.StatusInternalServerError, "failed to create account")
		return
	}

	writeJSON(w, http.StatusCreated, acct)
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit handles POST /api/accounts/{userID}/deposit
func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req depositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	acct, err := h.ledger.Deposit(r.Context(), userID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			writeError(w, http.StatusBadRequest, "amount must be positive")
		case errors.Is(err, ledger.ErrNotFound):
			writeError(w, http.StatusNotFound, "Account not found")
		default:
			h.logger.Error("failed to deposit", "error", err, "user_id", userID)
			writeError(w, http.StatusInternalServerError, "failed to deposit")
		}
		return
	}

	writeJSON(w, http.StatusOK, acct)
}

type balanceResponse struct {
	UserID  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// GetBalance handles GET /api/accounts/{userID}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	acct, err := h.ledger.Get(r.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Account not found")
			return
		}
		h.logger.Error("failed to load account", "error", err, "user_id", userID)
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{UserID: acct.UserID, Balance: acct.Balance})
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
