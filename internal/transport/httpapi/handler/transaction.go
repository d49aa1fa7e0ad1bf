package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/rate"
	"github.com/akhmetov/payvault/internal/settlement"
	"github.com/akhmetov/payvault/internal/transport/httpapi/middleware"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/money"
)

// TransactionHandler handles transaction-related HTTP requests
type TransactionHandler struct {
	engine *settlement.Service
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(engine *settlement.Service) *TransactionHandler {
	return &TransactionHandler{engine: engine}
}

// CreateTransactionRequest represents the transaction creation request body
type CreateTransactionRequest struct {
	Type           string        `json:"type"`
	Method         string        `json:"method"`
	Amount         string        `json:"amount"`
	Currency       string        `json:"currency"`
	ToCurrency     string        `json:"to_currency,omitempty"`
	CounterpartyID *uuid.UUID    `json:"counterparty_id,omitempty"`
	Detail         ledger.Detail `json:"detail,omitempty"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID             string        `json:"id"`
	Reference      string        `json:"reference"`
	Type           string        `json:"type"`
	Method         string        `json:"method"`
	Status         string        `json:"status"`
	Amount         string        `json:"amount"`
	Currency       string        `json:"currency"`
	FeeTotal       string        `json:"fee_total"`
	CounterpartyID *uuid.UUID    `json:"counterparty_id,omitempty"`
	Detail         ledger.Detail `json:"detail"`
	ApprovedBy     *uuid.UUID    `json:"approved_by,omitempty"`
	ApprovedAt     *time.Time    `json:"approved_at,omitempty"`
	FailureReason  *string       `json:"failure_reason,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ListTransactionsResponse is one page of transactions.
type ListTransactionsResponse struct {
	Items  []TransactionResponse `json:"items"`
	Total  int64                 `json:"total"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

func toTransactionResponse(tx *ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:             tx.ID.String(),
		Reference:      tx.Reference,
		Type:           string(tx.Type),
		Method:         string(tx.Method),
		Status:         string(tx.Status),
		Amount:         money.Format(tx.Amount, tx.Currency),
		Currency:       tx.Currency,
		FeeTotal:       money.Format(tx.Fee.Total, tx.Currency),
		CounterpartyID: tx.CounterpartyID,
		Detail:         tx.Detail,
		ApprovedBy:     tx.ApprovedBy,
		ApprovedAt:     tx.ApprovedAt,
		FailureReason:  tx.FailureReason,
		CreatedAt:      tx.CreatedAt,
	}
}

// CreateTransaction records a money-movement intent (POST /transactions)
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount, err := money.Parse(req.Amount)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Create(r.Context(), settlement.CreateInput{
		UserID:         userID,
		Type:           ledger.Type(req.Type),
		Method:         ledger.Method(req.Method),
		Amount:         amount,
		Currency:       req.Currency,
		ToCurrency:     req.ToCurrency,
		CounterpartyID: req.CounterpartyID,
		Detail:         req.Detail,
	})
	if err != nil {
		respondCreateError(w, err)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusCreated)
}

func respondCreateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidType),
		errors.Is(err, ledger.ErrInvalidMethod),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInvalidDetail),
		errors.Is(err, ledger.ErrMissingCounterparty),
		errors.Is(err, settlement.ErrSelfCounterparty),
		errors.Is(err, settlement.ErrSameCurrency),
		errors.Is(err, wallet.ErrUnsupportedCurrency):
		respondError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, wallet.ErrInsufficientFunds):
		respondError(w, "insufficient funds", http.StatusUnprocessableEntity)
	case errors.Is(err, rate.ErrRateUnavailable):
		respondError(w, "exchange rate unavailable", http.StatusServiceUnavailable)
	default:
		respondError(w, "failed to create transaction", http.StatusInternalServerError)
	}
}

// ListTransactions returns the caller's transactions (GET /transactions)
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	filter := ledger.Filter{UserID: &userID}
	applyListQuery(r, &filter)

	page, err := h.engine.List(r.Context(), filter, paginationFromQuery(r))
	if err != nil {
		respondError(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, toListResponse(page), http.StatusOK)
}

// GetTransaction returns one of the caller's transactions (GET /transactions/{id})
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.GetForUser(r.Context(), txID, userID)
	if err != nil {
		// Not-owned reads 404 so transaction ids cannot be probed.
		if errors.Is(err, ledger.ErrTransactionNotFound) || errors.Is(err, settlement.ErrNotOwner) {
			respondError(w, "transaction not found", http.StatusNotFound)
			return
		}
		respondError(w, "failed to get transaction", http.StatusInternalServerError)
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// CancelTransaction cancels the caller's own pending transaction
// (POST /transactions/{id}/cancel)
func (h *TransactionHandler) CancelTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Cancel(r.Context(), txID, userID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound), errors.Is(err, settlement.ErrNotOwner):
			respondError(w, "transaction not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrInvalidStateTransition):
			respondError(w, "transaction is not pending", http.StatusConflict)
		default:
			respondError(w, "failed to cancel transaction", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// applyListQuery maps supported query params onto the filter.
func applyListQuery(r *http.Request, filter *ledger.Filter) {
	q := r.URL.Query()

	if v := q.Get("type"); v != "" {
		typ := ledger.Type(v)
		filter.Type = &typ
	}
	if v := q.Get("status"); v != "" {
		status := ledger.Status(v)
		filter.Status = &status
	}
	if v := q.Get("currency"); v != "" {
		cur := v
		filter.Currency = &cur
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.From = &t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.To = &t
		}
	}
}

func paginationFromQuery(r *http.Request) ledger.Pagination {
	var page ledger.Pagination
	q := r.URL.Query()
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		page.Limit = v
	}
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		page.Offset = v
	}
	return page
}

func toListResponse(page *ledger.Page) ListTransactionsResponse {
	items := make([]TransactionResponse, 0, len(page.Items))
	for _, tx := range page.Items {
		items = append(items, toTransactionResponse(tx))
	}
	return ListTransactionsResponse{
		Items:  items,
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
}
