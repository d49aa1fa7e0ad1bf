package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/akhmetov/payvault/internal/ledger"
	"github.com/akhmetov/payvault/internal/settlement"
	"github.com/akhmetov/payvault/internal/transport/httpapi/middleware"
	"github.com/akhmetov/payvault/internal/wallet"
)

// AdminHandler handles the approval workflow. All routes are gated by
// the admin role middleware.
type AdminHandler struct {
	engine *settlement.Service
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(engine *settlement.Service) *AdminHandler {
	return &AdminHandler{engine: engine}
}

// RejectRequest carries the rejection reason.
type RejectRequest struct {
	Reason string `json:"reason"`
}

// ListTransactions lists transactions across all users
// (GET /admin/transactions)
func (h *AdminHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var filter ledger.Filter
	applyListQuery(r, &filter)
	if v := r.URL.Query().Get("user_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			filter.UserID = &id
		}
	}

	page, err := h.engine.List(r.Context(), filter, paginationFromQuery(r))
	if err != nil {
		respondError(w, "failed to list transactions", http.StatusInternalServerError)
		return
	}

	respondJSON(w, toListResponse(page), http.StatusOK)
}

// ApproveTransaction settles a pending transaction
// (POST /admin/transactions/{id}/approve)
func (h *AdminHandler) ApproveTransaction(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Approve(r.Context(), txID, adminID)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			respondError(w, "transaction not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrInvalidStateTransition):
			respondError(w, "transaction is not pending", http.StatusConflict)
		case errors.Is(err, wallet.ErrInsufficientFunds):
			// The transaction stays pending; the admin may retry or reject.
			respondError(w, "insufficient funds", http.StatusUnprocessableEntity)
		default:
			respondError(w, "failed to approve transaction", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}

// RejectTransaction declines a pending transaction
// (POST /admin/transactions/{id}/reject)
func (h *AdminHandler) RejectTransaction(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	txID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, "invalid transaction id", http.StatusBadRequest)
		return
	}

	var req RejectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Reason == "" {
		respondError(w, "reason is required", http.StatusBadRequest)
		return
	}

	tx, err := h.engine.Reject(r.Context(), txID, adminID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrTransactionNotFound):
			respondError(w, "transaction not found", http.StatusNotFound)
		case errors.Is(err, ledger.ErrInvalidStateTransition):
			respondError(w, "transaction is not pending", http.StatusConflict)
		default:
			respondError(w, "failed to reject transaction", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, toTransactionResponse(tx), http.StatusOK)
}
