package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/akhmetov/payvault/internal/transport/httpapi/middleware"
	"github.com/akhmetov/payvault/internal/wallet"
	"github.com/akhmetov/payvault/pkg/money"
)

// WalletHandler handles wallet-related HTTP requests
type WalletHandler struct {
	wallets *wallet.Service
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(wallets *wallet.Service) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// WalletResponse represents a wallet in API responses
type WalletResponse struct {
	ID         string    `json:"id"`
	Currency   string    `json:"currency"`
	Balance    string    `json:"balance"`
	IsDefault  bool      `json:"is_default"`
	IsActive   bool      `json:"is_active"`
	LastAction time.Time `json:"last_action"`
	CreatedAt  time.Time `json:"created_at"`
}

func toWalletResponse(w *wallet.Wallet) WalletResponse {
	return WalletResponse{
		ID:         w.ID.String(),
		Currency:   w.Currency,
		Balance:    money.Format(w.Balance, w.Currency),
		IsDefault:  w.IsDefault,
		IsActive:   w.IsActive,
		LastAction: w.LastAction,
		CreatedAt:  w.CreatedAt,
	}
}

// ListWallets returns all of the caller's wallets, provisioning any
// catalog currency not yet touched (GET /wallets)
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	wallets, err := h.wallets.List(r.Context(), userID)
	if err != nil {
		respondError(w, "failed to list wallets", http.StatusInternalServerError)
		return
	}

	resp := make([]WalletResponse, 0, len(wallets))
	for _, wl := range wallets {
		resp = append(resp, toWalletResponse(wl))
	}
	respondJSON(w, resp, http.StatusOK)
}

// GetWallet returns the caller's wallet for one currency (GET /wallets/{currency})
func (h *WalletHandler) GetWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	currency := chi.URLParam(r, "currency")
	wl, err := h.wallets.Get(r.Context(), userID, currency)
	if err != nil {
		switch {
		case errors.Is(err, wallet.ErrUnsupportedCurrency):
			respondError(w, "unsupported currency", http.StatusBadRequest)
		case errors.Is(err, wallet.ErrWalletNotFound):
			respondError(w, "wallet not found", http.StatusNotFound)
		default:
			respondError(w, "failed to get wallet", http.StatusInternalServerError)
		}
		return
	}

	respondJSON(w, toWalletResponse(wl), http.StatusOK)
}

// SetDefaultWallet marks the caller's wallet for a currency as the default
// (PUT /wallets/{currency}/default)
func (h *WalletHandler) SetDefaultWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		respondError(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	currency := chi.URLParam(r, "currency")
	wl, err := h.wallets.GetOrCreate(r.Context(), userID, currency)
	if err != nil {
		if errors.Is(err, wallet.ErrUnsupportedCurrency) {
			respondError(w, "unsupported currency", http.StatusBadRequest)
			return
		}
		respondError(w, "failed to get wallet", http.StatusInternalServerError)
		return
	}

	if err := h.wallets.SetDefault(r.Context(), userID, wl.ID); err != nil {
		respondError(w, "failed to set default wallet", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
