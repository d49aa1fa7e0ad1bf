// Package httpapi wires the HTTP surface: router, middleware chain and
// request handlers.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/akhmetov/payvault/internal/transport/httpapi/handler"
	"github.com/akhmetov/payvault/internal/transport/httpapi/middleware"
	"github.com/akhmetov/payvault/pkg/logger"
)

// Config holds router configuration
type Config struct {
	Logger             *logger.Logger
	AllowedOrigins     []string
	RateLimitRPS       float64
	RateLimitBurst     int
	AuthHandler        *handler.AuthHandler
	WalletHandler      *handler.WalletHandler
	TransactionHandler *handler.TransactionHandler
	AdminHandler       *handler.AdminHandler
	HealthHandler      *handler.HealthHandler
	JWTMiddleware      func(http.Handler) http.Handler
}

// NewRouter creates a new HTTP router
func NewRouter(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(chimiddleware.Compress(5))
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))

	// Health check endpoints (no authentication required)
	r.Get("/health", handler.GetHealth)
	r.Get("/health/live", handler.GetLiveness)
	if cfg.HealthHandler != nil {
		r.Get("/health/ready", cfg.HealthHandler.GetReadiness)
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (public - no authentication required)
		if cfg.AuthHandler != nil {
			r.Post("/auth/register", cfg.AuthHandler.Register)
			r.Post("/auth/login", cfg.AuthHandler.Login)
		}

		// Protected routes (require JWT authentication)
		if cfg.JWTMiddleware != nil {
			r.Group(func(r chi.Router) {
				r.Use(cfg.JWTMiddleware)

				// Wallet routes
				if cfg.WalletHandler != nil {
					r.Get("/wallets", cfg.WalletHandler.ListWallets)
					r.Get("/wallets/{currency}", cfg.WalletHandler.GetWallet)
					r.Put("/wallets/{currency}/default", cfg.WalletHandler.SetDefaultWallet)
				}

				// Transaction routes
				if cfg.TransactionHandler != nil {
					r.Post("/transactions", cfg.TransactionHandler.CreateTransaction)
					r.Get("/transactions", cfg.TransactionHandler.ListTransactions)
					r.Get("/transactions/{id}", cfg.TransactionHandler.GetTransaction)
					r.Post("/transactions/{id}/cancel", cfg.TransactionHandler.CancelTransaction)
				}

				// Admin approval workflow
				if cfg.AdminHandler != nil {
					r.Route("/admin", func(r chi.Router) {
						r.Use(middleware.RequireAdmin)
						r.Get("/transactions", cfg.AdminHandler.ListTransactions)
						r.Post("/transactions/{id}/approve", cfg.AdminHandler.ApproveTransaction)
						r.Post("/transactions/{id}/reject", cfg.AdminHandler.RejectTransaction)
					})
				}
			})
		}
	})

	return r
}
