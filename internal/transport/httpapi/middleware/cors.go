package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS restricts browser clients to the configured origins. The API
// authenticates with bearer tokens, not cookies, so credentialed
// requests are disallowed. X-Request-ID is exposed so frontends can
// quote it in support reports.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-Request-ID",
		},
		ExposedHeaders: []string{
			"X-Request-ID",
		},
		AllowCredentials: false,
		MaxAge:           600,
	})
}
