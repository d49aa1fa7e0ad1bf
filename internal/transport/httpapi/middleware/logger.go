package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/akhmetov/payvault/pkg/logger"
)

// accessWriter wraps chi's WrapResponseWriter and keeps the body of
// failed responses so the error message lands in the access log entry.
type accessWriter struct {
	chimiddleware.WrapResponseWriter
	errBody bytes.Buffer
}

func (a *accessWriter) Write(b []byte) (int, error) {
	if a.Status() >= 400 {
		a.errBody.Write(b)
	}
	return a.WrapResponseWriter.Write(b)
}

// errorMessage pulls the "error" field out of a JSON error body.
func errorMessage(body []byte) string {
	var obj struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &obj) == nil && obj.Error != "" {
		return obj.Error
	}
	return ""
}

// Logger logs one line per request: method, matched chi route, status,
// bytes and duration, with the request id carried through the logger's
// context key so downstream log lines correlate.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		fn := func(w http.ResponseWriter, r *http.Request) {
			aw := &accessWriter{WrapResponseWriter: chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)}
			start := time.Now()

			if reqID := chimiddleware.GetReqID(r.Context()); reqID != "" {
				r = r.WithContext(context.WithValue(r.Context(), logger.RequestIDKey, reqID))
			}

			defer func() {
				attrs := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", aw.Status(),
					"bytes", aw.BytesWritten(),
					"duration_ms", time.Since(start).Milliseconds(),
				}
				// The RouteContext is shared with the mux, so the matched
				// pattern is available once routing has happened.
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						attrs = append(attrs, "route", pattern)
					}
				}
				if msg := errorMessage(aw.errBody.Bytes()); msg != "" {
					attrs = append(attrs, "error", msg)
				}

				entry := log.WithContext(r.Context())
				switch {
				case aw.Status() >= 500:
					entry.Error("http request", attrs...)
				case aw.Status() >= 400:
					entry.Warn("http request", attrs...)
				default:
					entry.Info("http request", attrs...)
				}
			}()

			next.ServeHTTP(aw, r)
		}
		return http.HandlerFunc(fn)
	}
}
