package ratelimit

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nichedotsol/agentex/internal/model"
)

// KeyFunc extracts the rate-limit key from a request. Returning "" skips
// limiting for that request.
type KeyFunc func(*http.Request) string

// RequestIDFunc extracts the request ID for the error envelope.
type RequestIDFunc func(*http.Request) string

// IPKeyFunc keys requests by client IP, dropping the port from RemoteAddr.
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Middleware enforces the limiter on every request. Limiter errors fail
// open: the request proceeds and the error is logged.
func Middleware(limiter Limiter, keyFunc KeyFunc, reqID RequestIDFunc, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter error, allowing request", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				writeLimited(w, reqID(r))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeLimited(w http.ResponseWriter, requestID string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "1")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(model.APIError{
		Error: model.ErrorDetail{
			Code:    model.ErrCodeRateLimited,
			Message: "too many requests",
		},
		Meta: model.ResponseMeta{
			RequestID: requestID,
			Timestamp: time.Now().UTC(),
		},
	})
}
