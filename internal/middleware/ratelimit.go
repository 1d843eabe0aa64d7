package middleware

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"

	"chatstream/internal/ratelimit"
)

// BurstLimitMiddleware guards an endpoint against rapid-fire requests.
// Authenticated requests are keyed by user id, anonymous ones by client
// address. This is independent of the daily message quota, which is checked
// inside the handler.
func BurstLimitMiddleware(limiter *ratelimit.MemoryLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := clientIdentifier(r)

			allowed, info := limiter.Allow(identifier)
			if !allowed {
				log.Printf("[BurstLimit] Blocked request from %s", identifier)
				if info.RetryAfter > 0 {
					w.Header().Set("Retry-After", fmt.Sprintf("%.0f", info.RetryAfter.Seconds()))
				}
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error":      "too_many_requests",
					"message":    "Too many requests. Please slow down.",
					"retryAfter": int(info.RetryAfter.Seconds()),
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientIdentifier(r *http.Request) string {
	if userID, ok := UserIDFrom(r.Context()); ok {
		return fmt.Sprintf("user:%d", userID)
	}
	return "addr:" + clientIP(r)
}

// clientIP extracts the originating address, honoring proxy headers.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
