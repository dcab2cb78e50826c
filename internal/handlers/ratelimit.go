package handlers

import (
	"net"
	"net/http"
	"net/netip"
	"strings"

	"github.com/mealmates/backend/internal/middleware"
)

// throttled consumes one attempt of action for the caller's address and,
// once the budget is spent, answers 429 and reports true.
func throttled(w http.ResponseWriter, r *http.Request, limiter middleware.RateLimiter, action string) bool {
	if limiter == nil || limiter.Allow(action+":"+clientIP(r)) {
		return false
	}
	respondJSON(r.Context(), w, http.StatusTooManyRequests, map[string]string{"error": "too many " + action + " attempts"})
	return true
}

// clientIP prefers the first well-formed address in X-Forwarded-For and
// falls back to the connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if addr, err := netip.ParseAddr(strings.TrimSpace(first)); err == nil {
			return addr.String()
		}
	}

	remote := strings.TrimSpace(r.RemoteAddr)
	if host, _, err := net.SplitHostPort(remote); err == nil && host != "" {
		return host
	}
	return remote
}
