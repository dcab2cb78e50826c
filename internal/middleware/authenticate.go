package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/mealmates/backend/internal/auth"
	"github.com/mealmates/backend/internal/logging"
)

// TokenVerifier resolves an access token to the user it was issued for.
type TokenVerifier interface {
	Verify(accessToken string) (string, error)
}

// RequireUser rejects requests without a valid bearer token and stores the
// authenticated user id on the request context. metrics may be nil.
func RequireUser(verifier TokenVerifier, metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				metrics.AuthRejected("missing_token")
				unauthorized(w, `Bearer realm="mealmates"`)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				logging.FromContext(r.Context()).Warn("access token rejected", "error", err)
				metrics.AuthRejected("invalid_token")
				unauthorized(w, `Bearer realm="mealmates", error="invalid_token"`)
				return
			}

			ctx := auth.WithUserID(r.Context(), userID)
			ctx = logging.WithLogger(ctx, logging.FromContext(ctx).With("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BasicAuth guards next with a single username and password. An empty
// username disables the check.
func BasicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if username == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok ||
				subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
				subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
				unauthorized(w, `Basic realm="metrics"`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(w http.ResponseWriter, challenge string) {
	w.Header().Set("WWW-Authenticate", challenge)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"authentication required"}` + "\n"))
}
