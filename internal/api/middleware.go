package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pro804501/evaluateai-ai-backend/internal/storage"
)

// AuthMiddleware handles API token authentication
type AuthMiddleware struct {
	repo storage.Repository
}

// NewAuthMiddleware creates new auth middleware
func NewAuthMiddleware(repo storage.Repository) *AuthMiddleware {
	return &AuthMiddleware{repo: repo}
}

// Authenticate verifies the API token from the Authorization header.
// Supports "Bearer <token>" or a raw token in Authorization, and falls
// back to the X-API-Key header.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeAuthError(w, http.StatusUnauthorized, "missing token", "provide Authorization header with Bearer token or X-API-Key header")
			return
		}

		user, err := m.repo.GetUserByToken(r.Context(), token)
		if err != nil {
			slog.Error("failed to lookup user by token", "error", err, "token_prefix", maskToken(token))
			writeAuthError(w, http.StatusInternalServerError, "authentication error", "internal server error")
			return
		}

		if user == nil {
			slog.Warn("invalid token attempt", "token_prefix", maskToken(token), "remote_addr", r.RemoteAddr)
			writeAuthError(w, http.StatusUnauthorized, "invalid token", "the provided api token is not valid")
			return
		}

		slog.Debug("authenticated request", "user", user.ID, "token_prefix", user.MaskedToken())

		ctx := ContextWithUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin restricts a route to administrator accounts
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := UserFromContext(r.Context())
		if user == nil {
			writeAuthError(w, http.StatusUnauthorized, "not authenticated", "authentication required")
			return
		}

		if !user.IsAdmin() {
			slog.Warn("admin route denied", "user", user.ID, "role", user.Role)
			writeAuthError(w, http.StatusForbidden, "permission denied", "administrator role required")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// extractToken extracts the API token from request headers
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		if strings.HasPrefix(authHeader, "Bearer ") {
			return strings.TrimPrefix(authHeader, "Bearer ")
		}
		return authHeader
	}

	return r.Header.Get("X-API-Key")
}

// maskToken returns first 8 chars of a token for safe logging
func maskToken(token string) string {
	if len(token) < 8 {
		return "***"
	}
	return token[:8] + "..."
}

// AuthError represents an authentication error response
type AuthError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeAuthError writes JSON error response
func writeAuthError(w http.ResponseWriter, status int, error, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(AuthError{
		Error:   error,
		Message: message,
	})
}
