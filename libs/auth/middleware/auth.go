package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/learnhub/backend/libs/auth/service"
)

type contextKey string

const identityKey contextKey = "identity"

// AccessTokenValidator verifies an access token and returns the caller identity
type AccessTokenValidator interface {
	ValidateAccessToken(token string) (service.Identity, error)
}

// AuthMiddleware validates the JWT access token and stores the caller identity in the request context
func AuthMiddleware(validator AccessTokenValidator) func(http.Handler) http.Handler {
	return RoleMiddleware(validator, service.RoleLearner)
}

// RoleMiddleware validates the JWT access token and checks that the caller's role is >= requiredRole
func RoleMiddleware(validator AccessTokenValidator, requiredRole int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractToken(r)
			if token == "" {
				writeError(w, http.StatusUnauthorized, "authentication required")
				return
			}

			identity, err := validator.ValidateAccessToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if identity.Role < requiredRole {
				writeError(w, http.StatusForbidden, "insufficient permissions")
				return
			}

			ctx := WithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractToken reads the bearer token from the Authorization header, falling back to the access_token cookie
func extractToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// WithIdentity returns a copy of ctx carrying the caller identity
func WithIdentity(ctx context.Context, identity service.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity retrieves the caller identity from context
func GetIdentity(ctx context.Context) (service.Identity, bool) {
	identity, ok := ctx.Value(identityKey).(service.Identity)
	return identity, ok
}

// GetUserID retrieves the user ID from context
func GetUserID(ctx context.Context) (int, bool) {
	identity, ok := GetIdentity(ctx)
	return identity.UserID, ok
}
