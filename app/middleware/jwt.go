package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/medicore/hospital-portal/app/services"
	"github.com/redis/go-redis/v9"
)

type ctxKey string

const (
	ctxUserID ctxKey = "userID"
	ctxRole   ctxKey = "role"
	ctxName   ctxKey = "name"
	ctxToken  ctxKey = "accessToken"
)

// JWTAuth creates middleware that validates JWT access tokens and injects user info into context.
// The raw bearer token is also stored so downstream calls can forward it.
func JWTAuth(rdb *redis.Client) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
				http.Error(w, "missing or invalid authorization header", http.StatusUnauthorized)
				return
			}

			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := services.ValidateAccessToken(r.Context(), rdb, tokenStr)
			if err != nil {
				http.Error(w, "invalid or revoked token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ctxUserID, claims.UserID)
			ctx = context.WithValue(ctx, ctxRole, claims.Role)
			ctx = context.WithValue(ctx, ctxName, claims.Name)
			ctx = context.WithValue(ctx, ctxToken, tokenStr)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFromContext retrieves user ID set by JWTAuth middleware.
func UserIDFromContext(ctx context.Context) (int64, bool) {
	val := ctx.Value(ctxUserID)
	if v, ok := val.(int64); ok {
		return v, true
	}
	return 0, false
}

// RoleFromContext retrieves the role set by JWTAuth middleware.
func RoleFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(ctxRole)
	if v, ok := val.(string); ok {
		return v, true
	}
	return "", false
}

// NameFromContext retrieves the display name set by JWTAuth middleware.
func NameFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(ctxName)
	if v, ok := val.(string); ok {
		return v, true
	}
	return "", false
}

// AccessTokenFromContext retrieves the raw bearer token set by JWTAuth middleware.
func AccessTokenFromContext(ctx context.Context) (string, bool) {
	val := ctx.Value(ctxToken)
	if v, ok := val.(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// RequireRoles enforces that the caller's role is in the allowed list. A
// mismatch answers 401, not 403: the portal sends mis-roled users back to
// login rather than showing a forbidden page.
func RequireRoles(allowed ...string) func(http.Handler) http.Handler {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := RoleFromContext(r.Context())
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			if _, ok := allowedSet[role]; !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
