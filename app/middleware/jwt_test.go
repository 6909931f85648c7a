package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/medicore/hospital-portal/app/models"
	"github.com/medicore/hospital-portal/app/services"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
JWT middleware test cases:
1) Missing Authorization header → 401
2) Non-Bearer Authorization header → 401
3) Invalid token → 401
4) Expired token → 401, next never called, no session state touched
5) Revoked token (blacklisted JTI) → 401
6) Valid token injects user_id, role, name, and raw token, and calls next
7) RequireRoles allows a matching role
8) RequireRoles answers 401 (not 403) on a role mismatch
*/

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestJWTAuth_MissingHeader(t *testing.T) {
	rdb := newTestRedis(t)
	mw := JWTAuth(rdb)

	req := httptest.NewRequest("GET", "/protected", nil)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTAuth_NonBearerHeader(t *testing.T) {
	rdb := newTestRedis(t)
	mw := JWTAuth(rdb)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Token abc")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTAuth_InvalidToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	rdb := newTestRedis(t)
	mw := JWTAuth(rdb)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTAuth_ExpiredToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	rdb := newTestRedis(t)
	mw := JWTAuth(rdb)

	// Mint a token that expired an hour ago, signed with the right secret.
	now := time.Now()
	claims := services.AccessClaims{
		UserID: 1,
		Role:   models.RolePatient,
		Name:   "Test Patient",
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now.Add(-2 * time.Hour)),
			ExpiresAt: jwt.NewNumericDate(now.Add(-time.Hour)),
			ID:        "expired-jti",
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("supersecret"))
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	nextCalled := false
	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		nextCalled = true
	})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, nextCalled)

	// Rejection must not touch session state
	keys, err := rdb.Keys(context.Background(), "*").Result()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestJWTAuth_BlacklistedToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	rdb := newTestRedis(t)
	mw := JWTAuth(rdb)

	token, err := services.GenerateAccessToken(1, models.RoleDoctor, "Dr. Lee")
	require.NoError(t, err)

	// Blacklist the token by JTI
	err = services.BlacklistAccessToken(context.Background(), rdb, token)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	mw(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestJWTAuth_ValidTokenSetsContext(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	rdb := newTestRedis(t)
	mw := JWTAuth(rdb)

	token, err := services.GenerateAccessToken(123, models.RoleAdmin, "Admin User")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	var capturedUserID int64
	var capturedRole, capturedName, capturedToken string

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		capturedRole, _ = RoleFromContext(r.Context())
		capturedName, _ = NameFromContext(r.Context())
		capturedToken, _ = AccessTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	mw(next).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, int64(123), capturedUserID)
	assert.Equal(t, models.RoleAdmin, capturedRole)
	assert.Equal(t, "Admin User", capturedName)
	assert.Equal(t, token, capturedToken)
}

func TestRequireRoles_AllowsAllowedRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	rdb := newTestRedis(t)
	token, err := services.GenerateAccessToken(10, models.RoleAdmin, "Admin User")
	require.NoError(t, err)

	chain := JWTAuth(rdb)(RequireRoles(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	chain.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireRoles_MismatchAnswers401(t *testing.T) {
	t.Setenv("JWT_SECRET", "supersecret")
	rdb := newTestRedis(t)
	token, err := services.GenerateAccessToken(10, models.RolePatient, "Test Patient")
	require.NoError(t, err)

	chain := JWTAuth(rdb)(RequireRoles(models.RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()

	chain.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
