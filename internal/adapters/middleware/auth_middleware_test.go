package middleware_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IANDYI/labour-care-service/internal/adapters/middleware"
	"github.com/IANDYI/labour-care-service/internal/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return privateKey, &privateKey.PublicKey
}

func createTestToken(t *testing.T, privateKey *rsa.PrivateKey, claims jwt.MapClaims) string {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	tokenString, err := token.SignedString(privateKey)
	require.NoError(t, err)
	return tokenString
}

func newTestMiddleware(t *testing.T) (*middleware.AuthMiddleware, *rsa.PrivateKey) {
	privateKey, publicKey := generateTestKeyPair(t)
	mw := middleware.NewAuthMiddleware(publicKey, logger.Discard())
	t.Cleanup(mw.Stop)
	return mw, privateKey
}

func roleToken(t *testing.T, privateKey *rsa.PrivateKey, role string) string {
	return createTestToken(t, privateKey, jwt.MapClaims{
		"sub":  "user123",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
		"jti":  "jti-" + role,
	})
}

func TestAuthMiddleware_GetClaimsFromCacheOrParse_ValidToken(t *testing.T) {
	mw, privateKey := newTestMiddleware(t)
	tokenString := roleToken(t, privateKey, "MIDWIFE")

	claims, jti, err := mw.GetClaimsFromCacheOrParse(tokenString)
	require.NoError(t, err)
	assert.Equal(t, "jti-MIDWIFE", jti)
	assert.Equal(t, "user123", claims["sub"])

	// Second call is served from the cache
	cached, cachedJTI, err := mw.GetClaimsFromCacheOrParse(tokenString)
	require.NoError(t, err)
	assert.Equal(t, jti, cachedJTI)
	assert.Equal(t, claims["role"], cached["role"])
}

func TestAuthMiddleware_GetClaimsFromCacheOrParse_ExpiredToken(t *testing.T) {
	mw, privateKey := newTestMiddleware(t)
	tokenString := createTestToken(t, privateKey, jwt.MapClaims{
		"sub":  "user123",
		"role": "ADMIN",
		"exp":  time.Now().Add(-time.Hour).Unix(),
		"jti":  "expired",
	})

	_, _, err := mw.GetClaimsFromCacheOrParse(tokenString)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestAuthMiddleware_GetClaimsFromCacheOrParse_WrongKey(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	otherKey, _ := generateTestKeyPair(t)

	_, _, err := mw.GetClaimsFromCacheOrParse(roleToken(t, otherKey, "ADMIN"))
	assert.Error(t, err)

	_, _, err = mw.GetClaimsFromCacheOrParse("invalid-token")
	assert.Error(t, err)
}

func TestAuthMiddleware_Authenticate(t *testing.T) {
	mw, privateKey := newTestMiddleware(t)
	tokenString := createTestToken(t, privateKey, jwt.MapClaims{
		"sub":        "user123",
		"role":       "MIDWIFE",
		"first_name": "Daw",
		"last_name":  "Mya",
		"exp":        time.Now().Add(time.Hour).Unix(),
		"jti":        "named",
	})

	identity, err := mw.Authenticate(tokenString)
	require.NoError(t, err)
	assert.Equal(t, middleware.Identity{UserID: "user123", Role: "MIDWIFE", Name: "Daw Mya"}, identity)
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	mw, privateKey := newTestMiddleware(t)
	tokenString := roleToken(t, privateKey, "TMO")

	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserID(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "user123", userID)

		role, ok := middleware.GetRole(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "TMO", role)

		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tokenString)
	w := httptest.NewRecorder()

	handler(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuthMiddleware_RequireAuth_Rejects(t *testing.T) {
	mw, _ := newTestMiddleware(t)
	handler := mw.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	for _, header := range []string{"", "Basic abc", "Bearer not-a-jwt"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()

		handler(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, "header %q", header)
	}
}

func TestAuthMiddleware_RequireAnyRole(t *testing.T) {
	mw, privateKey := newTestMiddleware(t)
	handler := mw.RequireAnyRole([]string{"ADMIN", "MIDWIFE"}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		role string
		code int
	}{
		{"ADMIN", http.StatusOK},
		{"MIDWIFE", http.StatusOK},
		{"TMO", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+roleToken(t, privateKey, tt.role))
			w := httptest.NewRecorder()

			handler(w, req)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestAuthMiddleware_RequireRole(t *testing.T) {
	mw, privateKey := newTestMiddleware(t)
	handler := mw.RequireRole("ADMIN", func(w http.ResponseWriter, r *http.Request) {
		t.Error("Handler should not be called")
	})

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	req.Header.Set("Authorization", "Bearer "+roleToken(t, privateKey, "MIDWIFE"))
	w := httptest.NewRecorder()

	handler(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestContextHelpers(t *testing.T) {
	ctx := middleware.WithIdentity(context.Background(), middleware.Identity{UserID: "u1", Role: "ADMIN", Name: "Admin"})

	userID, ok := middleware.GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", userID)
	name, ok := middleware.GetUserName(ctx)
	assert.True(t, ok)
	assert.Equal(t, "Admin", name)
	assert.True(t, middleware.IsAdmin(ctx))

	_, ok = middleware.GetRole(context.Background())
	assert.False(t, ok)
	assert.False(t, middleware.IsAdmin(context.WithValue(context.Background(), middleware.RoleKey, "MIDWIFE")))
}

func TestBearerToken(t *testing.T) {
	token, ok := middleware.BearerToken("Bearer abc.def")
	assert.True(t, ok)
	assert.Equal(t, "abc.def", token)

	_, ok = middleware.BearerToken("abc.def")
	assert.False(t, ok)
}

func TestMetricsMiddleware_SetsRequestID(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /patients/{patient_id}", func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, logger.RequestIDFromContext(r.Context()))
		w.WriteHeader(http.StatusTeapot)
	})
	handler := middleware.MetricsMiddleware(logger.Discard(), mux)

	req := httptest.NewRequest(http.MethodGet, "/patients/123", nil)
	req.Header.Set("X-Request-ID", "req-1")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Equal(t, "req-1", w.Header().Get("X-Request-ID"))
}
