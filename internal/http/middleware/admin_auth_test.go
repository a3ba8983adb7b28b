package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func adminToken(t *testing.T, secret string, method jwt.SigningMethod, claims AdminClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func adminRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/admin/stats/daily", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func freshClaims(role string) AdminClaims {
	return AdminClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(5 * time.Minute)),
		},
	}
}

func TestAdminJWTValidToken(t *testing.T) {
	mw := AdminJWT("secret")
	var gotRole string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := AdminClaimsFromContext(r.Context())
		require.True(t, ok, "expected claims in context")
		gotRole = claims.Role
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, adminRequest(adminToken(t, "secret", jwt.SigningMethodHS256, freshClaims("admin"))))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", gotRole)
}

func TestAdminJWTRejections(t *testing.T) {
	mw := AdminJWT("secret")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	tests := []struct {
		name  string
		token string
	}{
		{"missing header", ""},
		{"wrong secret", adminToken(t, "other", jwt.SigningMethodHS256, freshClaims("admin"))},
		{"wrong method", adminToken(t, "secret", jwt.SigningMethodHS512, freshClaims("admin"))},
		{"expired", adminToken(t, "secret", jwt.SigningMethodHS256, AdminClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			},
		})},
		{"no expiry", adminToken(t, "secret", jwt.SigningMethodHS256, AdminClaims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"},
		})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, adminRequest(tt.token))
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestAdminJWTWithoutSecret(t *testing.T) {
	mw := AdminJWT("")
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be reached")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, adminRequest(adminToken(t, "", jwt.SigningMethodHS256, freshClaims("admin"))))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
