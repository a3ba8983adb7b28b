package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsRequest(t *testing.T, origins []string, method, origin string, preflight bool) *httptest.ResponseRecorder {
	t.Helper()
	called := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(method, "/api/conversations", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	if preflight {
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	}
	rec := httptest.NewRecorder()
	CORS(origins)(handler).ServeHTTP(rec, req)

	if preflight {
		assert.False(t, called, "preflight must not reach the handler")
	} else {
		assert.True(t, called, "request must reach the handler")
	}
	return rec
}

func TestCORSAllowsListedOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"https://clinic.example"}, http.MethodGet, "https://clinic.example", false)

	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Org-Id")
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Request-Id")
	assert.Equal(t, "Origin", rec.Header().Get("Vary"))
}

func TestCORSDeniesUnknownOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"https://clinic.example"}, http.MethodGet, "https://evil.example", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSAllowsAnyOrigin(t *testing.T) {
	rec := corsRequest(t, []string{"*"}, http.MethodGet, "https://random.example", false)
	assert.Equal(t, "https://random.example", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSWildcardSubdomain(t *testing.T) {
	origins := []string{"https://*.curaemr.io"}

	rec := corsRequest(t, origins, http.MethodGet, "https://app.curaemr.io", false)
	assert.Equal(t, "https://app.curaemr.io", rec.Header().Get("Access-Control-Allow-Origin"))

	// The bare apex and nested subdomains do not match a one-level wildcard.
	rec = corsRequest(t, origins, http.MethodGet, "https://curaemr.io", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	rec = corsRequest(t, origins, http.MethodGet, "https://deep.app.curaemr.io", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	// Scheme is part of the pattern.
	rec = corsRequest(t, origins, http.MethodGet, "http://app.curaemr.io", false)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSHandlesPreflight(t *testing.T) {
	rec := corsRequest(t, []string{"https://clinic.example"}, http.MethodOptions, "https://clinic.example", true)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://clinic.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
