package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORS_Disabled(t *testing.T) {
	t.Parallel()
	h := corsMiddleware(nil, okHandler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_AllowList(t *testing.T) {
	t.Parallel()
	h := corsMiddleware([]string{"https://app.example"}, okHandler)

	req := httptest.NewRequest(http.MethodPost, "/jobs/parse", nil)
	req.Header.Set("Origin", "https://app.example")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "https://app.example", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodPost, "/jobs/parse", nil)
	req.Header.Set("Origin", "https://other.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_Preflight(t *testing.T) {
	t.Parallel()
	h := corsMiddleware([]string{"*"}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("preflight must not reach the handler")
	}))
	req := httptest.NewRequest(http.MethodOptions, "/jobs/parse", nil)
	req.Header.Set("Origin", "https://any.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_PreflightAllowsCredentialHeaders(t *testing.T) {
	t.Parallel()
	h := corsMiddleware([]string{"https://admin.example"}, okHandler)
	req := httptest.NewRequest(http.MethodOptions, "/questions", nil)
	req.Header.Set("Origin", "https://admin.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "content-type, x-api-key")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	allowed := strings.Split(w.Header().Get("Access-Control-Allow-Headers"), ", ")
	assert.Contains(t, allowed, "Authorization")
	assert.Contains(t, allowed, "X-API-Key")
}

func TestParseOrigins(t *testing.T) {
	t.Parallel()
	assert.Equal(t, []string{"https://a.example", "http://localhost:3000"},
		ParseOrigins(" https://a.example/ , ,http://localhost:3000"))
	assert.Nil(t, ParseOrigins(""))
}
