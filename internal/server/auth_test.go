package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func authServer(key string) *Server {
	s := newTestServer()
	s.cfg.APIKey = key
	return s
}

func authRequest(headers map[string]string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/questions", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req
}

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name      string
		key       string
		headers   map[string]string
		want      int
		challenge string
	}{
		{"disabled", "", nil, http.StatusOK, ""},
		{"missing", "s3cret", nil, http.StatusUnauthorized, `Bearer realm="prepai"`},
		{"wrong bearer", "s3cret", map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, `Bearer realm="prepai", error="invalid_token"`},
		{"bearer", "s3cret", map[string]string{"Authorization": "Bearer s3cret"}, http.StatusOK, ""},
		{"lower-case scheme", "s3cret", map[string]string{"Authorization": "bearer s3cret"}, http.StatusOK, ""},
		{"api key header", "s3cret", map[string]string{"X-API-Key": "s3cret"}, http.StatusOK, ""},
		{"basic scheme", "s3cret", map[string]string{"Authorization": "Basic s3cret"}, http.StatusUnauthorized, `Bearer realm="prepai"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := httptest.NewRecorder()
			authServer(tt.key).requireAPIKey(okHandler).ServeHTTP(w, authRequest(tt.headers))
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.challenge, w.Header().Get("WWW-Authenticate"))
			if tt.want == http.StatusUnauthorized {
				assert.Contains(t, w.Body.String(), `"error_code":"unauthorized"`)
				assert.NotContains(t, w.Body.String(), "nope")
			}
		})
	}
}

func TestRequireAPIKey_CountsFailures(t *testing.T) {
	t.Parallel()
	s := authServer("k")
	h := s.requireAPIKey(okHandler)

	h.ServeHTTP(httptest.NewRecorder(), authRequest(nil))
	h.ServeHTTP(httptest.NewRecorder(), authRequest(map[string]string{"X-API-Key": "x"}))
	h.ServeHTTP(httptest.NewRecorder(), authRequest(map[string]string{"X-API-Key": "x"}))

	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.authFailuresTotal.WithLabelValues("missing")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.metrics.authFailuresTotal.WithLabelValues("invalid")))
}

func TestPresentedKey(t *testing.T) {
	t.Parallel()
	tests := []struct {
		headers map[string]string
		want    string
	}{
		{map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{map[string]string{"Authorization": "Bearer   spaced  "}, "spaced"},
		{map[string]string{"Authorization": "Bearer"}, ""},
		{map[string]string{"Authorization": "Token abc"}, ""},
		{map[string]string{"Authorization": "Bearer ", "X-API-Key": "fromheader"}, "fromheader"},
		{map[string]string{"Authorization": "Bearer first", "X-API-Key": "second"}, "first"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := presentedKey(authRequest(tt.headers)); got != tt.want {
			t.Errorf("presentedKey(%v) = %q, want %q", tt.headers, got, tt.want)
		}
	}
}
