package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/logging"
)

// apiKeyHeader is the alternative to a Bearer token for scripted ingestion.
const apiKeyHeader = "X-API-Key"

// requireAPIKey guards the write routes with the configured API key. The key
// is accepted as "Authorization: Bearer <key>" or in the X-API-Key header.
// With no key configured the guard is a no-op (development mode; New logs a
// warning once).
//
// Rejections are 401 with a Bearer challenge and a JSON error body. Presented
// keys are never logged.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	if s.cfg.APIKey == "" {
		return next
	}
	want := []byte(s.cfg.APIKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := presentedKey(r)
		switch {
		case key == "":
			s.rejectAuth(w, r, "missing", `Bearer realm="prepai"`)
		case subtle.ConstantTimeCompare([]byte(key), want) != 1:
			s.rejectAuth(w, r, "invalid", `Bearer realm="prepai", error="invalid_token"`)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) rejectAuth(w http.ResponseWriter, r *http.Request, reason, challenge string) {
	s.metrics.authFailuresTotal.WithLabelValues(reason).Inc()
	logging.FromContext(r.Context()).Warn("auth: request rejected",
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
	)
	w.Header().Set("WWW-Authenticate", challenge)
	msg := "authorization required"
	if reason == "invalid" {
		msg = "invalid API key"
	}
	writeJSON(w, r, http.StatusUnauthorized, apperror.Response{Message: msg, Code: apperror.CodeUnauthorized})
}

// presentedKey returns the Bearer token, else the X-API-Key header, else "".
// A malformed Authorization header counts as absent.
func presentedKey(r *http.Request) string {
	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok && strings.EqualFold(scheme, "bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return strings.TrimSpace(r.Header.Get(apiKeyHeader))
}
