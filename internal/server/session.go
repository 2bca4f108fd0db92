package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/prepai-go/internal/logging"
)

const (
	// sessionCookieName carries the session id between requests.
	sessionCookieName = "prepai_session"

	// defaultSessionTTL is the session cookie max-age when none is configured.
	defaultSessionTTL = 60 * time.Second
)

type sessionKey struct{}

// sessionMiddleware resolves the caller's session id from the session cookie,
// issuing a fresh one when the cookie is missing or malformed, and refreshes
// the cookie's max-age on every response.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	maxAge := max(int(s.cfg.SessionTTL/time.Second), 1)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, issued := sessionID(r)

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    id,
			Path:     "/",
			MaxAge:   maxAge,
			HttpOnly: true,
			Secure:   s.cfg.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		log := logging.FromContext(r.Context()).With(slog.String("session_id", id))
		if issued {
			log.Debug("session: issued new session")
		}
		ctx := logging.WithLogger(r.Context(), log)
		ctx = context.WithValue(ctx, sessionKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// sessionID returns the session id from the request cookie, or a new one.
// The bool reports whether a new id was issued.
func sessionID(r *http.Request) (string, bool) {
	if c, err := r.Cookie(sessionCookieName); err == nil {
		if id, err := uuid.Parse(c.Value); err == nil {
			return id.String(), false
		}
	}
	return uuid.NewString(), true
}

// sessionFromContext returns the session id set by sessionMiddleware.
func sessionFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
