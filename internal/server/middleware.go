package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/54b3r/prepai-go/internal/logging"
)

// requestIDHeader carries the correlation id in both directions.
const requestIDHeader = "X-Request-ID"

// quietPaths are logged at debug level; probes and scrapes would otherwise
// drown the access log.
var quietPaths = map[string]bool{
	"/api/health": true,
	"/api/ready":  true,
	"/metrics":    true,
}

// requestLogger assigns every request a correlation id (an inbound UUID
// X-Request-ID is kept, anything else is replaced), puts a logger carrying it
// into the request context and writes one access log line per request. The
// line's level follows the status: error for 5xx, warn for 4xx.
func requestLogger(base *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)

		log := base.With(slog.String("request_id", reqID))
		r = r.WithContext(logging.WithLogger(r.Context(), log))

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rw, r)

		level := slog.LevelInfo
		switch {
		case rw.status >= http.StatusInternalServerError:
			level = slog.LevelError
		case rw.status >= http.StatusBadRequest:
			level = slog.LevelWarn
		case quietPaths[r.URL.Path]:
			level = slog.LevelDebug
		}
		log.Log(r.Context(), level, "request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			slog.Int64("bytes", rw.bytes),
			slog.String("remote_ip", clientIP(r)),
			slog.Duration("duration", time.Since(start)),
		)
	})
}

// responseWriter records the status and body size written by a handler.
type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

// WriteHeader records the first status code written.
func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// Write counts body bytes.
func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += int64(n)
	return n, err
}

// Unwrap exposes the underlying writer to [http.ResponseController].
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
