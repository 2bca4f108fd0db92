package server

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/logging"
)

const (
	// defaultRateLimit is the sustained requests/second allowed per client on
	// the model-backed routes.
	defaultRateLimit = 10
	// defaultRateBurst is the per-client burst on the model-backed routes.
	defaultRateBurst = 20

	// clientIdleTTL is how long an idle client's bucket is kept.
	clientIdleTTL = 5 * time.Minute
	// clientSweepInterval is how often idle buckets are dropped.
	clientSweepInterval = time.Minute
)

// clientBucket is one client's token bucket.
type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter throttles the routes that reach the embedder or the chat model.
// Clients are keyed by remote IP; X-Forwarded-For is ignored because the
// header is client-controlled.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientBucket

	limit rate.Limit
	burst int
	now   func() time.Time

	// rejected counts 429s per handler. May be nil.
	rejected *prometheus.CounterVec

	stopOnce sync.Once
	done     chan struct{}
}

// newRateLimiter starts a limiter and its sweep goroutine. Call Stop to end
// the sweep.
func newRateLimiter(rps float64, burst int, rejected *prometheus.CounterVec) *rateLimiter {
	rl := &rateLimiter{
		clients:  make(map[string]*clientBucket),
		limit:    rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
		rejected: rejected,
		done:     make(chan struct{}),
	}
	go rl.sweepLoop()
	return rl
}

// Stop ends the sweep goroutine. It is safe to call more than once.
func (rl *rateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// wait takes a token for key. It returns zero when the request may proceed,
// otherwise how long the client should wait before retrying. A rejected
// request consumes nothing.
func (rl *rateLimiter) wait(key string) time.Duration {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[key] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if !res.OK() {
		return time.Second
	}
	delay := res.DelayFrom(now)
	if delay > 0 {
		res.CancelAt(now)
	}
	return delay
}

func (rl *rateLimiter) sweepLoop() {
	ticker := time.NewTicker(clientSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// sweep drops buckets idle for longer than clientIdleTTL and reports how many
// were removed.
func (rl *rateLimiter) sweep() int {
	cutoff := rl.now().Add(-clientIdleTTL)

	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	for key, b := range rl.clients {
		if b.lastSeen.Before(cutoff) {
			delete(rl.clients, key)
			removed++
		}
	}
	return removed
}

// middleware rejects over-limit requests to handler with 429, a Retry-After
// header in whole seconds and a JSON error body.
func (rl *rateLimiter) middleware(handler string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		delay := rl.wait(ip)
		if delay <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		if rl.rejected != nil {
			rl.rejected.WithLabelValues(handler).Inc()
		}
		logging.FromContext(r.Context()).Warn("rate limit exceeded",
			slog.String("ip", ip),
			slog.String("handler", handler),
			slog.Duration("retry_after", delay),
		)
		w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(delay.Seconds()))))
		writeJSON(w, r, http.StatusTooManyRequests, apperror.Response{
			Message: "rate limit exceeded",
			Code:    apperror.CodeRateLimited,
		})
	})
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
