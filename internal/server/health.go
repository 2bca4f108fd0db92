package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/prepai-go/internal/logging"
)

// probeTimeout bounds each dependency probe so /api/ready answers quickly
// when a dependency hangs.
const probeTimeout = 5 * time.Second

// Pinger reports whether one dependency is reachable. Implementations must be
// safe for concurrent use.
type Pinger interface {
	// Ping returns nil when the dependency is healthy.
	Ping(ctx context.Context) error

	// Name is the label used in readiness output and metrics
	// (e.g. "corpus", "sessions", "ollama").
	Name() string
}

// MultiPinger probes several dependencies at once.
type MultiPinger struct {
	pingers []Pinger
}

// NewMultiPinger constructs a MultiPinger from the provided list of Pingers.
func NewMultiPinger(pingers ...Pinger) *MultiPinger {
	return &MultiPinger{pingers: pingers}
}

// Ping probes every dependency concurrently and joins the failures, each
// prefixed with its dependency name, in registration order.
func (m *MultiPinger) Ping(ctx context.Context) error {
	errs := make([]error, len(m.pingers))
	var g errgroup.Group
	for i, p := range m.pingers {
		g.Go(func() error {
			if err := p.Ping(ctx); err != nil {
				errs[i] = fmt.Errorf("%s: %w", p.Name(), err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Name returns a combined label for logging purposes.
func (m *MultiPinger) Name() string { return "multi" }

// readyCheck is one dependency's probe result.
type readyCheck struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// readyResponse is the JSON body returned by GET /api/ready.
type readyResponse struct {
	// Ready is true only when every probe succeeded.
	Ready  bool         `json:"ready"`
	Checks []readyCheck `json:"checks"`
}

// probe runs every registered pinger concurrently, each under probeTimeout,
// and returns the results in registration order.
func (s *Server) probe(ctx context.Context) readyResponse {
	checks := make([]readyCheck, len(s.pingers))
	var g errgroup.Group
	for i, p := range s.pingers {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			defer cancel()

			start := time.Now()
			err := p.Ping(pctx)
			checks[i] = readyCheck{
				Name:      p.Name(),
				OK:        err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				checks[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	resp := readyResponse{Ready: true, Checks: checks}
	for _, c := range checks {
		if !c.OK {
			resp.Ready = false
		}
	}
	return resp
}

// handleReady handles GET /api/ready. It answers 200 when every dependency
// is reachable and 503 otherwise, and records each result in the
// dependency_up gauge. With no pingers registered it always answers 200.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	resp := s.probe(r.Context())
	for _, c := range resp.Checks {
		up := 0.0
		if c.OK {
			up = 1
		} else {
			log.Warn("readiness probe failed",
				slog.String("dependency", c.Name),
				slog.String("error", c.Error),
				slog.Int64("latency_ms", c.LatencyMS),
			)
		}
		s.metrics.dependencyUp.WithLabelValues(c.Name).Set(up)
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, resp)
}
