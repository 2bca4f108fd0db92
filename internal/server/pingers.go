package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// funcPinger adapts a ping function to the Pinger interface.
type funcPinger struct {
	name string
	fn   func(ctx context.Context) error
}

// NewPinger returns a Pinger named name that calls fn. Corpus stores and the
// SQLite recency tracker expose a Ping method that fits directly.
func NewPinger(name string, fn func(ctx context.Context) error) Pinger {
	return &funcPinger{name: name, fn: fn}
}

// Name returns the dependency label used in readiness responses.
func (p *funcPinger) Name() string { return p.name }

// Ping calls the wrapped function.
func (p *funcPinger) Ping(ctx context.Context) error { return p.fn(ctx) }

// OllamaPinger probes an Ollama instance via GET /api/tags, which lists
// local models without loading one, so readiness checks cost no tokens.
type OllamaPinger struct {
	// host is the Ollama base URL, e.g. http://localhost:11434.
	host string
	// client is the HTTP client used for the probe.
	client *http.Client
}

// NewOllamaPinger constructs an OllamaPinger for host.
func NewOllamaPinger(host string) *OllamaPinger {
	return &OllamaPinger{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns the dependency label used in readiness responses.
func (p *OllamaPinger) Name() string { return "ollama" }

// Ping returns nil when Ollama answers /api/tags with 200.
func (p *OllamaPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}
