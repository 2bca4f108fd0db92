package ingestion

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"gopkg.in/yaml.v3"
)

// maxBankBytes caps a fetched question bank.
const maxBankBytes = 10 << 20

// bankFile is the on-disk shape of a question bank:
//
//	questions:
//	  - text: Explain the Go memory model.
//	    topic: concurrency
//	    difficulty: hard
type bankFile struct {
	Questions []QuestionInput `yaml:"questions"`
}

// ParseBank decodes a YAML question bank.
func ParseBank(data []byte) ([]QuestionInput, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("ingestion: parse question bank: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("ingestion: question bank has no questions")
	}
	return f.Questions, nil
}

// LoadFile reads and decodes a YAML question bank from disk.
func LoadFile(path string) ([]QuestionInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ingestion: read %s: %w", path, err)
	}
	return ParseBank(data)
}

// Fetch retrieves and decodes a YAML question bank over HTTP(S).
func (p *Pipeline) Fetch(ctx context.Context, url string) ([]QuestionInput, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: creating request: %w", err)
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)
	req.Header.Set("Accept", "application/yaml, text/yaml, text/plain")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingestion: http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingestion: unexpected status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBankBytes))
	if err != nil {
		return nil, fmt.Errorf("ingestion: reading body: %w", err)
	}
	return ParseBank(body)
}
