// Package ingestion adds interview questions to the corpus. Each question is
// embedded and inserted; bulk runs fan out with bounded concurrency and
// report one result per input. This pipeline backs both `prepai ingest` and
// the POST /questions endpoint.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/corpus"
	"github.com/54b3r/prepai-go/internal/vector"
)

// QuestionInput is one question to ingest.
type QuestionInput struct {
	Text       string `yaml:"text" json:"questionText"`
	Topic      string `yaml:"topic" json:"topic"`
	Difficulty string `yaml:"difficulty" json:"difficulty"`
}

// TextEmbedder turns text into a validated vector. *embedder.Validated
// satisfies it.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (vector.Vector, error)
}

// Config holds the configuration for the ingestion pipeline.
type Config struct {
	// Concurrency is the maximum number of questions embedded at once.
	// Defaults to 4 if zero.
	Concurrency int

	// HTTPTimeout is the timeout for fetching a remote question bank.
	// Defaults to 30s if zero.
	HTTPTimeout time.Duration

	// UserAgent is the HTTP User-Agent header sent with fetch requests.
	UserAgent string
}

// Result is the outcome of ingesting one input.
type Result struct {
	Input    QuestionInput
	Question corpus.Question
	Err      error
}

// Pipeline orchestrates the embed → insert flow.
type Pipeline struct {
	// embedder converts question text into embeddings.
	embedder TextEmbedder

	// store persists the embedded questions.
	store corpus.Store

	// cfg holds the resolved pipeline configuration.
	cfg *Config

	// httpClient is the HTTP client used for fetching remote question banks.
	httpClient *http.Client
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder TextEmbedder, store corpus.Store, cfg *Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	resolved := Config{}
	if cfg != nil {
		resolved = *cfg
	}
	if resolved.Concurrency <= 0 {
		resolved.Concurrency = 4
	}
	if resolved.HTTPTimeout <= 0 {
		resolved.HTTPTimeout = 30 * time.Second
	}
	if resolved.UserAgent == "" {
		resolved.UserAgent = "prepai-go/1.0 (question bank ingestion)"
	}

	return &Pipeline{
		embedder: embedder,
		store:    store,
		cfg:      &resolved,
		httpClient: &http.Client{
			Timeout: resolved.HTTPTimeout,
		},
	}, nil
}

// IngestOne embeds and stores a single question. Failures are returned with
// their classification: [apperror.ErrInvalidInput] for a blank question,
// [apperror.ErrEmbeddingUnavailable] or [apperror.ErrStoreUnavailable] for
// dependency failures.
func (p *Pipeline) IngestOne(ctx context.Context, in QuestionInput) (corpus.Question, error) {
	in = in.normalised()
	if in.Text == "" {
		return corpus.Question{}, fmt.Errorf("ingestion: question text is required: %w", apperror.ErrInvalidInput)
	}

	vec, err := p.embedder.EmbedText(ctx, in.Text)
	if err != nil {
		if !errors.Is(err, apperror.ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", apperror.ErrEmbeddingUnavailable, err)
		}
		return corpus.Question{}, fmt.Errorf("ingestion: embedding failed: %w", err)
	}

	q, err := p.store.Insert(ctx, corpus.NewQuestion{
		Text:       in.Text,
		Topic:      in.Topic,
		Difficulty: in.Difficulty,
		Embedding:  vec,
	})
	if err != nil {
		return corpus.Question{}, fmt.Errorf("ingestion: insert failed: %w", err)
	}
	return q, nil
}

// Ingest stores every input, running up to Config.Concurrency at a time. It
// returns one Result per input, in input order. progress, when non-nil, is
// called after each input completes and may be called concurrently.
func (p *Pipeline) Ingest(ctx context.Context, inputs []QuestionInput, progress func(Result)) []Result {
	results := make([]Result, len(inputs))

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for i, in := range inputs {
		g.Go(func() error {
			r := Result{Input: in}
			if err := ctx.Err(); err != nil {
				r.Err = fmt.Errorf("ingestion: %w", err)
			} else {
				r.Question, r.Err = p.IngestOne(ctx, in)
			}
			results[i] = r
			if progress != nil {
				progress(r)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// Summary counts successful and failed results.
func Summary(results []Result) (ok, failed int) {
	for _, r := range results {
		if r.Err != nil {
			failed++
			continue
		}
		ok++
	}
	return ok, failed
}

// Err joins every failure in results, or returns nil when all succeeded.
func Err(results []Result) error {
	var errs []error
	for i, r := range results {
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("question %d: %w", i+1, r.Err))
		}
	}
	return errors.Join(errs...)
}

func (in QuestionInput) normalised() QuestionInput {
	return QuestionInput{
		Text:       strings.TrimSpace(in.Text),
		Topic:      strings.TrimSpace(in.Topic),
		Difficulty: strings.TrimSpace(in.Difficulty),
	}
}
