// Package recommend picks the next interview question for a session: it
// embeds a job description, finds the closest question in the corpus that the
// session has not seen recently, and records it in the session's recency
// window.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/corpus"
	"github.com/54b3r/prepai-go/internal/logging"
	"github.com/54b3r/prepai-go/internal/recency"
	"github.com/54b3r/prepai-go/internal/vector"
)

const (
	// DefaultEmbedTimeout bounds a single embedding call.
	DefaultEmbedTimeout = 30 * time.Second
	// DefaultStoreTimeout bounds a single corpus or tracker call.
	DefaultStoreTimeout = 5 * time.Second
	// DefaultSimilarK is the result count for [Engine.Similar] when k <= 0.
	DefaultSimilarK = 5
)

// TextEmbedder turns text into a validated vector. *embedder.Validated
// satisfies it.
type TextEmbedder interface {
	EmbedText(ctx context.Context, text string) (vector.Vector, error)
}

// Extractor reduces a job description before it is embedded.
type Extractor interface {
	Extract(ctx context.Context, description string) (string, error)
}

// Config wires an Engine to its collaborators.
type Config struct {
	Embedder TextEmbedder
	Corpus   corpus.Store
	Recency  recency.Tracker

	// Extractor is optional. When set, its output is embedded instead of the
	// raw description; failures fall back to the raw description.
	Extractor Extractor

	EmbedTimeout time.Duration
	StoreTimeout time.Duration

	// Logger is used when the request context carries none.
	Logger *slog.Logger
}

// Engine serves recommendations. It is safe for concurrent use.
type Engine struct {
	embedder     TextEmbedder
	corpus       corpus.Store
	recency      recency.Tracker
	extractor    Extractor
	embedTimeout time.Duration
	storeTimeout time.Duration
	log          *slog.Logger
	locks        *sessionLocks
}

// New validates cfg and returns an Engine.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Embedder == nil:
		return nil, fmt.Errorf("recommend: embedder is required")
	case cfg.Corpus == nil:
		return nil, fmt.Errorf("recommend: corpus store is required")
	case cfg.Recency == nil:
		return nil, fmt.Errorf("recommend: recency tracker is required")
	}
	e := &Engine{
		embedder:     cfg.Embedder,
		corpus:       cfg.Corpus,
		recency:      cfg.Recency,
		extractor:    cfg.Extractor,
		embedTimeout: cfg.EmbedTimeout,
		storeTimeout: cfg.StoreTimeout,
		log:          cfg.Logger,
		locks:        newSessionLocks(),
	}
	if e.embedTimeout <= 0 {
		e.embedTimeout = DefaultEmbedTimeout
	}
	if e.storeTimeout <= 0 {
		e.storeTimeout = DefaultStoreTimeout
	}
	if e.log == nil {
		e.log = logging.Discard()
	}
	return e, nil
}

// Recommend returns the question closest to description that is not in the
// session's recency window, and records it in the window. The bool is false
// when every candidate is excluded or the corpus is empty; the window is then
// left unchanged.
//
// Calls for the same session are serialised for the whole read, query and
// append sequence, so concurrent requests never receive the same question
// while it is still in the window.
func (e *Engine) Recommend(ctx context.Context, sessionID, description string) (corpus.Match, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return corpus.Match{}, false, fmt.Errorf("recommend: empty session id: %w", apperror.ErrInvalidInput)
	}
	if strings.TrimSpace(description) == "" {
		return corpus.Match{}, false, fmt.Errorf("recommend: job description is required: %w", apperror.ErrInvalidInput)
	}
	log := e.logger(ctx).With("session_id", sessionID)

	unlock := e.locks.lock(sessionID)
	defer unlock()

	window, err := e.window(ctx, sessionID)
	if err != nil {
		return corpus.Match{}, false, err
	}
	excl := corpus.NewExclusion(window...)
	e.touch(ctx, log, sessionID)

	vec, err := e.embed(ctx, log, e.queryText(ctx, log, description))
	if err != nil {
		return corpus.Match{}, false, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	m, ok, err := e.corpus.Nearest(storeCtx, vec, excl)
	cancel()
	if err != nil {
		log.Error("recommend: nearest query failed", "error", err)
		return corpus.Match{}, false, storeErr("nearest", err)
	}
	if !ok {
		log.Info("recommend: no question available", "excluded", excl.Len())
		return corpus.Match{}, false, nil
	}

	appendCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	err = e.recency.Append(appendCtx, sessionID, m.Question.ID)
	cancel()
	if err != nil {
		log.Error("recommend: recording served question failed", "question_id", m.Question.ID, "error", err)
		return corpus.Match{}, false, storeErr("append", err)
	}

	log.Info("recommend: served question",
		"question_id", m.Question.ID,
		"distance", m.Distance,
		"excluded", excl.Len(),
	)
	return m, true, nil
}

// Similar returns up to k questions closest to query without consulting or
// updating any session state. A non-positive k means DefaultSimilarK.
func (e *Engine) Similar(ctx context.Context, query string, k int) ([]corpus.Match, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("recommend: query is required: %w", apperror.ErrInvalidInput)
	}
	if k <= 0 {
		k = DefaultSimilarK
	}
	log := e.logger(ctx)

	vec, err := e.embed(ctx, log, query)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	matches, err := e.corpus.TopK(storeCtx, vec, k)
	if err != nil {
		log.Error("recommend: top-k query failed", "error", err)
		return nil, storeErr("top-k", err)
	}
	return matches, nil
}

// Question looks up a question by id. A missing id is [apperror.ErrNotFound].
func (e *Engine) Question(ctx context.Context, id int64) (corpus.Question, error) {
	storeCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	q, ok, err := e.corpus.Get(storeCtx, id)
	if err != nil {
		return corpus.Question{}, storeErr("get", err)
	}
	if !ok {
		return corpus.Question{}, fmt.Errorf("recommend: question %d: %w", id, apperror.ErrNotFound)
	}
	return q, nil
}

func (e *Engine) window(ctx context.Context, sessionID string) (recency.Window, error) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	w, err := e.recency.Window(ctx, sessionID)
	if err != nil {
		return nil, storeErr("read window", err)
	}
	return w, nil
}

// queryText returns the text to embed for description.
func (e *Engine) queryText(ctx context.Context, log *slog.Logger, description string) string {
	if e.extractor == nil {
		return description
	}
	ctx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	defer cancel()
	skills, err := e.extractor.Extract(ctx, description)
	if err != nil {
		log.Warn("recommend: skill extraction failed, embedding raw description", "error", err)
		return description
	}
	log.Debug("recommend: extracted skills", "chars", len(skills))
	return skills
}

func (e *Engine) embed(ctx context.Context, log *slog.Logger, text string) (vector.Vector, error) {
	ctx, cancel := context.WithTimeout(ctx, e.embedTimeout)
	defer cancel()
	vec, err := e.embedder.EmbedText(ctx, text)
	if err != nil {
		log.Error("recommend: embedding failed", "error", err)
		if errors.Is(err, apperror.ErrEmbeddingUnavailable) {
			return vector.Vector{}, fmt.Errorf("recommend: %w", err)
		}
		return vector.Vector{}, fmt.Errorf("recommend: %w: %v", apperror.ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// touch keeps the session's window alive for as long as the client keeps
// asking, including calls that end without appending. Failure only costs an
// earlier expiry, so it is logged and ignored.
func (e *Engine) touch(ctx context.Context, log *slog.Logger, sessionID string) {
	ctx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()
	if err := e.recency.Touch(ctx, sessionID); err != nil {
		log.Warn("recommend: refreshing session failed", "error", err)
	}
}

func (e *Engine) logger(ctx context.Context) *slog.Logger {
	return logging.FromContextOr(ctx, e.log)
}

// storeErr classifies a corpus or tracker failure as unavailable. The cause
// is kept in the message but not in the chain, so an inner validation error
// from a misconfigured store is not reported to clients as bad input.
func storeErr(op string, err error) error {
	if errors.Is(err, apperror.ErrStoreUnavailable) {
		return fmt.Errorf("recommend: %s: %w", op, err)
	}
	return fmt.Errorf("recommend: %s: %w: %v", op, apperror.ErrStoreUnavailable, err)
}
