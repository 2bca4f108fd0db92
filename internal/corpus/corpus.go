// Package corpus stores interview questions with their embeddings and answers
// nearest-neighbour queries over them. Concrete backends (Postgres with
// pgvector, Qdrant, in-memory) satisfy [Store] so the recommendation engine
// never depends on a specific datastore.
//
// All backends rank by Euclidean (L2) distance, smaller is closer.
package corpus

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/vector"
)

// Question is one entry in the question bank.
type Question struct {
	// ID is unique and stable for the lifetime of the store.
	ID int64 `json:"id"`

	// Text is the question shown to the candidate.
	Text string `json:"question_text"`

	// Topic is a free-form label such as "concurrency".
	Topic string `json:"topic"`

	// Difficulty is a free-form label such as "medium".
	Difficulty string `json:"difficulty"`

	// Embedding is the stored vector. Backends that do not return vectors
	// from queries leave it zero.
	Embedding vector.Vector `json:"-"`
}

// NewQuestion is the input to [Store.Insert]; the store assigns the ID.
type NewQuestion struct {
	Text       string
	Topic      string
	Difficulty string
	Embedding  vector.Vector
}

// Match is a question returned by a similarity query with its distance to the
// query vector.
type Match struct {
	Question Question
	Distance float64
}

// Exclusion is a set of question ids a query must not return. The zero value
// excludes nothing.
type Exclusion struct {
	ids map[int64]struct{}
}

// NewExclusion builds an Exclusion from ids. Duplicates collapse.
func NewExclusion(ids ...int64) Exclusion {
	if len(ids) == 0 {
		return Exclusion{}
	}
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return Exclusion{ids: set}
}

// IsEmpty reports whether the exclusion filters nothing.
func (e Exclusion) IsEmpty() bool { return len(e.ids) == 0 }

// Len returns the number of distinct excluded ids.
func (e Exclusion) Len() int { return len(e.ids) }

// Contains reports whether id is excluded.
func (e Exclusion) Contains(id int64) bool {
	_, ok := e.ids[id]
	return ok
}

// IDs returns the excluded ids in ascending order.
func (e Exclusion) IDs() []int64 {
	out := make([]int64, 0, len(e.ids))
	for id := range e.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Store persists questions and answers similarity queries.
// Implementations must be safe to call from multiple goroutines. Datastore
// failures are wrapped with [apperror.ErrStoreUnavailable].
type Store interface {
	// Insert stores q and returns it with its assigned ID.
	Insert(ctx context.Context, q NewQuestion) (Question, error)

	// Get returns the question with the given id. The bool is false when no
	// such question exists.
	Get(ctx context.Context, id int64) (Question, bool, error)

	// Nearest returns the single closest question whose id is not in excl.
	// The bool is false when every question is excluded or the store is empty.
	Nearest(ctx context.Context, query vector.Vector, excl Exclusion) (Match, bool, error)

	// TopK returns up to k closest questions, closest first, with no exclusion.
	TopK(ctx context.Context, query vector.Vector, k int) ([]Match, error)

	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// validateNew checks an insert against the store's configured dimension.
func validateNew(q NewQuestion, dim int) error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("corpus: empty question text: %w", apperror.ErrInvalidInput)
	}
	if q.Embedding.IsZero() {
		return fmt.Errorf("corpus: missing embedding: %w", apperror.ErrInvalidInput)
	}
	if dim > 0 && q.Embedding.Dim() != dim {
		return fmt.Errorf("corpus: embedding has %d dimensions, store expects %d: %w",
			q.Embedding.Dim(), dim, apperror.ErrInvalidInput)
	}
	return nil
}

// checkQuery rejects query vectors the store cannot rank against.
func checkQuery(query vector.Vector, dim int) error {
	if query.IsZero() {
		return fmt.Errorf("corpus: empty query vector: %w", apperror.ErrInvalidInput)
	}
	if dim > 0 && query.Dim() != dim {
		return fmt.Errorf("corpus: query has %d dimensions, store expects %d: %w",
			query.Dim(), dim, apperror.ErrInvalidInput)
	}
	return nil
}

// unavailable wraps a backend failure with the store sentinel.
func unavailable(op string, err error) error {
	return fmt.Errorf("corpus: %s: %w: %w", op, apperror.ErrStoreUnavailable, err)
}
