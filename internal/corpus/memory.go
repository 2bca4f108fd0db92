package corpus

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/54b3r/prepai-go/internal/vector"
)

// MemoryStore is an in-process [Store] with exact linear-scan search. Ties
// are broken by ascending id. It is intended for tests and local development;
// nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	dim    int
	nextID int64
	items  []Question
}

// NewMemoryStore returns an empty MemoryStore. When dim is positive, inserts
// and queries of any other dimension are rejected.
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim, nextID: 1}
}

// Insert stores q and assigns the next sequential id.
func (s *MemoryStore) Insert(_ context.Context, q NewQuestion) (Question, error) {
	if err := validateNew(q, s.dim); err != nil {
		return Question{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := Question{
		ID:         s.nextID,
		Text:       q.Text,
		Topic:      q.Topic,
		Difficulty: q.Difficulty,
		Embedding:  q.Embedding,
	}
	s.nextID++
	s.items = append(s.items, stored)
	return stored, nil
}

// Get returns the question with the given id.
func (s *MemoryStore) Get(_ context.Context, id int64) (Question, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.items {
		if q.ID == id {
			return q, true, nil
		}
	}
	return Question{}, false, nil
}

// Nearest scans every question not in excl and returns the closest.
func (s *MemoryStore) Nearest(ctx context.Context, query vector.Vector, excl Exclusion) (Match, bool, error) {
	if err := checkQuery(query, s.dim); err != nil {
		return Match{}, false, err
	}
	if err := ctx.Err(); err != nil {
		return Match{}, false, unavailable("memory nearest", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  Match
		found bool
	)
	for _, q := range s.items {
		if excl.Contains(q.ID) {
			continue
		}
		d := vector.Euclidean(query, q.Embedding)
		// items are in ascending id order, so strict < keeps the lowest id on ties.
		if !found || d < best.Distance {
			best = Match{Question: q, Distance: d}
			found = true
		}
	}
	return best, found, nil
}

// TopK returns up to k questions ordered by distance, then id.
func (s *MemoryStore) TopK(ctx context.Context, query vector.Vector, k int) ([]Match, error) {
	if err := checkQuery(query, s.dim); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, unavailable("memory topk", err)
	}
	if k <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	matches := make([]Match, 0, len(s.items))
	for _, q := range s.items {
		matches = append(matches, Match{Question: q, Distance: vector.Euclidean(query, q.Embedding)})
	}
	s.mu.RUnlock()

	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Question.ID, b.Question.ID)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

// Len returns the number of stored questions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Ping always succeeds.
func (s *MemoryStore) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
