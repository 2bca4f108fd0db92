package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/vector"
)

// runStoreContract exercises the behaviour every Store backend must share.
// newStore must return an empty store configured for 2-dimensional vectors.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	insert := func(t *testing.T, s Store, text string, x float32) Question {
		t.Helper()
		q, err := s.Insert(ctx, NewQuestion{
			Text:       text,
			Topic:      "go",
			Difficulty: "medium",
			Embedding:  vector.MustNew(x, 0),
		})
		require.NoError(t, err)
		return q
	}
	origin := vector.MustNew(0, 0)

	t.Run("empty store has no nearest", func(t *testing.T) {
		s := newStore(t)
		_, ok, err := s.Nearest(ctx, origin, Exclusion{})
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("insert then get", func(t *testing.T) {
		s := newStore(t)
		q := insert(t, s, "What is a goroutine?", 0.3)
		assert.NotZero(t, q.ID)

		got, ok, err := s.Get(ctx, q.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "What is a goroutine?", got.Text)
		assert.Equal(t, "go", got.Topic)
		assert.Equal(t, "medium", got.Difficulty)

		_, ok, err = s.Get(ctx, q.ID+1000)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("insert rejects wrong dimension", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Insert(ctx, NewQuestion{Text: "x", Embedding: vector.MustNew(1, 2, 3)})
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("insert rejects empty text", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Insert(ctx, NewQuestion{Text: " ", Embedding: vector.MustNew(1, 2)})
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})

	t.Run("nearest honours distance and exclusion", func(t *testing.T) {
		s := newStore(t)
		q1 := insert(t, s, "Q1", 0.1)
		q2 := insert(t, s, "Q2", 0.5)
		q3 := insert(t, s, "Q3", 0.9)

		m, ok, err := s.Nearest(ctx, origin, Exclusion{})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, q1.ID, m.Question.ID)
		assert.InDelta(t, 0.1, m.Distance, 1e-6)

		m, ok, err = s.Nearest(ctx, origin, NewExclusion(q1.ID))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, q2.ID, m.Question.ID)
		assert.InDelta(t, 0.5, m.Distance, 1e-6)

		_, ok, err = s.Nearest(ctx, origin, NewExclusion(q1.ID, q2.ID, q3.ID))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("nearest never returns an excluded id", func(t *testing.T) {
		s := newStore(t)
		var ids []int64
		for i, x := range []float32{0.2, 0.4, 0.6, 0.8, 1.0, 1.2, 1.4} {
			ids = append(ids, insert(t, s, string(rune('A'+i)), x).ID)
		}
		for n := 0; n <= len(ids); n++ {
			excl := NewExclusion(ids[:n]...)
			m, ok, err := s.Nearest(ctx, origin, excl)
			require.NoError(t, err)
			if n == len(ids) {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok)
			assert.False(t, excl.Contains(m.Question.ID))
			assert.Equal(t, ids[n], m.Question.ID)
		}
	})

	t.Run("topk orders by distance", func(t *testing.T) {
		s := newStore(t)
		far := insert(t, s, "far", 0.9)
		near := insert(t, s, "near", 0.1)
		mid := insert(t, s, "mid", 0.5)

		got, err := s.TopK(ctx, origin, 5)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []int64{near.ID, mid.ID, far.ID},
			[]int64{got[0].Question.ID, got[1].Question.ID, got[2].Question.ID})

		got, err = s.TopK(ctx, origin, 2)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("query rejects wrong dimension", func(t *testing.T) {
		s := newStore(t)
		_, _, err := s.Nearest(ctx, vector.MustNew(1), Exclusion{})
		assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	})
}
