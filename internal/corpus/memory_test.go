package corpus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/vector"
)

func TestMemoryStore_Contract(t *testing.T) {
	t.Parallel()
	runStoreContract(t, func(t *testing.T) Store { return NewMemoryStore(2) })
}

func TestMemoryStore_TiesBreakByLowestID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewMemoryStore(2)
	a, err := s.Insert(ctx, NewQuestion{Text: "a", Embedding: vector.MustNew(1, 0)})
	require.NoError(t, err)
	_, err = s.Insert(ctx, NewQuestion{Text: "b", Embedding: vector.MustNew(0, 1)})
	require.NoError(t, err)

	m, ok, err := s.Nearest(ctx, vector.MustNew(0, 0), Exclusion{})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, a.ID, m.Question.ID)
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewMemoryStore(2)
	_, _, err := s.Nearest(ctx, vector.MustNew(0, 0), Exclusion{})
	assert.ErrorIs(t, err, apperror.ErrStoreUnavailable)
}

func TestExclusion(t *testing.T) {
	t.Parallel()

	var zero Exclusion
	assert.True(t, zero.IsEmpty())
	assert.False(t, zero.Contains(1))
	assert.Empty(t, zero.IDs())

	e := NewExclusion(5, 3, 5, 9)
	assert.False(t, e.IsEmpty())
	assert.Equal(t, 3, e.Len())
	assert.True(t, e.Contains(3))
	assert.False(t, e.Contains(4))
	assert.Equal(t, []int64{3, 5, 9}, e.IDs())

	assert.True(t, NewExclusion().IsEmpty())
}
