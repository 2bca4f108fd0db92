package recency

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/54b3r/prepai-go/internal/logging"
)

func TestPush(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   Window
		id   int64
		want Window
	}{
		{"empty", nil, 1, Window{1}},
		{"below capacity", Window{1, 2}, 3, Window{1, 2, 3}},
		{"at capacity evicts oldest", Window{1, 2, 3, 4, 5}, 6, Window{2, 3, 4, 5, 6}},
		{"duplicate kept", Window{1, 2}, 2, Window{1, 2, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			orig := append(Window(nil), tt.in...)
			got := Push(tt.in, tt.id, WindowSize)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, orig, tt.in, "input must not be modified")
		})
	}
}

// newTrackers returns one of each Tracker implementation for shared tests.
func newTrackers(t *testing.T) map[string]Tracker {
	t.Helper()
	mem := NewMemoryTracker(time.Hour)
	t.Cleanup(func() { mem.Close() })

	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "sessions.db"), time.Hour, logging.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })

	return map[string]Tracker{"memory": mem, "sqlite": sq}
}

func TestTracker_WindowHoldsLastFiveInOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			for n := 1; n <= 12; n++ {
				session := fmt.Sprintf("s-%d", n)
				for id := int64(1); id <= int64(n); id++ {
					require.NoError(t, tr.Append(ctx, session, id))
				}
				w, err := tr.Window(ctx, session)
				require.NoError(t, err)

				want := Window{}
				for id := int64(max(1, n-WindowSize+1)); id <= int64(n); id++ {
					want = append(want, id)
				}
				assert.Equal(t, want, w, "after %d appends", n)
			}
		})
	}
}

func TestTracker_EvictsOldestOnSixthAppend(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			for id := int64(1); id <= 5; id++ {
				require.NoError(t, tr.Append(ctx, "sess", id))
			}
			w, err := tr.Window(ctx, "sess")
			require.NoError(t, err)
			assert.Equal(t, Window{1, 2, 3, 4, 5}, w)

			require.NoError(t, tr.Append(ctx, "sess", 6))
			w, err = tr.Window(ctx, "sess")
			require.NoError(t, err)
			assert.Equal(t, Window{2, 3, 4, 5, 6}, w)
			assert.False(t, w.Contains(1))
		})
	}
}

func TestTracker_WindowReadIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tr.Append(ctx, "sess", 7))
			require.NoError(t, tr.Append(ctx, "sess", 8))
			first, err := tr.Window(ctx, "sess")
			require.NoError(t, err)
			first[0] = 999 // mutating the copy must not leak back
			second, err := tr.Window(ctx, "sess")
			require.NoError(t, err)
			assert.Equal(t, Window{7, 8}, second)
		})
	}
}

func TestTracker_UnknownSessionIsEmpty(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			w, err := tr.Window(ctx, "never-seen")
			require.NoError(t, err)
			assert.Empty(t, w)
		})
	}
}

func TestTracker_SessionsAreIndependent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, tr.Append(ctx, "a", 1))
			require.NoError(t, tr.Append(ctx, "b", 2))
			wa, err := tr.Window(ctx, "a")
			require.NoError(t, err)
			wb, err := tr.Window(ctx, "b")
			require.NoError(t, err)
			assert.Equal(t, Window{1}, wa)
			assert.Equal(t, Window{2}, wb)
		})
	}
}

func TestTracker_RejectsEmptySession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, tr.Append(ctx, "", 1), ErrNoSession)
			_, err := tr.Window(ctx, "")
			assert.ErrorIs(t, err, ErrNoSession)
		})
	}
}

func TestTracker_ConcurrentAppendsSameSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	for name, tr := range newTrackers(t) {
		t.Run(name, func(t *testing.T) {
			const workers = 40
			var wg sync.WaitGroup
			for i := range workers {
				wg.Add(1)
				go func(id int64) {
					defer wg.Done()
					assert.NoError(t, tr.Append(ctx, "shared", id))
				}(int64(i + 1))
			}
			wg.Wait()

			w, err := tr.Window(ctx, "shared")
			require.NoError(t, err)
			require.Len(t, w, WindowSize)
			seen := map[int64]bool{}
			for _, id := range w {
				assert.True(t, id >= 1 && id <= workers, "unexpected id %d", id)
				assert.False(t, seen[id], "id %d appears twice", id)
				seen[id] = true
			}
		})
	}
}
