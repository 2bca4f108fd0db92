package recency

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestMemoryTracker_Expiry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	tr := newMemoryTracker(time.Minute, clock.Now)
	defer tr.Close()

	require.NoError(t, tr.Append(ctx, "sess", 1))
	clock.Advance(30 * time.Second)
	w, err := tr.Window(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, Window{1}, w)

	clock.Advance(31 * time.Second)
	w, err = tr.Window(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, w, "expired session must read as empty")

	// Appending to an expired session starts a fresh window.
	require.NoError(t, tr.Append(ctx, "sess", 2))
	w, err = tr.Window(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, Window{2}, w)
}

func TestMemoryTracker_TouchExtendsLiveSession(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	tr := newMemoryTracker(time.Minute, clock.Now)
	defer tr.Close()

	require.NoError(t, tr.Append(ctx, "sess", 1))
	clock.Advance(50 * time.Second)
	require.NoError(t, tr.Touch(ctx, "sess"))
	clock.Advance(50 * time.Second)

	w, err := tr.Window(ctx, "sess")
	require.NoError(t, err)
	assert.Equal(t, Window{1}, w, "touch restarts the idle timer")

	// An expired session is not revived.
	clock.Advance(2 * time.Minute)
	require.NoError(t, tr.Touch(ctx, "sess"))
	w, err = tr.Window(ctx, "sess")
	require.NoError(t, err)
	assert.Empty(t, w)

	require.NoError(t, tr.Touch(ctx, "never-seen"))
	assert.ErrorIs(t, tr.Touch(ctx, ""), ErrNoSession)
}

func TestMemoryTracker_Evict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}

	tr := newMemoryTracker(time.Minute, clock.Now)
	defer tr.Close()

	require.NoError(t, tr.Append(ctx, "old", 1))
	clock.Advance(2 * time.Minute)
	require.NoError(t, tr.Append(ctx, "fresh", 2))

	tr.evict()
	assert.Equal(t, 1, tr.Sessions())
}

func TestMemoryTracker_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	tr := NewMemoryTracker(0)
	assert.NoError(t, tr.Close())
	assert.NoError(t, tr.Close())
}
