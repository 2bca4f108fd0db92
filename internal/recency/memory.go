package recency

import (
	"context"
	"sync"
	"time"
)

// memorySession is one session's window and the last time it was appended to.
type memorySession struct {
	ids      Window
	lastSeen time.Time
}

// MemoryTracker is an in-process [Tracker]. Sessions idle for longer than the
// TTL are treated as empty on read and removed by a background sweep.
type MemoryTracker struct {
	// mu protects sessions.
	mu       sync.Mutex
	sessions map[string]*memorySession
	ttl      time.Duration
	// now is the clock, replaceable in tests.
	now  func() time.Time
	stop chan struct{}
	once sync.Once
}

// NewMemoryTracker constructs a MemoryTracker and starts its expiry loop. A
// non-positive ttl falls back to [DefaultTTL]. Call Close to stop the loop.
func NewMemoryTracker(ttl time.Duration) *MemoryTracker {
	return newMemoryTracker(ttl, time.Now)
}

func newMemoryTracker(ttl time.Duration, now func() time.Time) *MemoryTracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	t := &MemoryTracker{
		sessions: make(map[string]*memorySession),
		ttl:      ttl,
		now:      now,
		stop:     make(chan struct{}),
	}
	go t.evictLoop()
	return t
}

// Append pushes id onto the session's window, evicting the oldest beyond
// [WindowSize].
func (t *MemoryTracker) Append(_ context.Context, sessionID string, id int64) error {
	if sessionID == "" {
		return ErrNoSession
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s, ok := t.sessions[sessionID]
	if !ok || t.expired(s, now) {
		s = &memorySession{}
		t.sessions[sessionID] = s
	}
	s.ids = Push(s.ids, id, WindowSize)
	s.lastSeen = now
	return nil
}

// Window returns a copy of the session's window.
func (t *MemoryTracker) Window(_ context.Context, sessionID string) (Window, error) {
	if sessionID == "" {
		return nil, ErrNoSession
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[sessionID]
	if !ok || t.expired(s, t.now()) {
		return Window{}, nil
	}
	return append(Window{}, s.ids...), nil
}

// Touch refreshes the session's idle timer if it has not expired yet.
func (t *MemoryTracker) Touch(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if s, ok := t.sessions[sessionID]; ok && !t.expired(s, now) {
		s.lastSeen = now
	}
	return nil
}

// Sessions returns the number of tracked sessions, expired or not.
func (t *MemoryTracker) Sessions() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

func (t *MemoryTracker) expired(s *memorySession, now time.Time) bool {
	return now.Sub(s.lastSeen) > t.ttl
}

// evictLoop removes expired sessions until Close is called.
func (t *MemoryTracker) evictLoop() {
	ticker := time.NewTicker(sweepInterval(t.ttl))
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.evict()
		}
	}
}

// evict removes sessions idle for longer than the TTL.
func (t *MemoryTracker) evict() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for id, s := range t.sessions {
		if t.expired(s, now) {
			delete(t.sessions, id)
		}
	}
}

// Close stops the expiry loop. It is safe to call more than once.
func (t *MemoryTracker) Close() error {
	t.once.Do(func() { close(t.stop) })
	return nil
}
