// Package recency tracks, per session, the ids of the most recently served
// questions so the recommendation engine can avoid repeating them. Each
// session keeps at most [WindowSize] ids, most recent last; appending a sixth
// evicts the oldest.
package recency

import (
	"context"
	"errors"
	"slices"
	"time"
)

// WindowSize is the number of recently served question ids kept per session.
const WindowSize = 5

// DefaultTTL is how long an idle session's window is kept. It matches the
// default session cookie max-age.
const DefaultTTL = time.Minute

// ErrNoSession is returned for an empty session id.
var ErrNoSession = errors.New("recency: empty session id")

// Window is an ordered list of question ids, oldest first.
type Window []int64

// Contains reports whether id is in the window.
func (w Window) Contains(id int64) bool {
	return slices.Contains(w, id)
}

// Push returns w with id appended and the front trimmed so at most size ids
// remain. w is not modified. Duplicate ids are kept.
func Push(w Window, id int64, size int) Window {
	out := make(Window, 0, min(len(w)+1, max(size, 1)))
	start := max(len(w)+1-size, 0)
	if start < len(w) {
		out = append(out, w[start:]...)
	}
	if size > 0 {
		out = append(out, id)
	}
	return out
}

// Tracker stores one window per session. Append must be atomic per session:
// concurrent appends to the same session never lose an update. Window returns
// a copy and reading it never mutates state.
type Tracker interface {
	// Append records id as the most recently served question for session.
	Append(ctx context.Context, sessionID string, id int64) error

	// Window returns the current window for session, empty if the session is
	// unknown or expired.
	Window(ctx context.Context, sessionID string) (Window, error)

	// Touch extends a live session's lifetime without changing its window.
	// Unknown and expired sessions are left alone.
	Touch(ctx context.Context, sessionID string) error

	// Close stops background expiry and releases resources.
	Close() error
}

// sweepInterval picks how often expired sessions are removed.
func sweepInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), time.Minute)
}
