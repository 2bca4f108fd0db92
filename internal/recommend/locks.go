package recommend

import "sync"

// sessionLocks hands out one mutex per session id. Entries are reference
// counted and dropped once no goroutine holds or waits on them, so the map
// only grows with the number of sessions currently in flight.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

// lock blocks until the caller owns id's mutex and returns the release func.
func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	e, ok := l.locks[id]
	if !ok {
		e = &sessionLock{}
		l.locks[id] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.locks, id)
		}
		l.mu.Unlock()
	}
}

// len returns the number of live entries.
func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
