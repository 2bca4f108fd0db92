package recommend

import (
	"sync"
	"testing"
	"time"
)

func TestSessionLocks_SerialisesSameKey(t *testing.T) {
	t.Parallel()
	l := newSessionLocks()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		active  int
		maxSeen int
	)
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("s")
			mu.Lock()
			active++
			maxSeen = max(maxSeen, active)
			mu.Unlock()
			time.Sleep(time.Millisecond)
			mu.Lock()
			active--
			mu.Unlock()
			unlock()
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if n := l.len(); n != 0 {
		t.Errorf("live entries after release = %d, want 0", n)
	}
}

func TestSessionLocks_DifferentKeysDoNotBlock(t *testing.T) {
	t.Parallel()
	l := newSessionLocks()
	unlockA := l.lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		l.lock("b")()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on b blocked while a was held")
	}
}
