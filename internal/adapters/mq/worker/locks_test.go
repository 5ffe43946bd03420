package worker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestScopeLocks_SerialisesSameScope(t *testing.T) {
	l := newScopeLocks()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.lock("c1|a1")
			defer unlock()
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			running.Add(-1)
		}()
	}
	wg.Wait()

	if got := peak.Load(); got != 1 {
		t.Fatalf("expected one holder at a time, saw %d", got)
	}
	if l.size() != 0 {
		t.Fatalf("expected released scopes to be forgotten, %d left", l.size())
	}
}

func TestScopeLocks_IndependentScopes(t *testing.T) {
	l := newScopeLocks()
	unlockA := l.lock("c1|a1")

	done := make(chan struct{})
	go func() {
		unlock := l.lock("c1|a2")
		unlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("a different scope should not wait")
	}
	unlockA()
}
