package worker

import "sync"

// scopeLocks serialises jobs touching the same cohort and assessment. Two
// overlapping recalculations running at once could let the one that read
// older observations write last.
type scopeLocks struct {
	mu sync.Mutex
	m  map[string]*scopeLock
}

type scopeLock struct {
	sync.Mutex
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{m: make(map[string]*scopeLock)}
}

// lock blocks until scope is free and returns its unlock func.
func (l *scopeLocks) lock(scope string) func() {
	l.mu.Lock()
	sl, ok := l.m[scope]
	if !ok {
		sl = &scopeLock{}
		l.m[scope] = sl
	}
	sl.refs++
	l.mu.Unlock()

	sl.Lock()
	return func() {
		sl.Unlock()
		l.mu.Lock()
		sl.refs--
		if sl.refs == 0 {
			delete(l.m, scope)
		}
		l.mu.Unlock()
	}
}

func (l *scopeLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}
