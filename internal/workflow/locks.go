package workflow

import "sync"

// requestLocks serializes workflow transitions per request id. The lock is
// acquired before the PENDING precondition is checked and released when
// the surrounding transaction has committed or rolled back, so the second
// of two concurrent approvers always observes the advanced state.
type requestLocks struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newRequestLocks() *requestLocks {
	return &requestLocks{locks: make(map[string]*lockEntry)}
}

// Acquire blocks until the request's lock is held and returns the release
// function. Entries are reference counted and removed once unused.
func (l *requestLocks) Acquire(requestID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[requestID]
	if !ok {
		entry = &lockEntry{}
		l.locks[requestID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, requestID)
		}
		l.mu.Unlock()
	}
}
