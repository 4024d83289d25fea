package services

import (
	"sync"

	"github.com/queueit/backend/internal/queue"
)

// sessionLocks hands out one RWMutex per session. Entries are reference
// counted and removed once nobody holds or waits on them, so the table only
// grows with the number of sessions currently being touched.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sessionLock
}

type sessionLock struct {
	sync.RWMutex
	refs int
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sessionLock)}
}

func (l *sessionLocks) acquire(id string) *sessionLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk, ok := l.locks[id]
	if !ok {
		lk = &sessionLock{}
		l.locks[id] = lk
	}
	lk.refs++
	return lk
}

func (l *sessionLocks) release(id string, lk *sessionLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, id)
	}
}

// Lock takes the session's write lock and returns its release func.
func (l *sessionLocks) Lock(sessionID string) func() {
	id := queue.CanonicalID(sessionID)
	lk := l.acquire(id)
	lk.Lock()
	return func() {
		lk.Unlock()
		l.release(id, lk)
	}
}

// RLock takes the session's read lock and returns its release func.
func (l *sessionLocks) RLock(sessionID string) func() {
	id := queue.CanonicalID(sessionID)
	lk := l.acquire(id)
	lk.RLock()
	return func() {
		lk.RUnlock()
		l.release(id, lk)
	}
}

func (l *sessionLocks) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
