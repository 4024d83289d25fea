package services

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionLocks_SerializeOneSession(t *testing.T) {
	locks := newSessionLocks()
	var (
		inside  int32
		maxSeen int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.Lock("sess")
			defer unlock()
			n := atomic.AddInt32(&inside, 1)
			if n > atomic.LoadInt32(&maxSeen) {
				atomic.StoreInt32(&maxSeen, n)
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()

	if maxSeen != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxSeen)
	}
	if locks.len() != 0 {
		t.Errorf("lock table has %d entries after release, want 0", locks.len())
	}
}

func TestSessionLocks_CaseFolded(t *testing.T) {
	locks := newSessionLocks()
	unlock := locks.Lock("Sess")

	acquired := make(chan struct{})
	go func() {
		u := locks.Lock("sess")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatal("differently cased id should share the lock")
	case <-time.After(50 * time.Millisecond):
	}
	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock was not handed over")
	}
}

func TestSessionLocks_IndependentSessions(t *testing.T) {
	locks := newSessionLocks()
	unlock := locks.Lock("a")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := locks.Lock("b")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on session b blocked behind session a")
	}
}

func TestSessionLocks_ReadersShare(t *testing.T) {
	locks := newSessionLocks()
	r1 := locks.RLock("a")
	defer r1()

	done := make(chan struct{})
	go func() {
		r2 := locks.RLock("a")
		r2()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second reader blocked")
	}
}
