package broker

import (
	"sync"
	"testing"
	"time"

	"github.com/queueit/backend/internal/queue"
)

func receive(t *testing.T, sub *Subscription) queue.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return ev
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected event on channel")
	}
	return nil
}

func TestSubscribeAndPublish(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("sess1")
	defer b.Unsubscribe(sub)

	b.Publish("sess1", queue.VoteChanged{EntryID: "e1", Tally: 3})

	ev := receive(t, sub)
	vc, ok := ev.(queue.VoteChanged)
	if !ok {
		t.Fatalf("got %T, want VoteChanged", ev)
	}
	if vc.EntryID != "e1" || vc.Tally != 3 {
		t.Errorf("got %+v", vc)
	}
}

func TestPublishOrder(t *testing.T) {
	b := New(8)
	sub := b.Subscribe("sess1")
	defer b.Unsubscribe(sub)

	b.Publish("sess1", queue.QueueChanged{})
	b.Publish("sess1", queue.NowPlayingChanged{})
	b.Publish("sess1", queue.VoteChanged{EntryID: "e1", Tally: 1})

	want := []queue.EventKind{queue.KindQueueChanged, queue.KindNowPlayingChanged, queue.KindVoteChanged}
	for i, kind := range want {
		if got := receive(t, sub).Kind(); got != kind {
			t.Errorf("event %d = %s, want %s", i, got, kind)
		}
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("sess1")
	b.Unsubscribe(sub)

	b.Publish("sess1", queue.QueueChanged{})

	if _, ok := <-sub.Events(); ok {
		t.Fatal("should not receive after unsubscribe")
	}
	// second unsubscribe is a no-op
	b.Unsubscribe(sub)
}

func TestCrossSessionIsolation(t *testing.T) {
	b := New(4)
	sub1 := b.Subscribe("sess1")
	sub2 := b.Subscribe("sess2")
	defer b.Unsubscribe(sub1)
	defer b.Unsubscribe(sub2)

	b.Publish("sess1", queue.QueueChanged{})
	receive(t, sub1)

	select {
	case <-sub2.Events():
		t.Fatal("sess2 subscriber should not receive event from sess1 publish")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCaseFoldedSessionIDs(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("SESS1")
	defer b.Unsubscribe(sub)

	b.Publish("sess1", queue.QueueChanged{})
	receive(t, sub)
}

func TestSlowSubscriberIsDropped(t *testing.T) {
	b := New(2)
	slow := b.Subscribe("sess1")
	fast := b.Subscribe("sess1")
	defer b.Unsubscribe(fast)

	b.Publish("sess1", queue.QueueChanged{})
	b.Publish("sess1", queue.QueueChanged{})
	receive(t, fast)
	receive(t, fast)

	done := make(chan struct{})
	go func() {
		b.Publish("sess1", queue.QueueChanged{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publisher blocked on slow subscriber")
	}
	receive(t, fast)

	// the two buffered events drain, then the channel is closed
	n := 0
	for range slow.Events() {
		n++
	}
	if n != 2 {
		t.Errorf("slow subscriber drained %d events, want 2", n)
	}
	if got := b.Subscribers("sess1"); got != 1 {
		t.Errorf("Subscribers() = %d, want 1", got)
	}
}

func TestCloseSession(t *testing.T) {
	b := New(4)
	sub1 := b.Subscribe("sess1")
	sub2 := b.Subscribe("sess1")

	b.CloseSession("sess1")

	for _, sub := range []*Subscription{sub1, sub2} {
		if _, ok := <-sub.Events(); ok {
			t.Error("expected channel closed after CloseSession")
		}
	}
	if got := b.Subscribers("sess1"); got != 0 {
		t.Errorf("Subscribers() = %d, want 0", got)
	}
}

func TestUnsubscribeCleansUpEmptySession(t *testing.T) {
	b := New(4)
	sub := b.Subscribe("sess1")
	b.Unsubscribe(sub)

	b.mu.Lock()
	_, exists := b.subs["sess1"]
	b.mu.Unlock()

	if exists {
		t.Fatal("expected session entry to be removed after last unsubscribe")
	}
}

func TestPublishToNonexistentSession(t *testing.T) {
	b := New(4)
	b.Publish("nonexistent", queue.QueueChanged{})
}

func TestConcurrentAccess(t *testing.T) {
	b := New(64)
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe("sess1")
			b.Publish("sess1", queue.QueueChanged{})
			<-sub.Events()
			b.Unsubscribe(sub)
		}()
	}

	wg.Wait()
}

func TestCloseDropsEverySession(t *testing.T) {
	b := New(4)
	a := b.Subscribe("sess1")
	c := b.Subscribe("sess2")

	b.Close()

	for _, sub := range []*Subscription{a, c} {
		if _, open := <-sub.Events(); open {
			t.Errorf("subscription for %s still open after Close", sub.SessionID)
		}
	}
	if got := b.Subscribers("sess1") + b.Subscribers("sess2"); got != 0 {
		t.Errorf("Subscribers() = %d after Close, want 0", got)
	}
}
