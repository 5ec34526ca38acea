package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/goldensig/goldensig/server/internal/session"
)

type noSessions struct{}

func (noSessions) Get(id string) (session.Overview, error) { return session.Overview{}, session.ErrNotFound }

func TestSend_AfterDropIsHarmless(t *testing.T) {
	h := New(noSessions{}, time.Second)
	s := newSubscriber("s", nil)
	h.add(s)

	// A publisher holding a stale snapshot must not crash when the
	// subscriber disconnects before the send.
	snap := h.following("s")
	h.drop(s)
	for _, sub := range snap {
		h.send(sub, []byte(`{}`))
	}

	if s.offer([]byte(`{}`)) {
		t.Error("offer after drop: got true, want false")
	}
	if n := h.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
	h.drop(s) // second drop is a no-op
}

func TestSend_DropsFullSubscriber(t *testing.T) {
	h := New(noSessions{}, time.Second)
	s := newSubscriber("s", nil)
	h.add(s)

	for i := 0; i < queueSize; i++ {
		h.send(s, []byte(`{}`))
	}
	if s.stopped() {
		t.Fatal("subscriber stopped before its queue was full")
	}
	h.send(s, []byte(`{}`))
	if !s.stopped() {
		t.Error("full subscriber was not stopped")
	}
	if n := h.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestPublish_ConcurrentWithDrop(t *testing.T) {
	h := New(noSessions{}, time.Second)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				s := newSubscriber("s", nil)
				h.add(s)
				h.drop(s)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				h.publish("s", []byte(`{}`))
			}
		}()
	}
	wg.Wait()
	h.dropAll()
	if n := h.Count(); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestTick_EndsSubscriptionsOfGoneSession(t *testing.T) {
	h := New(noSessions{}, time.Second)
	s := newSubscriber("gone", nil)
	h.add(s)

	h.tick()

	if !s.stopped() {
		t.Error("subscriber of a missing session still running")
	}
	select {
	case data := <-s.out:
		if got := string(data); got != `{"event":"closed","session_id":"gone"}` {
			t.Errorf("final message: got %s", got)
		}
	default:
		t.Error("no closed message queued")
	}
}
