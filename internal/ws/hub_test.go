package ws

import (
	"sync"
	"testing"
	"time"
)

type subscriberStub struct {
	mu       sync.Mutex
	received [][]byte
	closed   bool
}

func (s *subscriberStub) Send(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.received = append(s.received, payload)
	return nil
}

func (s *subscriberStub) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *subscriberStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.received)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within deadline")
}

func TestBroadcastReachesOnlyOwner(t *testing.T) {
	hub := NewHub()
	alice := &subscriberStub{}
	bob := &subscriberStub{}
	hub.Register("user-alice", alice)
	hub.Register("user-bob", bob)

	hub.Broadcast("user-alice", []byte(`{"type":"task.created"}`))

	waitFor(t, func() bool { return alice.count() == 1 })
	if bob.count() != 0 {
		t.Fatalf("foreign subscriber must not receive events")
	}
}

func TestUnregisterStopsDelivery(t *testing.T) {
	hub := NewHub()
	alice := &subscriberStub{}
	hub.Register("user-alice", alice)
	hub.Broadcast("user-alice", []byte("one"))
	waitFor(t, func() bool { return alice.count() == 1 })

	hub.Unregister("user-alice", alice)
	hub.Broadcast("user-alice", []byte("two"))

	// the second broadcast goes through the same loop; give it a moment
	time.Sleep(20 * time.Millisecond)
	if alice.count() != 1 {
		t.Fatalf("unregistered subscriber still receiving, got %d messages", alice.count())
	}
}
