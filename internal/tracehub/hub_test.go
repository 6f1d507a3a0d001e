package tracehub

import (
	"testing"
	"time"
)

func TestNilHubPublish(t *testing.T) {
	var h *Hub
	h.Publish(Event{Kind: "message", Name: "Tick"})
}

func TestNilHubSubscriberCount(t *testing.T) {
	var h *Hub
	if got := h.SubscriberCount(); got != 0 {
		t.Errorf("SubscriberCount() on nil hub = %d, want 0", got)
	}
}

func TestPublishSingleSubscriber(t *testing.T) {
	h := New()
	ch := h.Subscribe(8)
	defer h.Unsubscribe(ch)

	want := Event{Timestamp: time.Now(), Kind: "create", Name: "Person", Sender: 3}
	h.Publish(want)

	select {
	case got := <-ch:
		if got.Kind != want.Kind || got.Name != want.Name || got.Sender != want.Sender {
			t.Errorf("got event %+v, want %+v", got, want)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	h := New()
	ch := h.Subscribe(1)
	h.Unsubscribe(ch)
	if h.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount() after unsubscribe = %d, want 0", h.SubscriberCount())
	}
	if _, ok := <-ch; ok {
		t.Fatalf("channel should be closed after Unsubscribe")
	}
}

func TestSlowSubscriberDropsRatherThanBlocks(t *testing.T) {
	h := New()
	ch := h.Subscribe(1)
	defer h.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			h.Publish(Event{Kind: "message", Name: "Tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber channel")
	}
}
