package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBroadcasterSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	if b.Count() != 2 {
		t.Fatalf("expected 2 subscribers, got %d", b.Count())
	}

	b.Unsubscribe(ch1)
	if b.Count() != 1 {
		t.Fatalf("expected 1 subscriber after unsubscribe, got %d", b.Count())
	}
	if _, ok := <-ch1; ok {
		t.Error("expected unsubscribed channel to be closed")
	}

	b.Unsubscribe(ch2)
	b.Unsubscribe(ch2)
	if b.Count() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", b.Count())
	}
}

func TestBroadcasterPublish(t *testing.T) {
	b := NewBroadcaster()
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	b.Publish(Event{Type: EventRefresh, Trigger: "poll", Entries: 3})

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != EventRefresh || ev.Trigger != "poll" || ev.Entries != 3 {
				t.Errorf("subscriber %d: unexpected event %+v", i, ev)
			}
			if ev.Timestamp == 0 {
				t.Errorf("subscriber %d: expected non-zero timestamp", i)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out waiting for event", i)
		}
	}
}

func TestBroadcasterSlowConsumer(t *testing.T) {
	b := NewBroadcaster()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			b.Publish(Event{Type: EventRefresh})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow consumer")
	}
	if len(ch) != cap(ch) {
		t.Errorf("expected a full buffer, got %d of %d", len(ch), cap(ch))
	}
}

func TestMarshalEvent(t *testing.T) {
	data, err := MarshalEvent(Event{Type: EventPing, Timestamp: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got["type"] != "ping" || got["timestamp"] != float64(42) {
		t.Errorf("unexpected payload %s", data)
	}
	if _, ok := got["trigger"]; ok {
		t.Error("expected empty trigger to be omitted")
	}
}
