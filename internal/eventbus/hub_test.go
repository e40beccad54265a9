package eventbus

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatalf("no event received")
	}
	return Event{}
}

func assertEmpty(t *testing.T, ch <-chan Event) {
	t.Helper()
	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := h.Subscribe(ctx, SubscribeOptions{Buffer: 1})
	h.Publish(Event{Type: TypeActivityCreated, BabyID: 1})
	h.Publish(Event{Type: TypeActivityDeleted, BabyID: 1})

	if evt := recv(t, sub); evt.Type != TypeActivityCreated || evt.Timestamp == 0 {
		t.Fatalf("evt=%+v", evt)
	}
	assertEmpty(t, sub)

	if n, dropped := h.Stats(); n != 1 || dropped != 1 {
		t.Fatalf("stats=%d/%d, want 1/1", n, dropped)
	}
}

func TestHubFiltersByBaby(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	only2 := h.Subscribe(ctx, SubscribeOptions{BabyID: 2})
	all := h.Subscribe(ctx, SubscribeOptions{})

	h.Publish(Event{Type: TypeActivityCreated, BabyID: 1})
	h.Publish(Event{Type: TypeActivityCreated, BabyID: 2})
	h.Publish(Event{Type: TypeBabyCreated})

	if evt := recv(t, only2); evt.BabyID != 2 {
		t.Fatalf("filtered sub got %+v", evt)
	}
	if evt := recv(t, only2); evt.Type != TypeBabyCreated {
		t.Fatalf("filtered sub missed global event, got %+v", evt)
	}
	assertEmpty(t, only2)

	for i := 0; i < 3; i++ {
		recv(t, all)
	}
}

func TestHubUnsubscribeOnCancel(t *testing.T) {
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	sub := h.Subscribe(ctx, SubscribeOptions{})
	cancel()

	select {
	case _, ok := <-sub:
		if ok {
			t.Fatalf("channel should be closed")
		}
	case <-time.After(time.Second):
		t.Fatalf("channel not closed after cancel")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if n, _ := h.Stats(); n == 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if n, _ := h.Stats(); n != 0 {
		t.Fatalf("subscribers=%d after cancel", n)
	}

	var nilHub *Hub
	nilHub.Publish(Event{Type: TypeBabyCreated})
}
