package messaging

import (
	"context"
	"testing"
	"time"

	"pollwarden/contexts/polling/vote-engine/ports"
)

func TestBusDeliversToSubscribers(t *testing.T) {
	bus := NewBus(4, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan ports.EventEnvelope, 1)
	if err := bus.Subscribe(ctx, "vote.closed", "test-cg", func(_ context.Context, event ports.EventEnvelope) error {
		received <- event
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	if err := bus.Publish(ctx, "vote.closed", ports.EventEnvelope{EventID: "evt-1", EventType: "vote.closed"}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if err := bus.Publish(ctx, "vote.published", ports.EventEnvelope{EventID: "evt-2"}); err != nil {
		t.Fatalf("publish without subscribers failed: %v", err)
	}

	select {
	case event := <-received:
		if event.EventID != "evt-1" {
			t.Fatalf("unexpected event %s", event.EventID)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("event was not delivered")
	}
}

func TestBusPublishHonoursContextWhenFull(t *testing.T) {
	bus := NewBus(1, nil)
	subCtx, stop := context.WithCancel(context.Background())
	defer stop()
	block := make(chan struct{})
	defer close(block)
	if err := bus.Subscribe(subCtx, "vote.moderated", "test-cg", func(context.Context, ports.EventEnvelope) error {
		<-block
		return nil
	}); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = bus.Publish(ctx, "vote.moderated", ports.EventEnvelope{EventID: "evt"})
	}
	if err == nil {
		t.Fatalf("expected publish to stop once the subscriber buffer stayed full")
	}
}
