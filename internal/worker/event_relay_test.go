package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aryan0dhankhar/tasktracker/internal/events"
)

type fakePublisher struct {
	mu   sync.Mutex
	sent []events.TaskEvent
	err  error
}

func (p *fakePublisher) Publish(ctx context.Context, ev events.TaskEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, ev)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sent)
}

func TestRelayPublishesQueuedEvents(t *testing.T) {
	pub := &fakePublisher{}
	relay := NewEventRelay(pub, 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		relay.Start(ctx)
		close(done)
	}()

	for i := 0; i < 3; i++ {
		if !relay.Enqueue(events.TaskEvent{Type: events.TaskCreated, TaskID: "t", TenantID: "a1"}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	if pub.count() != 3 {
		t.Fatalf("expected 3 events, got %d", pub.count())
	}
}

func TestRelayFlushesOnShutdown(t *testing.T) {
	pub := &fakePublisher{}
	relay := NewEventRelay(pub, 8, nil)
	relay.Enqueue(events.TaskEvent{Type: events.TaskDeleted, TaskID: "t1"})
	relay.Enqueue(events.TaskEvent{Type: events.TaskDeleted, TaskID: "t2"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	relay.Start(ctx)

	if pub.count() != 2 {
		t.Fatalf("expected queued events to be flushed, got %d", pub.count())
	}
}

func TestRelayDropsWhenFull(t *testing.T) {
	relay := NewEventRelay(&fakePublisher{}, 1, nil)
	if !relay.Enqueue(events.TaskEvent{TaskID: "t1"}) {
		t.Fatalf("first enqueue should fit")
	}
	if relay.Enqueue(events.TaskEvent{TaskID: "t2"}) {
		t.Fatalf("second enqueue should be dropped")
	}
}

func TestRelayOpensCircuitOnFailures(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	relay := NewEventRelay(pub, 8, nil)
	relay.retry.InitialBackoff = 0
	relay.retry.MaxBackoff = 0

	for i := 0; i < 4; i++ {
		relay.publish(context.Background(), events.TaskEvent{TaskID: "t"})
	}
	if relay.breaker.AllowRequest() {
		t.Fatalf("expected breaker to be open after repeated failures")
	}
}
