package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/spec-kit/locate-service/internal/domain"
)

func TestQueueOffer(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	if !q.Offer(domain.Trigger{TicketID: "a"}) || !q.Offer(domain.Trigger{TicketID: "b"}) {
		t.Fatal("offers within capacity rejected")
	}
	// Full: Offer must refuse without blocking.
	if q.Offer(domain.Trigger{TicketID: "c"}) {
		t.Error("Offer accepted beyond capacity")
	}

	got := <-q.Source()
	if got.TicketID != "a" {
		t.Errorf("dequeued %s, want a", got.TicketID)
	}
	if !q.Offer(domain.Trigger{TicketID: "c"}) {
		t.Error("Offer rejected after space freed")
	}
}

func TestQueueOfferAfterClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	q.Offer(domain.Trigger{TicketID: "a"})
	q.Close()
	q.Close() // idempotent

	if q.Offer(domain.Trigger{TicketID: "b"}) {
		t.Error("Offer accepted on closed queue")
	}

	// What was accepted before Close stays drainable.
	got, ok := <-q.Source()
	if !ok || got.TicketID != "a" {
		t.Errorf("drain after close = (%v, %v), want trigger a", got, ok)
	}
	if _, ok := <-q.Source(); ok {
		t.Error("source not closed after drain")
	}
}

func TestPoolDrainsOnShutdown(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-field")}

	q := NewQueue(8)
	q.Offer(routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	pool := NewPool(q, f.dispatcher, 2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for len(f.gateway.sent()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("queued trigger was never dispatched")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after context cancellation")
	}
}

func TestPoolDrainDeliversAfterCancel(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()
	f.subs.enabled = []domain.AlertSubscription{subscription("sub-office")}

	q := NewQueue(8)
	q.Offer(routineTrigger(domain.AlertDeadline48H, domain.PriorityHigh))

	// The run context is already dead; the queued trigger must still send
	// during the drain instead of failing on a cancelled context.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		NewPool(q, f.dispatcher, 1, nil).Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain after context cancellation")
	}

	if got := len(f.gateway.sent()); got == 0 {
		t.Error("queued trigger was discarded instead of drained")
	}
	if got := len(f.alerts.byStatus(domain.AlertFailed)); got != 0 {
		t.Errorf("failed rows = %d, want 0", got)
	}
}
