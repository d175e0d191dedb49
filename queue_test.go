package sendero

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

// recordingProvider captures request bodies in delivery order.
type recordingProvider struct {
	mu     sync.Mutex
	bodies []string
}

func (p *recordingProvider) Name() string { return "recorder" }

func (p *recordingProvider) Send(ctx context.Context, req Request) (*DispatchResult, error) {
	p.mu.Lock()
	p.bodies = append(p.bodies, req.Body)
	n := len(p.bodies)
	p.mu.Unlock()
	return &DispatchResult{
		Success:   true,
		MessageID: fmt.Sprintf("rec-%d", n),
		Provider:  "recorder",
		Timestamp: time.Now(),
		To:        req.To,
		Subject:   req.Subject,
	}, nil
}

func (p *recordingProvider) order() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.bodies...)
}

func newTestQueue(p Provider, options ...QueueOption) *Queue {
	d := New(
		WithProviders(p),
		WithMaxRetries(1),
		WithBaseDelay(time.Millisecond),
	)
	base := []QueueOption{
		WithQueueInterval(10 * time.Millisecond),
		WithQueueRetryDelay(time.Millisecond, 2*time.Millisecond),
	}
	return NewQueue(d, append(base, options...)...)
}

func mustEnqueue(t *testing.T, q *Queue, body string, opts EnqueueOptions) string {
	t.Helper()
	id, err := q.Enqueue(Request{To: "ops@example.com", Subject: "s", Body: body}, opts)
	if err != nil {
		t.Fatalf("Enqueue(%q) failed: %v", body, err)
	}
	return id
}

func TestEnqueueRejectsMalformedRequest(t *testing.T) {
	q := newTestQueue(&recordingProvider{})

	_, err := q.Enqueue(Request{Subject: "s", Body: "b"}, EnqueueOptions{})
	if err == nil {
		t.Fatal("Expected enqueue of malformed request to fail")
	}
	if q.Stats().TotalEnqueued != 0 {
		t.Errorf("Expected no items accepted, got %d", q.Stats().TotalEnqueued)
	}
}

func TestQueuePriorityOrdering(t *testing.T) {
	p := &recordingProvider{}
	q := newTestQueue(p, WithQueueConcurrency(1))

	mustEnqueue(t, q, "low", EnqueueOptions{Priority: 1})
	mustEnqueue(t, q, "high", EnqueueOptions{Priority: 10})
	mustEnqueue(t, q, "mid", EnqueueOptions{Priority: 5})

	for i := 0; i < 3; i++ {
		q.processPass()
	}

	want := []string{"high", "mid", "low"}
	got := p.order()
	if len(got) != len(want) {
		t.Fatalf("Expected %d deliveries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("delivery %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestQueueFIFOWithinPriority(t *testing.T) {
	p := &recordingProvider{}
	q := newTestQueue(p, WithQueueConcurrency(1))

	mustEnqueue(t, q, "first", EnqueueOptions{Priority: 3})
	mustEnqueue(t, q, "second", EnqueueOptions{Priority: 3})

	q.processPass()
	q.processPass()

	got := p.order()
	if len(got) != 2 || got[0] != "first" || got[1] != "second" {
		t.Errorf("Expected enqueue order preserved for equal priority, got %v", got)
	}
}

func TestQueueConcurrencyCap(t *testing.T) {
	p := &recordingProvider{}
	q := newTestQueue(p, WithQueueConcurrency(2))

	for i := 0; i < 5; i++ {
		mustEnqueue(t, q, fmt.Sprintf("item-%d", i), EnqueueOptions{})
	}

	q.processPass()

	if got := len(p.order()); got != 2 {
		t.Errorf("Expected one pass to dispatch 2 items, got %d", got)
	}
	stats := q.Stats()
	if stats.Pending != 3 || stats.Completed != 2 {
		t.Errorf("Expected 3 pending / 2 completed, got %d/%d", stats.Pending, stats.Completed)
	}
}

func TestQueueRetryThenSuccess(t *testing.T) {
	flaky := &stubProvider{name: "flaky", failures: 2}
	q := newTestQueue(flaky, WithQueueMaxAttempts(3))

	id := mustEnqueue(t, q, "retry me", EnqueueOptions{})

	for pass := 0; pass < 3; pass++ {
		q.processPass()
		time.Sleep(5 * time.Millisecond)
	}

	view, ok := q.Item(id)
	if !ok {
		t.Fatal("Expected item to be retained")
	}
	if view.Status != StatusCompleted {
		t.Fatalf("Expected completed after retries, got %s (error: %s)", view.Status, view.Error)
	}
	if view.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", view.Attempts)
	}
	if view.MessageID == "" || view.Provider != "flaky" {
		t.Errorf("Expected delivery attribution, got %q/%q", view.MessageID, view.Provider)
	}
	if q.Stats().TotalRetries != 2 {
		t.Errorf("Expected 2 retries counted, got %d", q.Stats().TotalRetries)
	}
}

func TestQueueTerminalFailure(t *testing.T) {
	dead := &stubProvider{name: "dead", failures: -1}
	q := newTestQueue(dead, WithQueueMaxAttempts(2))

	id := mustEnqueue(t, q, "doomed", EnqueueOptions{})

	for pass := 0; pass < 3; pass++ {
		q.processPass()
		time.Sleep(5 * time.Millisecond)
	}

	view, ok := q.Item(id)
	if !ok {
		t.Fatal("Expected failed item to be retained")
	}
	if view.Status != StatusFailed {
		t.Fatalf("Expected failed, got %s", view.Status)
	}
	if view.Attempts != 2 {
		t.Errorf("Expected attempts capped at 2, got %d", view.Attempts)
	}
	if view.Error == "" {
		t.Error("Expected last error to be retained")
	}
	if view.FailedAt.IsZero() {
		t.Error("Expected failure timestamp")
	}
	if q.Stats().TotalFailed != 1 {
		t.Errorf("Expected 1 terminal failure, got %d", q.Stats().TotalFailed)
	}
}

func TestQueueRetryWaitsForBackoff(t *testing.T) {
	dead := &stubProvider{name: "dead", failures: -1}
	q := newTestQueue(dead, WithQueueMaxAttempts(3), WithQueueRetryDelay(time.Hour, 2*time.Hour))

	mustEnqueue(t, q, "backing off", EnqueueOptions{})

	q.processPass()
	// The retry is scheduled an hour out; an immediate pass must skip it.
	q.processPass()

	if dead.callCount() != 1 {
		t.Errorf("Expected no redelivery before the backoff elapses, got %d calls", dead.callCount())
	}
}

func TestQueueItemsFilterAndRedaction(t *testing.T) {
	dead := &stubProvider{name: "dead", failures: -1}
	q := newTestQueue(dead, WithQueueMaxAttempts(1))

	mustEnqueue(t, q, "secret body", EnqueueOptions{})
	mustEnqueue(t, q, "still queued", EnqueueOptions{})

	q.processPass()
	time.Sleep(5 * time.Millisecond)

	all := q.Items(ItemFilter{})
	if len(all) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(all))
	}
	for _, view := range all {
		if view.To != "ops@example.com" || view.Subject != "s" {
			t.Errorf("Expected destination and subject exposed, got %+v", view)
		}
	}

	failed := q.Items(ItemFilter{Status: StatusFailed})
	if len(failed) != 2 {
		t.Errorf("Expected both items failed with maxAttempts=1, got %d", len(failed))
	}

	limited := q.Items(ItemFilter{Limit: 1})
	if len(limited) != 1 {
		t.Errorf("Expected limit to cap the listing, got %d", len(limited))
	}
}

func TestQueueRemove(t *testing.T) {
	q := newTestQueue(&recordingProvider{})

	id := mustEnqueue(t, q, "removable", EnqueueOptions{})

	if !q.Remove(id) {
		t.Error("Expected removal of a pending item to succeed")
	}
	if q.Remove(id) {
		t.Error("Expected second removal to report false")
	}
	if q.Remove("no-such-id") {
		t.Error("Expected removal of unknown ID to report false")
	}
}

func TestQueueClear(t *testing.T) {
	dead := &stubProvider{name: "dead", failures: -1}
	q := newTestQueue(dead, WithQueueMaxAttempts(1))

	mustEnqueue(t, q, "one", EnqueueOptions{})
	q.processPass()
	mustEnqueue(t, q, "two", EnqueueOptions{})

	if removed := q.Clear(StatusFailed); removed != 1 {
		t.Errorf("Expected Clear(failed) to remove 1, got %d", removed)
	}
	if removed := q.Clear(); removed != 1 {
		t.Errorf("Expected unfiltered Clear to remove the pending item, got %d", removed)
	}
	if stats := q.Stats(); stats.Pending+stats.Failed+stats.Completed != 0 {
		t.Errorf("Expected empty queue, got %+v", stats)
	}
}

func TestQueueRetentionSweep(t *testing.T) {
	p := &recordingProvider{}
	q := newTestQueue(p, WithQueueRetention(time.Hour))

	base := time.Now()
	q.now = func() time.Time { return base }

	id := mustEnqueue(t, q, "old news", EnqueueOptions{})
	q.processPass()

	if _, ok := q.Item(id); !ok {
		t.Fatal("Expected completed item to be retained inside the window")
	}

	q.now = func() time.Time { return base.Add(2 * time.Hour) }
	q.sweep()

	if _, ok := q.Item(id); ok {
		t.Error("Expected sweep to evict the item past retention")
	}
}

func TestQueueStartStop(t *testing.T) {
	p := &recordingProvider{}
	q := newTestQueue(p)

	id := mustEnqueue(t, q, "live", EnqueueOptions{})
	q.Start()
	q.Start() // second Start is a no-op

	deadline := time.Now().Add(2 * time.Second)
	for {
		if view, ok := q.Item(id); ok && view.Status == StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for the queue to process the item")
		}
		time.Sleep(5 * time.Millisecond)
	}

	q.Stop()
	q.Stop() // second Stop is a no-op

	// No passes run after Stop returns.
	mustEnqueue(t, q, "after stop", EnqueueOptions{})
	time.Sleep(30 * time.Millisecond)
	if got := q.Stats().Pending; got != 1 {
		t.Errorf("Expected item enqueued after Stop to stay pending, got %d pending", got)
	}
}
