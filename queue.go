package sendero

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/senderokit/sendero/internal/backoff"
)

// ItemStatus is the lifecycle status of a queued item.
type ItemStatus string

const (
	StatusPending    ItemStatus = "pending"
	StatusProcessing ItemStatus = "processing"
	StatusCompleted  ItemStatus = "completed"
	StatusFailed     ItemStatus = "failed"
)

// EnqueueOptions carries per-item dispatch options.
type EnqueueOptions struct {
	// Priority orders pending items; higher dispatches first. Items of equal
	// priority process in enqueue order.
	Priority int

	// MaxAttempts caps dispatch attempts before the item is marked failed.
	// Zero uses the queue default.
	MaxAttempts int
}

// queueItem is the queue-owned mutable record for one enqueued request.
// It is mutated only by the processing loop under the queue lock.
type queueItem struct {
	id          string
	seq         uint64
	request     Request
	priority    int
	maxAttempts int
	attempts    int
	status      ItemStatus
	result      *DispatchResult
	lastErr     error
	createdAt   time.Time
	completedAt time.Time
	failedAt    time.Time
	nextAttempt time.Time
}

// QueueItemView is a read-only projection of a queue item. Payload fields are
// redacted to destination and subject.
type QueueItemView struct {
	ID          string     `json:"id"`
	To          string     `json:"to"`
	Subject     string     `json:"subject"`
	Status      ItemStatus `json:"status"`
	Priority    int        `json:"priority"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt time.Time  `json:"completedAt,omitzero"`
	FailedAt    time.Time  `json:"failedAt,omitzero"`
	NextAttempt time.Time  `json:"nextAttempt,omitzero"`
	MessageID   string     `json:"messageId,omitempty"`
	Provider    string     `json:"provider,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// ItemFilter selects queue items for listing.
type ItemFilter struct {
	// Status restricts the listing to one lifecycle status; empty means all.
	Status ItemStatus

	// Limit caps the number of returned items; zero means no cap.
	Limit int
}

// QueueStats reports current item counts and cumulative totals.
type QueueStats struct {
	Pending        int   `json:"pending"`
	Processing     int   `json:"processing"`
	Completed      int   `json:"completed"`
	Failed         int   `json:"failed"`
	TotalEnqueued  int64 `json:"totalEnqueued"`
	TotalCompleted int64 `json:"totalCompleted"`
	TotalFailed    int64 `json:"totalFailed"`
	TotalRetries   int64 `json:"totalRetries"`
}

// Queue buffers requests and drives them through a Dispatcher on a fixed
// interval, up to maxConcurrency concurrently per pass, with its own retry
// policy per item. Completed and failed items are retained for inspection
// until the retention sweep removes them. Safe for concurrent use.
type Queue struct {
	dispatcher *Dispatcher

	interval           time.Duration
	maxConcurrency     int
	defaultMaxAttempts int
	retention          time.Duration
	backoff            *backoff.Calculator

	mu      sync.Mutex
	items   map[string]*queueItem
	nextSeq uint64

	totalEnqueued  int64
	totalCompleted int64
	totalFailed    int64
	totalRetries   int64

	runMu   sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool

	metrics *MetricsCollector
	logger  Logger
	now     func() time.Time
}

// QueueOption configures a Queue at construction time.
type QueueOption func(*Queue)

// WithQueueInterval sets the processing pass interval.
func WithQueueInterval(interval time.Duration) QueueOption {
	return func(q *Queue) { q.interval = interval }
}

// WithQueueConcurrency caps how many items one pass dispatches concurrently.
func WithQueueConcurrency(n int) QueueOption {
	return func(q *Queue) { q.maxConcurrency = n }
}

// WithQueueMaxAttempts sets the default per-item attempt cap.
func WithQueueMaxAttempts(n int) QueueOption {
	return func(q *Queue) { q.defaultMaxAttempts = n }
}

// WithQueueRetryDelay sets the item retry backoff constants, independent of
// the dispatcher's.
func WithQueueRetryDelay(base, max time.Duration) QueueOption {
	return func(q *Queue) {
		q.backoff = backoff.NewCalculator(nil, rand.Float64, base, max, 2.0, 0.1)
	}
}

// WithQueueRetention sets how long settled items are kept before the sweep
// evicts them.
func WithQueueRetention(retention time.Duration) QueueOption {
	return func(q *Queue) { q.retention = retention }
}

// WithQueueLogger sets the queue logger.
func WithQueueLogger(logger Logger) QueueOption {
	return func(q *Queue) { q.logger = logger }
}

// WithQueueMetricsCollector sets the metrics collector used for queue gauges.
func WithQueueMetricsCollector(collector *MetricsCollector) QueueOption {
	return func(q *Queue) { q.metrics = collector }
}

// NewQueue creates a queue feeding the given dispatcher. Call Start to begin
// processing.
func NewQueue(dispatcher *Dispatcher, options ...QueueOption) *Queue {
	q := &Queue{
		dispatcher:         dispatcher,
		interval:           time.Second,
		maxConcurrency:     5,
		defaultMaxAttempts: 3,
		retention:          24 * time.Hour,
		items:              make(map[string]*queueItem),
		now:                time.Now,
	}
	for _, option := range options {
		option(q)
	}
	if q.backoff == nil {
		q.backoff = backoff.NewCalculator(nil, rand.Float64, time.Second, 5*time.Minute, 2.0, 0.1)
	}
	return q
}

// Enqueue adds a request and returns its item ID. Malformed requests are
// rejected here rather than burning queue attempts on a permanent error.
func (q *Queue) Enqueue(req Request, opts EnqueueOptions) (string, error) {
	if err := validateRequest(req); err != nil {
		return "", err
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = q.defaultMaxAttempts
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	q.nextSeq++
	item := &queueItem{
		id:          ulid.Make().String(),
		seq:         q.nextSeq,
		request:     req,
		priority:    opts.Priority,
		maxAttempts: maxAttempts,
		status:      StatusPending,
		createdAt:   q.now(),
	}
	q.items[item.id] = item
	q.totalEnqueued++

	if q.logger != nil {
		q.logger.Debug("enqueued", "id", item.id, "to", req.To, "priority", item.priority)
	}
	return item.id, nil
}

// Start launches the processing loop. It is a no-op if already running.
func (q *Queue) Start() {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if q.running {
		return
	}
	q.running = true
	q.stopCh = make(chan struct{})
	q.wg.Add(1)
	go q.run(q.stopCh)
}

// Stop halts the processing loop cooperatively: the current pass, including
// its in-flight dispatches, runs to completion before the loop exits.
func (q *Queue) Stop() {
	q.runMu.Lock()
	defer q.runMu.Unlock()
	if !q.running {
		return
	}
	close(q.stopCh)
	q.wg.Wait()
	q.running = false
}

func (q *Queue) run(stopCh chan struct{}) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			q.processPass()
			q.sweep()
			q.updateGauges()
		}
	}
}

// processPass selects up to maxConcurrency ready pending items in priority
// order and dispatches them concurrently, waiting for all of them to settle.
// One item's failure never aborts the pass.
func (q *Queue) processPass() {
	now := q.now()

	q.mu.Lock()
	ready := make([]*queueItem, 0, q.maxConcurrency)
	for _, item := range q.items {
		if item.status == StatusPending && !item.nextAttempt.After(now) {
			ready = append(ready, item)
		}
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].priority != ready[j].priority {
			return ready[i].priority > ready[j].priority
		}
		return ready[i].seq < ready[j].seq
	})
	if len(ready) > q.maxConcurrency {
		ready = ready[:q.maxConcurrency]
	}
	for _, item := range ready {
		item.status = StatusProcessing
		item.attempts++
	}
	q.mu.Unlock()

	if len(ready) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, item := range ready {
		wg.Add(1)
		go func(item *queueItem) {
			defer wg.Done()
			q.processItem(item)
		}(item)
	}
	wg.Wait()
}

func (q *Queue) processItem(item *queueItem) {
	result, err := q.dispatcher.Send(context.Background(), item.request)

	q.mu.Lock()
	defer q.mu.Unlock()

	if err == nil {
		item.status = StatusCompleted
		item.result = result
		item.completedAt = q.now()
		q.totalCompleted++
		if q.metrics != nil {
			q.metrics.RecordQueueProcessed("completed")
		}
		if q.logger != nil {
			q.logger.Info("item completed", "id", item.id, "provider", result.Provider, "attempts", item.attempts)
		}
		return
	}

	item.lastErr = err

	// Permanent errors are not worth further attempts.
	var dispatchErr *DispatchError
	permanent := errors.As(err, &dispatchErr) && dispatchErr.Type == ErrorTypeValidation

	if !permanent && item.attempts < item.maxAttempts {
		item.status = StatusPending
		item.nextAttempt = q.now().Add(q.backoff.Delay(item.attempts))
		q.totalRetries++
		if q.metrics != nil {
			q.metrics.RecordQueueProcessed("retried")
		}
		if q.logger != nil {
			q.logger.Warn("item retry scheduled", "id", item.id, "attempts", item.attempts, "nextAttempt", item.nextAttempt, "error", err.Error())
		}
		return
	}

	item.status = StatusFailed
	item.failedAt = q.now()
	q.totalFailed++
	if q.metrics != nil {
		q.metrics.RecordQueueProcessed("failed")
	}
	if q.logger != nil {
		q.logger.Error("item failed", "id", item.id, "attempts", item.attempts, "error", err.Error())
	}
}

// sweep evicts settled items older than the retention window.
func (q *Queue) sweep() {
	cutoff := q.now().Add(-q.retention)

	q.mu.Lock()
	defer q.mu.Unlock()

	for id, item := range q.items {
		switch item.status {
		case StatusCompleted:
			if item.completedAt.Before(cutoff) {
				delete(q.items, id)
			}
		case StatusFailed:
			if item.failedAt.Before(cutoff) {
				delete(q.items, id)
			}
		}
	}
}

func (q *Queue) updateGauges() {
	if q.metrics == nil {
		return
	}
	stats := q.Stats()
	q.metrics.RecordQueueItems(string(StatusPending), stats.Pending)
	q.metrics.RecordQueueItems(string(StatusProcessing), stats.Processing)
	q.metrics.RecordQueueItems(string(StatusCompleted), stats.Completed)
	q.metrics.RecordQueueItems(string(StatusFailed), stats.Failed)
}

// Stats returns current item counts and cumulative totals.
func (q *Queue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := QueueStats{
		TotalEnqueued:  q.totalEnqueued,
		TotalCompleted: q.totalCompleted,
		TotalFailed:    q.totalFailed,
		TotalRetries:   q.totalRetries,
	}
	for _, item := range q.items {
		switch item.status {
		case StatusPending:
			stats.Pending++
		case StatusProcessing:
			stats.Processing++
		case StatusCompleted:
			stats.Completed++
		case StatusFailed:
			stats.Failed++
		}
	}
	return stats
}

// Remove deletes one item by ID. Items currently processing are not removed.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, exists := q.items[id]
	if !exists || item.status == StatusProcessing {
		return false
	}
	delete(q.items, id)
	return true
}

// Clear removes items matching any of the given statuses, or every
// non-processing item when no filter is given. It returns how many were
// removed.
func (q *Queue) Clear(statuses ...ItemStatus) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	removed := 0
	for id, item := range q.items {
		if item.status == StatusProcessing {
			continue
		}
		if len(statuses) > 0 && !containsStatus(statuses, item.status) {
			continue
		}
		delete(q.items, id)
		removed++
	}
	return removed
}

// Items lists queue contents matching the filter, redacted to destination
// and subject, ordered by enqueue time.
func (q *Queue) Items(filter ItemFilter) []QueueItemView {
	q.mu.Lock()
	matched := make([]*queueItem, 0, len(q.items))
	for _, item := range q.items {
		if filter.Status != "" && item.status != filter.Status {
			continue
		}
		matched = append(matched, item)
	}
	q.mu.Unlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	views := make([]QueueItemView, len(matched))
	for i, item := range matched {
		views[i] = item.view()
	}
	return views
}

// Item returns one item by ID.
func (q *Queue) Item(id string) (QueueItemView, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	item, exists := q.items[id]
	if !exists {
		return QueueItemView{}, false
	}
	return item.view(), true
}

// view must be called with q.mu held.
func (item *queueItem) view() QueueItemView {
	view := QueueItemView{
		ID:          item.id,
		To:          item.request.To,
		Subject:     item.request.Subject,
		Status:      item.status,
		Priority:    item.priority,
		Attempts:    item.attempts,
		MaxAttempts: item.maxAttempts,
		CreatedAt:   item.createdAt,
		CompletedAt: item.completedAt,
		FailedAt:    item.failedAt,
		NextAttempt: item.nextAttempt,
	}
	if item.result != nil {
		view.MessageID = item.result.MessageID
		view.Provider = item.result.Provider
	}
	if item.lastErr != nil {
		view.Error = item.lastErr.Error()
	}
	return view
}

func containsStatus(statuses []ItemStatus, status ItemStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
