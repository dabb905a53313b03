// Package queue implements the Orchestrator's priority queue (spec §4.1,
// §5): an in-process max-heap keyed by salience with FIFO tie-break,
// a single consumer worker loop that blocks on a condition variable when
// empty, and a separate timeout scanner. This is explicitly NOT backed
// by the persistent store (spec's queued-path is lossy across restarts
// by design) — the teacher's DB-polling queue/worker.go shape doesn't
// apply here; the start/stop/WaitGroup lifecycle discipline it uses
// does, and is carried over below.
package queue

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gladys-ai/gladys/pkg/models"
)

// item wraps a QueuedItem with its heap index for container/heap.
type item struct {
	value *models.QueuedItem
	index int
}

type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }
func (h itemHeap) Less(i, j int) bool {
	if h[i].value.SalienceScore != h[j].value.SalienceScore {
		return h[i].value.SalienceScore > h[j].value.SalienceScore
	}
	return h[i].value.Seq() < h[j].value.Seq() // FIFO within a salience level
}
func (h itemHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *itemHeap) Push(x any) {
	it := x.(*item)
	it.index = len(*h)
	*h = append(*h, it)
}
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}

// Stats mirrors rpc.QueueStats.
type Stats struct {
	QueueSize      int
	TotalQueued    int
	TotalProcessed int
	TotalTimedOut  int
}

// Queue is the salience-ordered priority queue described in spec §4.1.
// The heap and counters are guarded by mu; Pop blocks on cond until an
// item is available or the queue is closed.
type Queue struct {
	mu   sync.Mutex
	cond *sync.Cond
	h    itemHeap
	seq  uint64

	closed bool

	totalQueued    int
	totalProcessed int
	totalTimedOut  int
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues an item, stamping it with a monotonic sequence number for
// FIFO tie-break, and signals the condition variable.
func (q *Queue) Push(it models.QueuedItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.seq++
	it.SetSeq(q.seq)
	heap.Push(&q.h, &item{value: &it})
	q.totalQueued++
	q.cond.Signal()
}

// Pop blocks until the highest-priority item is available, the queue is
// closed (returns false), or ctx is cancelled (returns false).
func (q *Queue) Pop(ctx context.Context) (models.QueuedItem, bool) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.h) == 0 && !q.closed && ctx.Err() == nil {
		q.cond.Wait()
	}
	if len(q.h) == 0 {
		return models.QueuedItem{}, false
	}
	it := heap.Pop(&q.h).(*item)
	q.totalProcessed++
	return *it.value, true
}

// Close unblocks any Pop waiters permanently.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Stats returns a point-in-time snapshot for Orchestrator.GetQueueStats.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		QueueSize:      len(q.h),
		TotalQueued:    q.totalQueued,
		TotalProcessed: q.totalProcessed,
		TotalTimedOut:  q.totalTimedOut,
	}
}

// Snapshot returns up to limit queued (not-yet-popped) items, for
// Orchestrator.ListQueuedEvents. Order is heap order, not priority order.
func (q *Queue) Snapshot(limit int) []models.QueuedItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.h)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]models.QueuedItem, n)
	for i := 0; i < n; i++ {
		out[i] = *q.h[i].value
	}
	return out
}

// sweepExpired removes and returns items older than maxAge, incrementing
// totalTimedOut. Called by the timeout scanner goroutine.
func (q *Queue) sweepExpired(maxAge time.Duration) []models.QueuedItem {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-maxAge)
	var expired []models.QueuedItem
	var kept itemHeap
	for _, it := range q.h {
		if it.value.EnqueuedAt.Before(cutoff) {
			expired = append(expired, *it.value)
			continue
		}
		kept = append(kept, it)
	}
	q.h = kept
	heap.Init(&q.h)
	q.totalTimedOut += len(expired)
	return expired
}

// TimeoutFunc is invoked once per expired item, outside the queue lock.
type TimeoutFunc func(models.QueuedItem)

// RunTimeoutScanner runs spec §4.1's "separate timeout scanner" on an
// interval until ctx is cancelled.
func RunTimeoutScanner(ctx context.Context, q *Queue, interval, maxAge time.Duration, onTimeout TimeoutFunc, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired := q.sweepExpired(maxAge)
			for _, it := range expired {
				func() {
					defer func() {
						if r := recover(); r != nil {
							logger.Error("timeout handler panicked", "recovered", r, "event_id", it.Event.ID)
						}
					}()
					onTimeout(it)
				}()
			}
		}
	}
}
