package queue

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladys-ai/gladys/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueuePopsHighestSalienceFirst(t *testing.T) {
	q := New()
	q.Push(models.QueuedItem{Event: models.Event{ID: "low"}, SalienceScore: 0.2, EnqueuedAt: time.Now()})
	q.Push(models.QueuedItem{Event: models.Event{ID: "high"}, SalienceScore: 0.9, EnqueuedAt: time.Now()})
	q.Push(models.QueuedItem{Event: models.Event{ID: "mid"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})

	ctx := context.Background()
	first, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "high", first.Event.ID)

	second, ok := q.Pop(ctx)
	require.True(t, ok)
	assert.Equal(t, "mid", second.Event.ID)
}

func TestQueueFIFOWithinSameSalience(t *testing.T) {
	q := New()
	q.Push(models.QueuedItem{Event: models.Event{ID: "first"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})
	q.Push(models.QueuedItem{Event: models.Event{ID: "second"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})

	ctx := context.Background()
	a, _ := q.Pop(ctx)
	b, _ := q.Pop(ctx)
	assert.Equal(t, "first", a.Event.ID)
	assert.Equal(t, "second", b.Event.ID)
}

func TestQueuePopBlocksUntilPush(t *testing.T) {
	q := New()
	ctx := context.Background()
	done := make(chan models.QueuedItem, 1)
	go func() {
		item, ok := q.Pop(ctx)
		if ok {
			done <- item
		}
	}()

	time.Sleep(20 * time.Millisecond)
	q.Push(models.QueuedItem{Event: models.Event{ID: "late"}, SalienceScore: 0.1, EnqueuedAt: time.Now()})

	select {
	case item := <-done:
		assert.Equal(t, "late", item.Event.ID)
	case <-time.After(time.Second):
		t.Fatal("Pop never unblocked after Push")
	}
}

func TestQueuePopReturnsFalseOnClose(t *testing.T) {
	q := New()
	q.Close()
	_, ok := q.Pop(context.Background())
	assert.False(t, ok)
}

func TestQueuePopReturnsFalseOnContextCancel(t *testing.T) {
	q := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, ok := q.Pop(ctx)
	assert.False(t, ok)
}

func TestQueueStats(t *testing.T) {
	q := New()
	q.Push(models.QueuedItem{Event: models.Event{ID: "a"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})
	q.Push(models.QueuedItem{Event: models.Event{ID: "b"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})
	_, _ = q.Pop(context.Background())

	stats := q.Stats()
	assert.Equal(t, 1, stats.QueueSize)
	assert.Equal(t, 2, stats.TotalQueued)
	assert.Equal(t, 1, stats.TotalProcessed)
}

func TestQueueSweepExpiredIncrementsTimedOut(t *testing.T) {
	q := New()
	q.Push(models.QueuedItem{Event: models.Event{ID: "stale"}, SalienceScore: 0.5, EnqueuedAt: time.Now().Add(-time.Hour)})
	q.Push(models.QueuedItem{Event: models.Event{ID: "fresh"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})

	expired := q.sweepExpired(time.Minute)
	require.Len(t, expired, 1)
	assert.Equal(t, "stale", expired[0].Event.ID)
	assert.Equal(t, 1, q.Stats().TotalTimedOut)
	assert.Equal(t, 1, q.Stats().QueueSize)
}

func TestRunTimeoutScannerInvokesCallback(t *testing.T) {
	q := New()
	q.Push(models.QueuedItem{Event: models.Event{ID: "stale"}, SalienceScore: 0.5, EnqueuedAt: time.Now().Add(-time.Hour)})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan string, 1)
	go RunTimeoutScanner(ctx, q, 10*time.Millisecond, time.Minute, func(it models.QueuedItem) {
		fired <- it.Event.ID
	}, testLogger())

	select {
	case id := <-fired:
		assert.Equal(t, "stale", id)
	case <-time.After(time.Second):
		t.Fatal("timeout scanner never fired onTimeout")
	}
}
