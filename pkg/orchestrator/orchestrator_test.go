package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladys-ai/gladys/pkg/learning"
	"github.com/gladys-ai/gladys/pkg/masking"
	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/outcomewatcher"
	"github.com/gladys-ai/gladys/pkg/rpc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(cfg Config) *Server {
	learn := learning.NewModule(learning.NewBayesianStrategy(0, 0, 0, nil, 0), nil)
	watcher := outcomewatcher.New(func(models.OutcomeExpectation, bool, models.FeedbackSource) {})
	masker := masking.New(true)
	return New(cfg, nil, nil, nil, learn, watcher, masker, nil, testLogger())
}

func TestConfigDefaults(t *testing.T) {
	s := newTestServer(Config{})
	assert.Equal(t, 2*time.Second, s.timeoutScanInterval())
	assert.Equal(t, 30*time.Second, s.eventTimeout())
	assert.Equal(t, 30*time.Second, s.outcomeCleanupInterval())
	assert.Equal(t, 0.95, s.emergencyConfidence())
	assert.Equal(t, 0.9, s.emergencyThreat())
	assert.Equal(t, 5, s.maxCandidates())
	assert.Equal(t, 120*time.Second, s.outcomeTimeout())
}

func TestConfigOverrides(t *testing.T) {
	s := newTestServer(Config{
		TimeoutScanInterval:      time.Second,
		EventTimeoutMS:           5000,
		OutcomeCleanupInterval:   10 * time.Second,
		EmergencyConfidenceThreshold: 0.8,
		EmergencyThreatThreshold:     0.7,
		MaxEvaluationCandidates:      3,
		OutcomeTimeoutSec:            60,
	})
	assert.Equal(t, time.Second, s.timeoutScanInterval())
	assert.Equal(t, 5*time.Second, s.eventTimeout())
	assert.Equal(t, 10*time.Second, s.outcomeCleanupInterval())
	assert.Equal(t, 0.8, s.emergencyConfidence())
	assert.Equal(t, 0.7, s.emergencyThreat())
	assert.Equal(t, 3, s.maxCandidates())
	assert.Equal(t, 60*time.Second, s.outcomeTimeout())
}

func TestWireToEventGeneratesIDWhenMissing(t *testing.T) {
	e := wireToEvent(rpc.EventWire{Source: "slack", RawText: "hi"})
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "slack", e.Source)
}

func TestWireToEventPreservesSalience(t *testing.T) {
	e := wireToEvent(rpc.EventWire{ID: "e1", Salience: &rpc.SalienceWire{Threat: 0.5, Salience: 0.5}})
	require.NotNil(t, e.Salience)
	assert.Equal(t, 0.5, e.Salience.Threat)
}

func TestBroadcastEventRespectsSourceFilter(t *testing.T) {
	s := newTestServer(Config{})
	matching := &eventSubscriber{sourceFilters: map[string]bool{"slack": true}, ch: make(chan *rpc.PublishedEvent, 1)}
	nonMatching := &eventSubscriber{sourceFilters: map[string]bool{"pagerduty": true}, ch: make(chan *rpc.PublishedEvent, 1)}
	s.eventSubs["match"] = matching
	s.eventSubs["nomatch"] = nonMatching

	s.broadcastEvent(models.Event{ID: "e1", Source: "slack"})

	select {
	case ev := <-matching.ch:
		assert.Equal(t, "e1", ev.Event.ID)
	default:
		t.Fatal("matching subscriber never received event")
	}
	select {
	case <-nonMatching.ch:
		t.Fatal("non-matching subscriber should not have received event")
	default:
	}
}

func TestBroadcastEventDropsOnFullChannel(t *testing.T) {
	s := newTestServer(Config{})
	sub := &eventSubscriber{ch: make(chan *rpc.PublishedEvent, 1)}
	sub.ch <- &rpc.PublishedEvent{}
	s.eventSubs["full"] = sub

	assert.NotPanics(t, func() {
		s.broadcastEvent(models.Event{ID: "e2", Source: "slack"})
	})
}

func TestBroadcastResponseRespectsIncludeImmediate(t *testing.T) {
	s := newTestServer(Config{})
	excludesImmediate := &responseSubscriber{includeImmediate: false, ch: make(chan *rpc.Response, 1)}
	includesImmediate := &responseSubscriber{includeImmediate: true, ch: make(chan *rpc.Response, 1)}
	s.responseSubs["exclude"] = excludesImmediate
	s.responseSubs["include"] = includesImmediate

	s.broadcastResponse(&rpc.Response{EventID: "e1"}, true)

	select {
	case <-excludesImmediate.ch:
		t.Fatal("subscriber with includeImmediate=false should not receive immediate response")
	default:
	}
	select {
	case <-includesImmediate.ch:
	default:
		t.Fatal("subscriber with includeImmediate=true should receive immediate response")
	}
}

func TestWatchOutcomeRegistersMatchingTriggers(t *testing.T) {
	s := newTestServer(Config{OutcomePatterns: []outcomewatcher.PatternConfig{
		{TriggerPattern: "restart", OutcomePattern: "still failing", TimeoutSec: 60},
	}})
	s.watchOutcome(models.Heuristic{ID: "h1", ConditionText: "please restart the pod"}, "e1", "restart the pod", 0.9)
	assert.Len(t, s.watcher.Pending(), 1)
}

func TestWatchOutcomeSkipsNonMatchingTriggers(t *testing.T) {
	s := newTestServer(Config{OutcomePatterns: []outcomewatcher.PatternConfig{
		{TriggerPattern: "scale up", OutcomePattern: "still high"},
	}})
	s.watchOutcome(models.Heuristic{ID: "h1", ConditionText: "please restart the pod"}, "e1", "restart the pod", 0.9)
	assert.Empty(t, s.watcher.Pending())
}

func TestGetQueueStatsAndListQueuedEvents(t *testing.T) {
	s := newTestServer(Config{})
	s.q.Push(models.QueuedItem{Event: models.Event{ID: "e1", Source: "slack"}, SalienceScore: 0.5, EnqueuedAt: time.Now()})

	stats, err := s.GetQueueStats(context.Background(), &rpc.Empty{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.QueueSize)
	assert.Equal(t, 1, stats.TotalQueued)

	listed, err := s.ListQueuedEvents(context.Background(), &rpc.ListQueuedEventsRequest{Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed.Events, 1)
	assert.Equal(t, "e1", listed.Events[0].EventID)
}

func TestGetHealthDetailsReportsSubscriberCounts(t *testing.T) {
	s := newTestServer(Config{})
	s.eventSubs["a"] = &eventSubscriber{ch: make(chan *rpc.PublishedEvent)}

	details, err := s.GetHealthDetails(context.Background(), &rpc.Empty{})
	require.NoError(t, err)
	assert.Equal(t, "1", details.Details["event_subscribers"])
}

func TestDeliverLocalDispatchesEventToLocalSubscribers(t *testing.T) {
	s := newTestServer(Config{})
	sub := &eventSubscriber{ch: make(chan *rpc.PublishedEvent, 1)}
	s.eventSubs["a"] = sub

	s.deliverLocal(fanoutMessage{Kind: "event", Event: &rpc.PublishedEvent{Event: rpc.EventWire{ID: "e1", Source: "slack"}}})

	select {
	case ev := <-sub.ch:
		assert.Equal(t, "e1", ev.Event.ID)
	default:
		t.Fatal("deliverLocal did not dispatch event to local subscriber")
	}
}
