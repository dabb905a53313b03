package outcomewatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladys-ai/gladys/pkg/models"
)

func TestParsePatternsEmpty(t *testing.T) {
	patterns, err := ParsePatterns("")
	require.NoError(t, err)
	assert.Nil(t, patterns)
}

func TestParsePatternsValid(t *testing.T) {
	raw := `[{"trigger_pattern":"restart","outcome_pattern":"still down","timeout_sec":300,"is_success":true}]`
	patterns, err := ParsePatterns(raw)
	require.NoError(t, err)
	require.Len(t, patterns, 1)
	assert.Equal(t, "restart", patterns[0].TriggerPattern)
	assert.Equal(t, 300, patterns[0].TimeoutSec)
}

func TestParsePatternsInvalidJSON(t *testing.T) {
	_, err := ParsePatterns("not json")
	assert.Error(t, err)
}

func TestMatchTriggers(t *testing.T) {
	patterns := []PatternConfig{
		{TriggerPattern: "restart the service"},
		{TriggerPattern: "scale up"},
	}
	matched := MatchTriggers(patterns, "please restart the service now")
	require.Len(t, matched, 1)
	assert.Equal(t, "restart the service", matched[0].TriggerPattern)
}

func TestWatcherCheckEventResolvesMatch(t *testing.T) {
	var resolved []models.OutcomeExpectation
	w := New(func(exp models.OutcomeExpectation, positive bool, source models.FeedbackSource) {
		resolved = append(resolved, exp)
	})
	w.Watch(models.OutcomeExpectation{HeuristicID: "h1", OutcomePattern: "all clear", ExpiresAt: time.Now().Add(time.Hour)})

	w.CheckEvent("system status: all clear")
	require.Len(t, resolved, 1)
	assert.Equal(t, "h1", resolved[0].HeuristicID)
	assert.Empty(t, w.Pending())
}

func TestWatcherCheckEventRegexMatch(t *testing.T) {
	var resolved []models.OutcomeExpectation
	w := New(func(exp models.OutcomeExpectation, positive bool, source models.FeedbackSource) {
		resolved = append(resolved, exp)
	})
	w.Watch(models.OutcomeExpectation{HeuristicID: "h1", OutcomePattern: `cpu at \d+%`, IsRegex: true, ExpiresAt: time.Now().Add(time.Hour)})

	w.CheckEvent("cpu at 42% and falling")
	require.Len(t, resolved, 1)
}

func TestWatcherCheckEventNoMatchLeavesPending(t *testing.T) {
	w := New(func(models.OutcomeExpectation, bool, models.FeedbackSource) {})
	w.Watch(models.OutcomeExpectation{HeuristicID: "h1", OutcomePattern: "all clear", ExpiresAt: time.Now().Add(time.Hour)})

	w.CheckEvent("unrelated event")
	assert.Len(t, w.Pending(), 1)
}

func TestWatcherTickFlushesExpiredAsPositive(t *testing.T) {
	var gotPositive bool
	var gotSource models.FeedbackSource
	w := New(func(exp models.OutcomeExpectation, positive bool, source models.FeedbackSource) {
		gotPositive, gotSource = positive, source
	})
	w.Watch(models.OutcomeExpectation{HeuristicID: "h1", ExpiresAt: time.Now().Add(-time.Minute)})

	w.Tick()
	assert.True(t, gotPositive)
	assert.Equal(t, models.FeedbackImplicitTimeout, gotSource)
	assert.Empty(t, w.Pending())
}

func TestWatcherTickLeavesUnexpired(t *testing.T) {
	w := New(func(models.OutcomeExpectation, bool, models.FeedbackSource) {})
	w.Watch(models.OutcomeExpectation{HeuristicID: "h1", ExpiresAt: time.Now().Add(time.Hour)})

	w.Tick()
	assert.Len(t, w.Pending(), 1)
}

func TestWatcherRunStopsOnContextCancel(t *testing.T) {
	w := New(func(models.OutcomeExpectation, bool, models.FeedbackSource) {})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		w.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
