package learning

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladys-ai/gladys/pkg/models"
)

func TestBayesianStrategyDefaults(t *testing.T) {
	s := NewBayesianStrategy(0, 0, 0, nil, 0)
	assert.Equal(t, 0.8, s.ExplicitMagnitude)
	assert.Equal(t, 1.0, s.TimeoutMagnitude)
	assert.Equal(t, 30*time.Second, s.UndoWindow)
	assert.Equal(t, 3, s.IgnoredThreshold)
	assert.Contains(t, s.UndoKeywords, "undo")
}

func TestInterpretExplicit(t *testing.T) {
	s := NewBayesianStrategy(0, 0, 0, nil, 0)
	positive := s.InterpretExplicit("evt1", "h1", true, models.FeedbackExplicit)
	assert.Equal(t, models.SignalPositive, positive.Type)

	negative := s.InterpretExplicit("evt1", "h1", false, models.FeedbackExplicit)
	assert.Equal(t, models.SignalNegative, negative.Type)
}

func TestInterpretEventForUndoWithinWindow(t *testing.T) {
	s := NewBayesianStrategy(0, 0, 30*time.Second, nil, 0)
	fires := []RecentFire{
		{HeuristicID: "h1", EventID: "e1", FiredAt: time.Now().Add(-5 * time.Second)},
		{HeuristicID: "h2", EventID: "e2", FiredAt: time.Now().Add(-time.Minute)},
	}
	signals := s.InterpretEventForUndo("please undo that", fires)
	require.Len(t, signals, 1)
	assert.Equal(t, "h1", signals[0].HeuristicID)
	assert.Equal(t, models.SignalNegative, signals[0].Type)
}

func TestInterpretEventForUndoNoKeyword(t *testing.T) {
	s := NewBayesianStrategy(0, 0, 0, nil, 0)
	fires := []RecentFire{{HeuristicID: "h1", FiredAt: time.Now()}}
	assert.Empty(t, s.InterpretEventForUndo("everything is fine", fires))
}

func TestInterpretIgnoreBelowThreshold(t *testing.T) {
	s := NewBayesianStrategy(0, 0, 0, nil, 3)
	sig := s.InterpretIgnore("h1", 2)
	assert.Equal(t, models.SignalNeutral, sig.Type)
}

func TestInterpretIgnoreAtThreshold(t *testing.T) {
	s := NewBayesianStrategy(0, 0, 0, nil, 3)
	sig := s.InterpretIgnore("h1", 3)
	assert.Equal(t, models.SignalNegative, sig.Type)
	assert.Equal(t, models.FeedbackImplicitIgnored, sig.Source)
}

func TestModuleOnFeedbackAppliesUpdate(t *testing.T) {
	var gotID string
	var gotPositive bool
	var gotSource models.FeedbackSource
	update := func(id string, positive bool, source models.FeedbackSource) error {
		gotID, gotPositive, gotSource = id, positive, source
		return nil
	}
	m := NewModule(NewBayesianStrategy(0, 0, 0, nil, 0), update)
	err := m.OnFeedback("e1", "h1", true, models.FeedbackExplicit)
	require.NoError(t, err)
	assert.Equal(t, "h1", gotID)
	assert.True(t, gotPositive)
	assert.Equal(t, models.FeedbackExplicit, gotSource)
}

func TestModuleOnFeedbackNilUpdaterIsNoop(t *testing.T) {
	m := NewModule(NewBayesianStrategy(0, 0, 0, nil, 0), nil)
	err := m.OnFeedback("e1", "h1", true, models.FeedbackExplicit)
	assert.NoError(t, err)
}

func TestModuleCheckEventForOutcomesDetectsUndo(t *testing.T) {
	var calls []string
	update := func(id string, positive bool, source models.FeedbackSource) error {
		calls = append(calls, id)
		return nil
	}
	m := NewModule(NewBayesianStrategy(0, 0, 30*time.Second, nil, 0), update)
	m.OnFire("h1", "e1", "slack")

	err := m.CheckEventForOutcomes("nevermind, undo that", "slack")
	require.NoError(t, err)
	assert.Contains(t, calls, "h1")
}

func TestModuleCheckEventForOutcomesIgnoreCounterResetsAfterFire(t *testing.T) {
	m := NewModule(NewBayesianStrategy(0, 0, 0, nil, 2), nil)
	m.OnFire("h1", "e1", "slack")

	require.NoError(t, m.CheckEventForOutcomes("still nothing", "slack"))
	require.NoError(t, m.CheckEventForOutcomes("still nothing", "slack"))
	assert.Equal(t, 0, m.ignoreCounts["h1"])
}

func TestModuleCleanupExpiredDropsOldFires(t *testing.T) {
	m := NewModule(NewBayesianStrategy(0, 0, 0, nil, 0), nil)
	m.recentFireTTL = time.Millisecond
	m.OnFire("h1", "e1", "slack")
	time.Sleep(5 * time.Millisecond)
	m.CleanupExpired()
	assert.Empty(t, m.recentFires)
}
