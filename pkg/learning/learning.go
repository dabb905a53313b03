// Package learning implements the Learning Module (spec §4.4): the
// pluggable Strategy that turns raw feedback/timeout/undo/ignore signals
// into Signal values the Orchestrator forwards to Memory's confidence
// update. Grounded on the teacher's strategy-interface-plus-default-impl
// shape (pkg/session/manager.go's scorer abstraction), adapted to a
// mutex-guarded recent-fires ring rather than a DB-backed session store,
// per spec §5's "recent-fires list ... guarded by an async lock."
package learning

import (
	"strings"
	"sync"
	"time"

	"github.com/gladys-ai/gladys/pkg/models"
)

// Strategy is spec §4.4's pluggable interpretation policy.
type Strategy interface {
	InterpretExplicit(eventID, heuristicID string, positive bool, source models.FeedbackSource) models.Signal
	InterpretTimeout(heuristicID, eventID string, elapsed time.Duration) models.Signal
	InterpretEventForUndo(text string, recentFires []RecentFire) []models.Signal
	InterpretIgnore(heuristicID string, consecutiveCount int) models.Signal
}

// RecentFire is one entry in the Orchestrator's short-lived recent-fires
// ring, the input to undo detection.
type RecentFire struct {
	HeuristicID string
	EventID     string
	Source      string
	FiredAt     time.Time
}

// BayesianStrategy is the default strategy from spec §4.4.
type BayesianStrategy struct {
	ExplicitMagnitude  float64
	TimeoutMagnitude   float64
	UndoWindow         time.Duration
	UndoKeywords       []string
	IgnoredThreshold   int
}

// NewBayesianStrategy builds the default strategy from config-driven
// values, falling back to spec §4.4's documented defaults for zero
// values.
func NewBayesianStrategy(explicitMagnitude, timeoutMagnitude float64, undoWindow time.Duration, undoKeywords []string, ignoredThreshold int) *BayesianStrategy {
	if explicitMagnitude == 0 {
		explicitMagnitude = 0.8
	}
	if timeoutMagnitude == 0 {
		timeoutMagnitude = 1.0
	}
	if undoWindow == 0 {
		undoWindow = 30 * time.Second
	}
	if len(undoKeywords) == 0 {
		undoKeywords = []string{"undo", "revert", "cancel", "rollback", "nevermind", "never mind"}
	}
	if ignoredThreshold == 0 {
		ignoredThreshold = 3
	}
	return &BayesianStrategy{
		ExplicitMagnitude: explicitMagnitude,
		TimeoutMagnitude:  timeoutMagnitude,
		UndoWindow:        undoWindow,
		UndoKeywords:      undoKeywords,
		IgnoredThreshold:  ignoredThreshold,
	}
}

var _ Strategy = (*BayesianStrategy)(nil)

func (b *BayesianStrategy) InterpretExplicit(eventID, heuristicID string, positive bool, source models.FeedbackSource) models.Signal {
	t := models.SignalNegative
	if positive {
		t = models.SignalPositive
	}
	return models.Signal{Type: t, HeuristicID: heuristicID, EventID: eventID, Source: source, Magnitude: b.ExplicitMagnitude}
}

func (b *BayesianStrategy) InterpretTimeout(heuristicID, eventID string, elapsed time.Duration) models.Signal {
	return models.Signal{Type: models.SignalPositive, HeuristicID: heuristicID, EventID: eventID, Source: models.FeedbackImplicitTimeout, Magnitude: b.TimeoutMagnitude}
}

func (b *BayesianStrategy) InterpretEventForUndo(text string, recentFires []RecentFire) []models.Signal {
	if !containsAny(strings.ToLower(text), b.UndoKeywords) {
		return nil
	}
	now := time.Now()
	var signals []models.Signal
	for _, f := range recentFires {
		if now.Sub(f.FiredAt) > b.UndoWindow {
			continue
		}
		signals = append(signals, models.Signal{
			Type:        models.SignalNegative,
			HeuristicID: f.HeuristicID,
			EventID:     f.EventID,
			Source:      models.FeedbackImplicitUndo,
			Magnitude:   b.ExplicitMagnitude,
		})
	}
	return signals
}

func (b *BayesianStrategy) InterpretIgnore(heuristicID string, consecutiveCount int) models.Signal {
	if consecutiveCount < b.IgnoredThreshold {
		return models.Signal{Type: models.SignalNeutral, HeuristicID: heuristicID}
	}
	return models.Signal{
		Type:        models.SignalNegative,
		HeuristicID: heuristicID,
		Source:      models.FeedbackImplicitIgnored,
		Magnitude:   b.ExplicitMagnitude,
	}
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if n == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// ConfidenceUpdater is the callback the Module uses to apply a resolved
// Signal; pkg/orchestrator wires this to a Memory RPC call.
type ConfidenceUpdater func(heuristicID string, positive bool, source models.FeedbackSource) error

// Module owns the recent-fires ring and per-heuristic ignore counters
// that the strategy needs, and drives onFeedback/onFire/
// checkEventForOutcomes/cleanupExpired as named in spec §4.4.
type Module struct {
	strategy Strategy
	update   ConfidenceUpdater

	mu            sync.Mutex
	recentFires   []RecentFire
	ignoreCounts  map[string]int
	maxRecentFires int
	recentFireTTL time.Duration
}

func NewModule(strategy Strategy, update ConfidenceUpdater) *Module {
	return &Module{
		strategy:       strategy,
		update:         update,
		ignoreCounts:   make(map[string]int),
		maxRecentFires: 256,
		recentFireTTL:  2 * time.Minute,
	}
}

// OnFire records a fire in the recent-fires ring for later undo
// detection, and resets the ignore counter for any OTHER fire from the
// same source (a new fire means the prior one was superseded, not
// ignored — ignore detection only fires on genuinely untouched fires).
func (m *Module) OnFire(heuristicID, eventID, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recentFires = append(m.recentFires, RecentFire{HeuristicID: heuristicID, EventID: eventID, Source: source, FiredAt: time.Now()})
	if len(m.recentFires) > m.maxRecentFires {
		m.recentFires = m.recentFires[len(m.recentFires)-m.maxRecentFires:]
	}
}

// OnFeedback applies explicit feedback through the strategy and the
// configured ConfidenceUpdater.
func (m *Module) OnFeedback(eventID, heuristicID string, positive bool, source models.FeedbackSource) error {
	signal := m.strategy.InterpretExplicit(eventID, heuristicID, positive, source)
	return m.apply(signal)
}

// OnTimeout applies a no-complaint-within-window positive signal.
func (m *Module) OnTimeout(heuristicID, eventID string, elapsed time.Duration) error {
	signal := m.strategy.InterpretTimeout(heuristicID, eventID, elapsed)
	return m.apply(signal)
}

// CheckEventForOutcomes is called before routing a new event (§4.4): it
// looks for undo language against the recent-fires ring, and tracks the
// same-source-repeat-without-feedback pattern that feeds
// InterpretIgnore.
func (m *Module) CheckEventForOutcomes(text, source string) error {
	m.mu.Lock()
	fires := make([]RecentFire, len(m.recentFires))
	copy(fires, m.recentFires)
	m.mu.Unlock()

	for _, signal := range m.strategy.InterpretEventForUndo(text, fires) {
		if err := m.apply(signal); err != nil {
			return err
		}
	}

	m.mu.Lock()
	var lastFromSource *RecentFire
	for i := len(m.recentFires) - 1; i >= 0; i-- {
		if m.recentFires[i].Source == source {
			lastFromSource = &m.recentFires[i]
			break
		}
	}
	var ignoreSignal *models.Signal
	if lastFromSource != nil {
		m.ignoreCounts[lastFromSource.HeuristicID]++
		count := m.ignoreCounts[lastFromSource.HeuristicID]
		s := m.strategy.InterpretIgnore(lastFromSource.HeuristicID, count)
		if s.Type != models.SignalNeutral {
			ignoreSignal = &s
			m.ignoreCounts[lastFromSource.HeuristicID] = 0
		}
	}
	m.mu.Unlock()

	if ignoreSignal != nil {
		return m.apply(*ignoreSignal)
	}
	return nil
}

// CleanupExpired drops recent-fires entries outside the TTL window,
// called on an interval from the Orchestrator per spec §5's cleanup-loop
// suspension point.
func (m *Module) CleanupExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := time.Now().Add(-m.recentFireTTL)
	kept := m.recentFires[:0]
	for _, f := range m.recentFires {
		if f.FiredAt.After(cutoff) {
			kept = append(kept, f)
		}
	}
	m.recentFires = kept
}

func (m *Module) apply(signal models.Signal) error {
	if signal.Type == models.SignalNeutral || signal.HeuristicID == "" {
		return nil
	}
	if m.update == nil {
		return nil
	}
	return m.update(signal.HeuristicID, signal.Type == models.SignalPositive, signal.Source)
}
