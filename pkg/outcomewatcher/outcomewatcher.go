// Package outcomewatcher implements spec §4.5's Outcome Watcher: pending
// OutcomeExpectations with TTLs, matched against incoming event text, and
// flushed as POSITIVE ("no news is good news") on timeout. Grounded on
// the teacher's interval-ticker-plus-mutex-guarded-slice cleanup loops
// (e.g. pkg/cleanup), generalized from a fixed retention sweep to
// pattern-matched expectation resolution.
package outcomewatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/gladys-ai/gladys/pkg/models"
)

// PatternConfig is one entry of spec §6's outcome_patterns_json: a
// trigger (substring of a heuristic's condition) paired with the
// follow-up pattern that resolves it, the window it lives for, and
// whether a match counts as success or failure.
type PatternConfig struct {
	TriggerPattern string `json:"trigger_pattern"`
	OutcomePattern string `json:"outcome_pattern"`
	TimeoutSec     int    `json:"timeout_sec"`
	IsRegex        bool   `json:"is_regex"`
	IsSuccess      bool   `json:"is_success"`
}

// ParsePatterns decodes OUTCOME_PATTERNS_JSON into the configured pattern
// list; an empty or "[]" config is valid and yields no patterns.
func ParsePatterns(raw string) ([]PatternConfig, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var patterns []PatternConfig
	if err := json.Unmarshal([]byte(raw), &patterns); err != nil {
		return nil, fmt.Errorf("outcomewatcher: invalid OUTCOME_PATTERNS_JSON: %w", err)
	}
	return patterns, nil
}

// MatchTriggers finds every configured pattern whose trigger is a
// substring of a fired heuristic's condition text, the step the
// Orchestrator runs right after a heuristic fires to decide whether to
// register an OutcomeExpectation.
func MatchTriggers(patterns []PatternConfig, conditionText string) []PatternConfig {
	var matched []PatternConfig
	for _, p := range patterns {
		if p.TriggerPattern != "" && strings.Contains(conditionText, p.TriggerPattern) {
			matched = append(matched, p)
		}
	}
	return matched
}

// ResolutionSink receives a resolved expectation's outcome.
type ResolutionSink func(exp models.OutcomeExpectation, positive bool, source models.FeedbackSource)

// Watcher holds pending expectations in a mutex-guarded slice, matching
// spec §5's "shared-resource discipline" for this subsystem.
type Watcher struct {
	mu       sync.Mutex
	pending  []models.OutcomeExpectation
	resolve  ResolutionSink
}

func New(resolve ResolutionSink) *Watcher {
	return &Watcher{resolve: resolve}
}

// Watch registers a new expectation. The Orchestrator calls this after
// an event is routed through the queued path with a matched heuristic.
func (w *Watcher) Watch(exp models.OutcomeExpectation) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, exp)
}

// CheckEvent implements "On each ingested event, asks: does this event's
// text match the outcome_pattern of any pending expectation?" Matching
// expectations resolve positive and are removed; unmatched ones remain.
func (w *Watcher) CheckEvent(eventText string) {
	w.mu.Lock()
	var matched []models.OutcomeExpectation
	remaining := w.pending[:0]
	for _, exp := range w.pending {
		if matches(exp.OutcomePattern, exp.IsRegex, eventText) {
			matched = append(matched, exp)
			continue
		}
		remaining = append(remaining, exp)
	}
	w.pending = remaining
	w.mu.Unlock()

	for _, exp := range matched {
		w.resolve(exp, exp.IsSuccess, models.FeedbackImplicitTimeout)
	}
}

func matches(pattern string, isRegex bool, text string) bool {
	if pattern == "" {
		return false
	}
	if isRegex {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}
	return strings.Contains(text, pattern)
}

// Tick flushes expired expectations as POSITIVE, per spec §4.5's
// "no-news-is-good-news" rule.
func (w *Watcher) Tick() {
	now := time.Now()
	w.mu.Lock()
	var expired []models.OutcomeExpectation
	remaining := w.pending[:0]
	for _, exp := range w.pending {
		if now.After(exp.ExpiresAt) {
			expired = append(expired, exp)
			continue
		}
		remaining = append(remaining, exp)
	}
	w.pending = remaining
	w.mu.Unlock()

	for _, exp := range expired {
		w.resolve(exp, true, models.FeedbackImplicitTimeout)
	}
}

// Run drives Tick on an interval until ctx is cancelled, the same
// ticker-select-done shape the teacher's cleanup loops use.
func (w *Watcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Tick()
		}
	}
}

// Pending returns a snapshot of currently-pending expectations, mainly
// for tests and diagnostics.
func (w *Watcher) Pending() []models.OutcomeExpectation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]models.OutcomeExpectation, len(w.pending))
	copy(out, w.pending)
	return out
}
