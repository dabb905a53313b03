// Package models holds the plain domain types shared by every GLADyS
// service and carried over the RPC boundary. They double as the JSON
// wire shape for pkg/rpc's codec — see pkg/rpc/codec.go.
package models

import "time"

// Event is a sensor-ingested event. Immutable after ingest.
type Event struct {
	ID        string     `json:"id"`
	Source    string     `json:"source"`
	RawText   string     `json:"raw_text"`
	Timestamp time.Time  `json:"timestamp"`
	Salience  *Salience  `json:"salience,omitempty"`
}

// Salience is a small vector quantifying how much an event should "grab
// attention."
type Salience struct {
	Threat      float64            `json:"threat"`
	Salience    float64            `json:"salience"`
	Habituation float64            `json:"habituation"`
	Vector      map[string]float64 `json:"vector,omitempty"`
	ModelID     string             `json:"model_id,omitempty"`
}

// NeutralSalience is the graceful-degradation default used whenever the
// salience provider is unreachable (§4.1 "Salience evaluation").
func NeutralSalience() *Salience {
	return &Salience{
		Threat:      0.5,
		Salience:    0.5,
		Habituation: 0.5,
		Vector: map[string]float64{
			"novelty":        0.5,
			"goal_relevance": 0.5,
			"opportunity":    0.5,
			"actionability":  0.5,
			"social":         0.5,
		},
		ModelID: "neutral-default",
	}
}

// DecisionPath names how an EpisodicEvent was routed.
type DecisionPath string

const (
	DecisionHeuristic  DecisionPath = "heuristic"
	DecisionLLM        DecisionPath = "llm"
	DecisionNoExecutive DecisionPath = "no_executive"
)

// EpisodicEvent is the persisted record of a routed Event.
type EpisodicEvent struct {
	ID                   string       `json:"id"`
	Event                Event        `json:"event"`
	Salience             Salience     `json:"salience"`
	DecisionPath         DecisionPath `json:"decision_path"`
	MatchedHeuristicID   *string      `json:"matched_heuristic_id,omitempty"`
	ResponseID           *string      `json:"response_id,omitempty"`
	ResponseText         *string      `json:"response_text,omitempty"`
	LLMPromptText        *string      `json:"llm_prompt_text,omitempty"`
	PredictedSuccess     *float64     `json:"predicted_success,omitempty"`
	PredictionConfidence *float64     `json:"prediction_confidence,omitempty"`
	Embedding            []float32   `json:"embedding,omitempty"`
	EntityIDs            []string    `json:"entity_ids,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
}

// EffectType is the action kind a Heuristic prescribes.
type EffectType string

const (
	EffectSuggest EffectType = "suggest"
	EffectRemind  EffectType = "remind"
	EffectWarn    EffectType = "warn"
)

// Effect is the structured action attached to a Heuristic.
type Effect struct {
	Type    EffectType `json:"type"`
	Message string     `json:"message"`
}

// Origin names where a Heuristic came from.
type Origin string

const (
	OriginBuiltIn Origin = "built_in"
	OriginPack    Origin = "pack"
	OriginLearned Origin = "learned"
	OriginUser    Origin = "user"
)

// Heuristic is a learned condition -> action rule with a confidence.
//
// Invariants (enforced by pkg/memory, not by this struct):
//   success_count <= fire_count + 1
//   confidence == (1 + success_count) / (2 + fire_count)
type Heuristic struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	ConditionText      string    `json:"condition_text"`
	ConditionEmbedding []float32 `json:"condition_embedding,omitempty"`
	Effects            Effect    `json:"effects"`
	Confidence         float64   `json:"confidence"`
	Origin             Origin    `json:"origin"`
	OriginID           string    `json:"origin_id,omitempty"`
	FireCount          int       `json:"fire_count"`
	SuccessCount       int       `json:"success_count"`
	Frozen             bool      `json:"frozen"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// Confidence implements the Beta(1,1) posterior mean rule from §4.2.
func Confidence(successCount, fireCount int) float64 {
	return (1 + float64(successCount)) / (2 + float64(fireCount))
}

// FireOutcome is the terminal (or pending) state of a HeuristicFire.
type FireOutcome string

const (
	OutcomeUnknown FireOutcome = "unknown"
	OutcomeSuccess FireOutcome = "success"
	OutcomeFail    FireOutcome = "fail"
)

// FeedbackSource names what produced a fire's outcome transition.
type FeedbackSource string

const (
	FeedbackNone             FeedbackSource = ""
	FeedbackExplicit         FeedbackSource = "explicit"
	FeedbackImplicitTimeout  FeedbackSource = "implicit_timeout"
	FeedbackImplicitUndo     FeedbackSource = "implicit_undo"
	FeedbackImplicitIgnored  FeedbackSource = "implicit_ignored"
)

// HeuristicFire records that a heuristic was offered or applied in
// response to an event.
type HeuristicFire struct {
	ID              string         `json:"id"`
	HeuristicID     string         `json:"heuristic_id"`
	EventID         string         `json:"event_id"`
	EpisodicEventID *string        `json:"episodic_event_id,omitempty"`
	FiredAt         time.Time      `json:"fired_at"`
	Outcome         FireOutcome    `json:"outcome"`
	FeedbackSource  FeedbackSource `json:"feedback_source"`
}

// HeuristicMatch pairs a Heuristic with its similarity/score against a
// query, as returned by QueryMatchingHeuristics / QueryHeuristics.
type HeuristicMatch struct {
	Heuristic  Heuristic `json:"heuristic"`
	Similarity float64   `json:"similarity"`
	Score      float64   `json:"score"`
}

// ReasoningTrace is Executive's transient record letting a later
// feedback call re-identify the situation that produced a response.
type ReasoningTrace struct {
	EventID              string
	ResponseID           string
	Context              string
	Response             string
	MatchedHeuristicID   *string
	PredictedSuccess     float64
	PredictionConfidence float64
	Timestamp            time.Time
}

// QueuedItem is an Event awaiting Executive processing, ordered by the
// Orchestrator's priority queue.
type QueuedItem struct {
	Event              Event
	SalienceScore      float64
	MatchedHeuristicID *string
	Suggestion         *HeuristicMatch
	Candidates         []HeuristicMatch
	EnqueuedAt         time.Time
	seq                uint64 // FIFO tie-break, set by the queue
}

// SetSeq/Seq let pkg/queue stamp and read the tie-break sequence without
// exposing the field outside the package boundary it's defined in.
func (q *QueuedItem) SetSeq(n uint64) { q.seq = n }
func (q *QueuedItem) Seq() uint64     { return q.seq }

// OutcomeExpectation is a pending pattern-matched follow-up expected by
// the Outcome Watcher.
type OutcomeExpectation struct {
	HeuristicID      string
	EventID          string
	PredictedSuccess float64
	TriggerText      string
	OutcomePattern   string
	IsRegex          bool
	IsSuccess        bool // resolution polarity when OutcomePattern matches
	ExpiresAt        time.Time
}

// Signal is the Learning Module's normalized interpretation of a
// feedback event.
type SignalType string

const (
	SignalPositive SignalType = "POSITIVE"
	SignalNegative SignalType = "NEGATIVE"
	SignalNeutral  SignalType = "NEUTRAL"
)

type Signal struct {
	Type        SignalType
	HeuristicID string
	EventID     string
	Source      FeedbackSource
	Magnitude   float64
}

// Entity and Relationship are semantic-memory nodes/edges referenced by
// EpisodicEvent.entity_ids. Out of the hot path: no RPC writes them
// directly, only the read-only ListEntities/GetRelationships surface.
type Entity struct {
	ID         string
	Name       string
	Kind       string
	Attributes map[string]any
	CreatedAt  time.Time
}

type Relationship struct {
	ID           string
	FromEntityID string
	ToEntityID   string
	Kind         string
	CreatedAt    time.Time
}
