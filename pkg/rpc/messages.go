package rpc

import "github.com/gladys-ai/gladys/pkg/models"

// Wire envelopes for every RPC in spec §6. Field names are mirrored from
// the conceptual signatures there; these are plain structs carried by the
// JSON codec (see codec.go), not protobuf messages.

// --- Orchestrator ---

type EventAck struct {
	EventID              string   `json:"event_id"`
	Accepted             bool     `json:"accepted"`
	RoutedToLLM          bool     `json:"routed_to_llm"`
	MatchedHeuristicID   *string  `json:"matched_heuristic_id,omitempty"`
	Queued               bool     `json:"queued"`
	ResponseText         *string  `json:"response_text,omitempty"`
	PredictedSuccess     *float64 `json:"predicted_success,omitempty"`
	PredictionConfidence *float64 `json:"prediction_confidence,omitempty"`
}

type SubscribeEventsRequest struct {
	SubscriberID  string   `json:"subscriber_id"`
	SourceFilters []string `json:"source_filters,omitempty"`
}

type SubscribeResponsesRequest struct {
	SubscriberID    string `json:"subscriber_id"`
	IncludeImmediate bool  `json:"include_immediate"`
}

type Response struct {
	EventID              string       `json:"event_id"`
	ResponseID           string       `json:"response_id"`
	Source               string       `json:"source"`
	Text                 string       `json:"text"`
	DecisionPath         models.DecisionPath `json:"decision_path"`
	MatchedHeuristicID   *string      `json:"matched_heuristic_id,omitempty"`
	Immediate            bool         `json:"immediate"`
	Timeout              bool         `json:"timeout"`
}

type QueueStats struct {
	QueueSize      int `json:"queue_size"`
	TotalQueued    int `json:"total_queued"`
	TotalProcessed int `json:"total_processed"`
	TotalTimedOut  int `json:"total_timed_out"`
}

type ListQueuedEventsRequest struct {
	Limit int `json:"limit,omitempty"`
}

type QueuedEventInfo struct {
	EventID       string  `json:"event_id"`
	Source        string  `json:"source"`
	SalienceScore float64 `json:"salience_score"`
	EnqueuedAt    string  `json:"enqueued_at"`
}

type HealthStatus struct {
	Status  string            `json:"status"`
	Details map[string]string `json:"details,omitempty"`
}

// --- Memory ---

type StoreEventRequest struct {
	Event models.EpisodicEvent `json:"event"`
}

type StoreEventResponse struct {
	Success bool `json:"success"`
}

type QueryByTimeRequest struct {
	StartMS int64   `json:"start_ms"`
	EndMS   int64   `json:"end_ms"`
	Source  *string `json:"source,omitempty"`
	Limit   int     `json:"limit,omitempty"`
}

type QueryByTimeResponse struct {
	Events []models.EpisodicEvent `json:"events"`
}

type QueryBySimilarityRequest struct {
	Embedding []float32 `json:"embedding"`
	Threshold float64   `json:"threshold,omitempty"`
	Hours     int       `json:"hours,omitempty"`
	Limit     int       `json:"limit,omitempty"`
}

type QueryBySimilarityResponse struct {
	Events []models.EpisodicEvent `json:"events"`
}

type GenerateEmbeddingRequest struct {
	Text string `json:"text"`
}

type GenerateEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

type StoreHeuristicRequest struct {
	Heuristic        models.Heuristic `json:"heuristic"`
	GenerateEmbedding bool            `json:"generate_embedding"`
}

type StoreHeuristicResponse struct {
	Success     bool   `json:"success"`
	HeuristicID string `json:"heuristic_id"`
}

type QueryHeuristicsRequest struct {
	MinConfidence float64 `json:"min_confidence"`
	Limit         int     `json:"limit"`
}

type QueryMatchingHeuristicsRequest struct {
	EventText     string  `json:"event_text"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
	Limit         int     `json:"limit,omitempty"`
	SourceFilter  string  `json:"source_filter,omitempty"`
}

type HeuristicMatchesResponse struct {
	Matches []models.HeuristicMatch `json:"matches"`
}

type GetHeuristicRequest struct {
	ID string `json:"id"`
}

type GetHeuristicResponse struct {
	Heuristic *models.Heuristic `json:"heuristic,omitempty"`
	Found     bool              `json:"found"`
}

type UpdateHeuristicConfidenceRequest struct {
	ID               string   `json:"id"`
	Positive         bool     `json:"positive"`
	FeedbackSource   string   `json:"feedback_source,omitempty"`
	LearningRate     *float64 `json:"learning_rate,omitempty"`
	PredictedSuccess *float64 `json:"predicted_success,omitempty"`
}

type UpdateHeuristicConfidenceResponse struct {
	Success bool    `json:"success"`
	Old     float64 `json:"old"`
	New     float64 `json:"new"`
	Delta   float64 `json:"delta"`
	// TDError is retained at 0 for wire compatibility with the legacy
	// TD-learning RPC shape; the canonical update is the Beta-Binomial
	// rule in spec §4.2 (see SPEC_FULL.md §D, Open Question #1).
	TDError float64 `json:"td_error"`
}

type RecordHeuristicFireRequest struct {
	HeuristicID     string  `json:"heuristic_id"`
	EventID         string  `json:"event_id"`
	EpisodicEventID *string `json:"episodic_event_id,omitempty"`
}

type RecordHeuristicFireResponse struct {
	FireID string `json:"fire_id"`
}

type UpdateFireOutcomeRequest struct {
	FireID         string `json:"fire_id"`
	Outcome        string `json:"outcome"`
	FeedbackSource string `json:"feedback_source"`
}

type UpdateFireOutcomeResponse struct {
	Success bool `json:"success"`
}

type GetPendingFiresRequest struct {
	HeuristicID string `json:"heuristic_id,omitempty"`
	MaxAgeSec   int    `json:"max_age_sec"`
}

type GetPendingFiresResponse struct {
	Fires []models.HeuristicFire `json:"fires"`
}

// ListEntities/GetRelationships are the read-only semantic-memory query
// surface spec §6 mentions as out of the core's hot path: entities and
// relationships are written only via EpisodicEvent.entity_ids joins,
// never through a dedicated write RPC.

type ListEntitiesRequest struct {
	Kind  string `json:"kind,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

type ListEntitiesResponse struct {
	Entities []models.Entity `json:"entities"`
}

type GetRelationshipsRequest struct {
	EntityID string `json:"entity_id"`
	Kind     string `json:"kind,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type GetRelationshipsResponse struct {
	Relationships []models.Relationship `json:"relationships"`
}

// --- Executive ---

type ProcessEventRequest struct {
	Event      models.Event            `json:"event"`
	Immediate  bool                    `json:"immediate"`
	Suggestion *models.HeuristicMatch  `json:"suggestion,omitempty"`
	Candidates []models.HeuristicMatch `json:"candidates,omitempty"`
}

type ProcessEventResponse struct {
	Accepted             bool                `json:"accepted"`
	ResponseID           string              `json:"response_id"`
	ResponseText         string              `json:"response_text"`
	PredictedSuccess     float64             `json:"predicted_success"`
	PredictionConfidence float64             `json:"prediction_confidence"`
	PromptText           string              `json:"prompt_text"`
	DecisionPath         models.DecisionPath `json:"decision_path"`
	MatchedHeuristicID   *string             `json:"matched_heuristic_id,omitempty"`
}

type ProvideFeedbackRequest struct {
	EventID    string `json:"event_id"`
	ResponseID string `json:"response_id"`
	Positive   bool   `json:"positive"`
}

type ProvideFeedbackResponse struct {
	Accepted          bool    `json:"accepted"`
	CreatedHeuristicID *string `json:"created_heuristic_id,omitempty"`
	ErrorMessage      *string `json:"error_message,omitempty"`
}
