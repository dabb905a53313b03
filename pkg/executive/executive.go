// Package executive implements the Executive service (spec §4.3):
// ProcessEvent's fast-path/LLM-path branching, and ProvideFeedback's
// explicit-feedback handling including new-heuristic creation from
// positive feedback via LLM pattern extraction. Grounded on the teacher's
// pkg/session/manager.go (a mutex-guarded, TTL-expiring in-memory map
// keyed by an opaque ID, the same shape this package uses for its
// ReasoningTrace store) and pkg/agent/llm_client.go for the LLM backend
// boundary (now pkg/llm.Client, adapted to a unary completion call).
package executive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gladys-ai/gladys/pkg/llm"
	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/rpc"
)

// Config holds Executive's decision thresholds (spec §4.3/§6).
type Config struct {
	HeuristicConfidenceThreshold float64
	TraceTTL                     time.Duration
	MinResponseWords             int
	MaxResponseWords             int
	DedupSimilarity              float64
}

// llmCompleter is the narrow slice of pkg/llm.Client this package calls,
// accepted as an interface so tests can exercise the LLM-path branches
// (prediction, pattern extraction) without a live gRPC backend.
type llmCompleter interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// memoryClient is the narrow slice of pkg/rpc.MemoryClient this package
// calls, accepted as an interface for the same reason.
type memoryClient interface {
	UpdateHeuristicConfidence(ctx context.Context, req *rpc.UpdateHeuristicConfidenceRequest) (*rpc.UpdateHeuristicConfidenceResponse, error)
	QueryMatchingHeuristics(ctx context.Context, req *rpc.QueryMatchingHeuristicsRequest) (*rpc.HeuristicMatchesResponse, error)
	StoreHeuristic(ctx context.Context, req *rpc.StoreHeuristicRequest) (*rpc.StoreHeuristicResponse, error)
}

// Server implements rpc.ExecutiveServer.
type Server struct {
	cfg    Config
	llm    llmCompleter // nil means no LLM backend configured
	memory memoryClient
	logger *slog.Logger

	mu     sync.Mutex
	traces map[string]models.ReasoningTrace
}

var _ rpc.ExecutiveServer = (*Server)(nil)

// New wires up a Server. llmClient is accepted as a concrete *llm.Client
// (rather than llmCompleter directly) so a nil backend — meaning no LLM
// is configured — compares equal to nil here, before it would otherwise
// be boxed into a non-nil interface value.
func New(cfg Config, llmClient *llm.Client, memory memoryClient, logger *slog.Logger) *Server {
	if cfg.HeuristicConfidenceThreshold <= 0 {
		cfg.HeuristicConfidenceThreshold = 0.7
	}
	if cfg.TraceTTL <= 0 {
		cfg.TraceTTL = 5 * time.Minute
	}
	if cfg.MinResponseWords <= 0 {
		cfg.MinResponseWords = 10
	}
	if cfg.MaxResponseWords <= 0 {
		cfg.MaxResponseWords = 50
	}
	if cfg.DedupSimilarity <= 0 {
		cfg.DedupSimilarity = 0.9
	}
	var completer llmCompleter
	if llmClient != nil {
		completer = llmClient
	}
	return &Server{cfg: cfg, llm: completer, memory: memory, logger: logger, traces: make(map[string]models.ReasoningTrace)}
}

// CleanupExpired drops reasoning traces past their TTL, called on an
// interval by the owning cmd/executive main loop.
func (s *Server) CleanupExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-s.cfg.TraceTTL)
	for id, t := range s.traces {
		if t.Timestamp.Before(cutoff) {
			delete(s.traces, id)
		}
	}
}

// ProcessEvent implements spec §4.3: use the suggestion directly when
// its confidence clears the threshold, otherwise fall through to the LLM
// path, predicting the outcome alongside the response text.
func (s *Server) ProcessEvent(ctx context.Context, req *rpc.ProcessEventRequest) (*rpc.ProcessEventResponse, error) {
	responseID := uuid.NewString()

	if req.Suggestion != nil && req.Suggestion.Heuristic.Confidence >= s.cfg.HeuristicConfidenceThreshold {
		heuristicID := req.Suggestion.Heuristic.ID
		text := req.Suggestion.Heuristic.Effects.Message
		s.recordTrace(req.Event.ID, responseID, req.Event.RawText, text, &heuristicID, 1, 1)
		return &rpc.ProcessEventResponse{
			Accepted: true, ResponseID: responseID, ResponseText: text,
			DecisionPath: models.DecisionHeuristic, MatchedHeuristicID: &heuristicID,
		}, nil
	}

	if s.llm == nil {
		text := "No automated response is available for this event."
		s.recordTrace(req.Event.ID, responseID, req.Event.RawText, text, nil, 0.5, 0.5)
		return &rpc.ProcessEventResponse{
			Accepted: true, ResponseID: responseID, ResponseText: text,
			DecisionPath: models.DecisionNoExecutive,
		}, nil
	}

	prompt := buildPrompt(req.Event, req.Candidates)
	responseText, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		s.logger.Warn("llm completion failed, falling back to canned response", "error", err, "event_id", req.Event.ID)
		responseText = "Unable to generate a response right now."
	}

	predSuccess, predConf := 0.5, 0.5
	predictionPrompt := buildPredictionPrompt(req.Event, responseText)
	if predText, err := s.llm.Complete(ctx, predictionPrompt); err != nil {
		s.logger.Warn("llm prediction call failed, using neutral fallback", "error", err, "event_id", req.Event.ID)
	} else if ps, pc, ok := parsePrediction(predText); ok {
		predSuccess, predConf = ps, pc
	}

	s.recordTrace(req.Event.ID, responseID, req.Event.RawText, responseText, nil, predSuccess, predConf)
	return &rpc.ProcessEventResponse{
		Accepted: true, ResponseID: responseID, ResponseText: responseText,
		PredictedSuccess: predSuccess, PredictionConfidence: predConf,
		PromptText: prompt, DecisionPath: models.DecisionLLM,
	}, nil
}

func (s *Server) recordTrace(eventID, responseID, context, response string, matchedHeuristicID *string, predSuccess, predConf float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[responseID] = models.ReasoningTrace{
		EventID: eventID, ResponseID: responseID, Context: context, Response: response,
		MatchedHeuristicID: matchedHeuristicID, PredictedSuccess: predSuccess, PredictionConfidence: predConf,
		Timestamp: time.Now(),
	}
}

func buildPrompt(event models.Event, candidates []models.HeuristicMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "An event was observed from source %q:\n%s\n\n", event.Source, event.RawText)
	if len(candidates) > 0 {
		b.WriteString("Related past heuristics that did not clear the confidence threshold:\n")
		for _, c := range candidates {
			fmt.Fprintf(&b, "- (%.2f confidence) %s -> %s\n", c.Heuristic.Confidence, c.Heuristic.ConditionText, c.Heuristic.Effects.Message)
		}
		b.WriteString("\n")
	}
	b.WriteString("Respond with a short, actionable suggestion for the user.")
	return b.String()
}

func buildPredictionPrompt(event models.Event, response string) string {
	return fmt.Sprintf(
		"Event: %s\nProposed response: %s\n\n"+
			"Predict whether this response will be well received. Reply with JSON only: "+
			`{"success": true|false, "confidence": 0.0-1.0}`,
		event.RawText, response)
}

func parsePrediction(text string) (success, confidence float64, ok bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return 0, 0, false
	}
	var parsed struct {
		Success    bool    `json:"success"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return 0, 0, false
	}
	s := 0.0
	if parsed.Success {
		s = 1.0
	}
	return s, parsed.Confidence, true
}

// ProvideFeedback implements spec §4.3's seven-step sequence: on negative
// feedback, only nudge the matched heuristic down. On positive feedback,
// nudge the matched heuristic up (if any) and unconditionally continue on
// to attempt minting a new heuristic from the traced context/response,
// gated by a quality check and a duplicate check against existing
// heuristics. The two are independent: a heuristic-path hit can both
// promote the heuristic it matched and mint a new one from the same
// positive feedback, which is why §3's success_count <= fire_count + 1
// invariant leaves headroom for one extra success beyond fires.
func (s *Server) ProvideFeedback(ctx context.Context, req *rpc.ProvideFeedbackRequest) (*rpc.ProvideFeedbackResponse, error) {
	s.mu.Lock()
	trace, found := s.traces[req.ResponseID]
	s.mu.Unlock()
	if !found {
		msg := "no reasoning trace found for this response_id; it may have expired"
		return &rpc.ProvideFeedbackResponse{Accepted: false, ErrorMessage: &msg}, nil
	}

	if trace.MatchedHeuristicID != nil {
		if _, err := s.memory.UpdateHeuristicConfidence(ctx, &rpc.UpdateHeuristicConfidenceRequest{
			ID: *trace.MatchedHeuristicID, Positive: req.Positive, FeedbackSource: string(models.FeedbackExplicit),
		}); err != nil {
			s.logger.Error("failed to update heuristic confidence from feedback", "error", err, "heuristic_id", *trace.MatchedHeuristicID)
		}
	}

	if !req.Positive {
		return &rpc.ProvideFeedbackResponse{Accepted: true}, nil
	}

	heuristicID, err := s.tryCreateHeuristic(ctx, trace)
	if err != nil {
		msg := err.Error()
		return &rpc.ProvideFeedbackResponse{Accepted: true, ErrorMessage: &msg}, nil
	}
	return &rpc.ProvideFeedbackResponse{Accepted: true, CreatedHeuristicID: heuristicID}, nil
}

// learnedHeuristicInitialConfidence is the fixed starting confidence for
// every heuristic minted from positive feedback (spec §4.3 step 6), well
// below the default promotion threshold so a freshly learned heuristic
// must earn further positive fires before it can fire on its own.
const learnedHeuristicInitialConfidence = 0.3

// extractedPattern is the strict-JSON shape the LLM backend is asked to
// produce when generalizing a traced context/response into a heuristic.
type extractedPattern struct {
	Condition string `json:"condition"`
	Action    struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"action"`
}

// tryCreateHeuristic mints a learned heuristic from positive feedback on
// a traced response. It asks the LLM backend to extract a generalizable
// {condition, action} pattern in strict JSON, validates it against the
// quality gate (word counts, known action type), checks it against
// existing heuristics for near-duplication, and stores it at a fixed
// initial confidence if it survives both gates.
func (s *Server) tryCreateHeuristic(ctx context.Context, trace models.ReasoningTrace) (*string, error) {
	if s.llm == nil {
		return nil, fmt.Errorf("LLM not available for pattern extraction")
	}

	extractionPrompt := buildExtractionPrompt(trace.Context, trace.Response)
	raw, err := s.llm.Complete(ctx, extractionPrompt)
	if err != nil {
		return nil, fmt.Errorf("pattern extraction failed: %w", err)
	}
	pattern, ok := parseExtractedPattern(raw)
	if !ok || pattern.Condition == "" {
		return nil, fmt.Errorf("pattern parsing failed: missing or invalid condition")
	}

	if err := checkHeuristicQuality(pattern, s.cfg.MinResponseWords, s.cfg.MaxResponseWords); err != nil {
		return nil, fmt.Errorf("quality gate: %w", err)
	}

	dup, err := s.memory.QueryMatchingHeuristics(ctx, &rpc.QueryMatchingHeuristicsRequest{
		EventText: pattern.Condition, MinConfidence: 0, Limit: 1,
	})
	if err != nil {
		s.logger.Warn("dedup lookup failed, proceeding with heuristic creation", "error", err)
	} else if len(dup.Matches) > 0 && dup.Matches[0].Similarity >= s.cfg.DedupSimilarity {
		return nil, fmt.Errorf("near-duplicate of existing heuristic (similarity=%.2f)", dup.Matches[0].Similarity)
	}

	name := pattern.Condition
	if len(name) > 50 {
		name = name[:50] + "..."
	}
	heuristic := models.Heuristic{
		Name:          fmt.Sprintf("Learned: %s", name),
		ConditionText: pattern.Condition,
		Effects:       models.Effect{Type: models.EffectType(pattern.Action.Type), Message: pattern.Action.Message},
		Confidence:    learnedHeuristicInitialConfidence,
		Origin:        models.OriginLearned,
		OriginID:      trace.ResponseID,
	}
	resp, err := s.memory.StoreHeuristic(ctx, &rpc.StoreHeuristicRequest{Heuristic: heuristic, GenerateEmbedding: true})
	if err != nil {
		return nil, fmt.Errorf("failed to store learned heuristic: %w", err)
	}
	return &resp.HeuristicID, nil
}

func buildExtractionPrompt(context, response string) string {
	return fmt.Sprintf(
		"You just helped with this situation:\n\n"+
			"Context: %s\nYour response: %s\nUser feedback: positive\n\n"+
			"Extract a generalizable heuristic for similar future situations.\n\n"+
			"Rules:\n"+
			"- condition: Describe a SITUATION, not a person. Must be 10-50 words. No proper nouns or specific numbers.\n"+
			`- action.type: One of "suggest", "remind", "warn"`+"\n"+
			"- action.message: The advice to give. Must be 10-50 words.\n\n"+
			`Output valid JSON: {"condition": "...", "action": {"type": "...", "message": "..."}}`,
		context, response)
}

func parseExtractedPattern(text string) (extractedPattern, bool) {
	start := strings.IndexByte(text, '{')
	end := strings.LastIndexByte(text, '}')
	if start < 0 || end <= start {
		return extractedPattern{}, false
	}
	var p extractedPattern
	if err := json.Unmarshal([]byte(text[start:end+1]), &p); err != nil {
		return extractedPattern{}, false
	}
	return p, true
}

// checkHeuristicQuality validates an extracted pattern, returning a
// descriptive error for the first violation found or nil if it passes.
func checkHeuristicQuality(p extractedPattern, minWords, maxWords int) error {
	conditionWords := len(strings.Fields(p.Condition))
	if conditionWords < minWords {
		return fmt.Errorf("condition too short (%d words, minimum %d)", conditionWords, minWords)
	}
	if conditionWords > maxWords {
		return fmt.Errorf("condition too long (%d words, maximum %d)", conditionWords, maxWords)
	}

	switch models.EffectType(p.Action.Type) {
	case models.EffectSuggest, models.EffectRemind, models.EffectWarn:
	default:
		return fmt.Errorf("action type must be suggest/remind/warn, got %q", p.Action.Type)
	}

	messageWords := len(strings.Fields(p.Action.Message))
	if messageWords < minWords {
		return fmt.Errorf("action message too short (%d words, minimum %d)", messageWords, minWords)
	}
	if messageWords > maxWords {
		return fmt.Errorf("action message too long (%d words, maximum %d)", messageWords, maxWords)
	}
	return nil
}
