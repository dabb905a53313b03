package executive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/rpc"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProcessEventUsesHeuristicAboveThreshold(t *testing.T) {
	s := New(Config{HeuristicConfidenceThreshold: 0.7}, nil, nil, testLogger())
	heuristicID := "h1"
	req := &rpc.ProcessEventRequest{
		Event: models.Event{ID: "e1", RawText: "disk is full"},
		Suggestion: &models.HeuristicMatch{
			Heuristic: models.Heuristic{ID: heuristicID, Confidence: 0.9, Effects: models.Effect{Message: "clear temp files"}},
		},
	}
	resp, err := s.ProcessEvent(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Equal(t, models.DecisionHeuristic, resp.DecisionPath)
	require.NotNil(t, resp.MatchedHeuristicID)
	assert.Equal(t, heuristicID, *resp.MatchedHeuristicID)
	assert.Equal(t, "clear temp files", resp.ResponseText)
}

func TestProcessEventFallsThroughWhenBelowThreshold(t *testing.T) {
	s := New(Config{HeuristicConfidenceThreshold: 0.7}, nil, nil, testLogger())
	req := &rpc.ProcessEventRequest{
		Event: models.Event{ID: "e1", RawText: "disk is full"},
		Suggestion: &models.HeuristicMatch{
			Heuristic: models.Heuristic{ID: "h1", Confidence: 0.4},
		},
	}
	resp, err := s.ProcessEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoExecutive, resp.DecisionPath)
	assert.Nil(t, resp.MatchedHeuristicID)
}

func TestProcessEventNoLLMAndNoSuggestion(t *testing.T) {
	s := New(Config{}, nil, nil, testLogger())
	req := &rpc.ProcessEventRequest{Event: models.Event{ID: "e1", RawText: "disk is full"}}
	resp, err := s.ProcessEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionNoExecutive, resp.DecisionPath)
	assert.NotEmpty(t, resp.ResponseText)
}

func TestCleanupExpiredRemovesOldTraces(t *testing.T) {
	s := New(Config{TraceTTL: 1}, nil, nil, testLogger())
	s.recordTrace("e1", "r1", "ctx", "resp", nil, 0.5, 0.5)
	s.traces["r1"] = models.ReasoningTrace{ResponseID: "r1"} // zero Timestamp, well before cutoff
	s.CleanupExpired()
	_, found := s.traces["r1"]
	assert.False(t, found)
}

func TestBuildPromptIncludesCandidates(t *testing.T) {
	event := models.Event{Source: "slack", RawText: "pod crashlooping"}
	candidates := []models.HeuristicMatch{{Heuristic: models.Heuristic{ConditionText: "pod crash", Effects: models.Effect{Message: "restart pod"}, Confidence: 0.5}}}
	prompt := buildPrompt(event, candidates)
	assert.Contains(t, prompt, "slack")
	assert.Contains(t, prompt, "pod crashlooping")
	assert.Contains(t, prompt, "restart pod")
}

func TestParsePredictionValidJSON(t *testing.T) {
	success, confidence, ok := parsePrediction(`here you go: {"success": true, "confidence": 0.8} thanks`)
	require.True(t, ok)
	assert.Equal(t, 1.0, success)
	assert.Equal(t, 0.8, confidence)
}

func TestParsePredictionInvalidText(t *testing.T) {
	_, _, ok := parsePrediction("no braces here")
	assert.False(t, ok)
}

// fakeCompleter is a test double for llmCompleter returning a canned
// response, or an error, per call.
type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

// fakeMemory is a test double for memoryClient recording calls and
// returning canned responses.
type fakeMemory struct {
	dedupSimilarity float64
	dedupErr        error
	storeErr        error

	updateConfidenceCalls []rpc.UpdateHeuristicConfidenceRequest
	storedHeuristic       *models.Heuristic
}

func (f *fakeMemory) UpdateHeuristicConfidence(ctx context.Context, req *rpc.UpdateHeuristicConfidenceRequest) (*rpc.UpdateHeuristicConfidenceResponse, error) {
	f.updateConfidenceCalls = append(f.updateConfidenceCalls, *req)
	return &rpc.UpdateHeuristicConfidenceResponse{Success: true}, nil
}

func (f *fakeMemory) QueryMatchingHeuristics(ctx context.Context, req *rpc.QueryMatchingHeuristicsRequest) (*rpc.HeuristicMatchesResponse, error) {
	if f.dedupErr != nil {
		return nil, f.dedupErr
	}
	if f.dedupSimilarity <= 0 {
		return &rpc.HeuristicMatchesResponse{}, nil
	}
	return &rpc.HeuristicMatchesResponse{Matches: []models.HeuristicMatch{{Similarity: f.dedupSimilarity}}}, nil
}

func (f *fakeMemory) StoreHeuristic(ctx context.Context, req *rpc.StoreHeuristicRequest) (*rpc.StoreHeuristicResponse, error) {
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	h := req.Heuristic
	f.storedHeuristic = &h
	return &rpc.StoreHeuristicResponse{Success: true, HeuristicID: "new-heuristic-1"}, nil
}

const validExtractedPattern = `{"condition": "when a database connection pool is exhausted under sustained load", "action": {"type": "suggest", "message": "increase the connection pool size or add a queueing layer in front of it"}}`

func newTestServerWithDoubles(t *testing.T, llm llmCompleter, mem *fakeMemory) *Server {
	t.Helper()
	s := New(Config{}, nil, mem, testLogger())
	s.llm = llm
	return s
}

func TestProvideFeedbackNegativeOnlyNudgesMatchedHeuristic(t *testing.T) {
	mem := &fakeMemory{}
	s := newTestServerWithDoubles(t, nil, mem)
	heuristicID := "h1"
	s.traces["r1"] = models.ReasoningTrace{ResponseID: "r1", MatchedHeuristicID: &heuristicID}

	resp, err := s.ProvideFeedback(context.Background(), &rpc.ProvideFeedbackRequest{ResponseID: "r1", Positive: false})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)
	assert.Nil(t, resp.CreatedHeuristicID)
	require.Len(t, mem.updateConfidenceCalls, 1)
	assert.Equal(t, "h1", mem.updateConfidenceCalls[0].ID)
	assert.False(t, mem.updateConfidenceCalls[0].Positive)
}

func TestProvideFeedbackPositiveWithMatchNudgesAndMintsHeuristic(t *testing.T) {
	mem := &fakeMemory{}
	s := newTestServerWithDoubles(t, &fakeCompleter{response: validExtractedPattern}, mem)
	heuristicID := "h1"
	s.traces["r1"] = models.ReasoningTrace{
		ResponseID: "r1", MatchedHeuristicID: &heuristicID,
		Context: "db pool exhausted", Response: "increase pool size",
	}

	resp, err := s.ProvideFeedback(context.Background(), &rpc.ProvideFeedbackRequest{ResponseID: "r1", Positive: true})
	require.NoError(t, err)
	assert.True(t, resp.Accepted)

	require.Len(t, mem.updateConfidenceCalls, 1)
	assert.Equal(t, "h1", mem.updateConfidenceCalls[0].ID)
	assert.True(t, mem.updateConfidenceCalls[0].Positive)

	require.NotNil(t, resp.CreatedHeuristicID)
	assert.Equal(t, "new-heuristic-1", *resp.CreatedHeuristicID)
	require.NotNil(t, mem.storedHeuristic)
}

func TestProvideFeedbackMintsHeuristicWithFixedConfidenceAndOriginID(t *testing.T) {
	mem := &fakeMemory{}
	s := newTestServerWithDoubles(t, &fakeCompleter{response: validExtractedPattern}, mem)
	s.traces["r1"] = models.ReasoningTrace{ResponseID: "r1", Context: "db pool exhausted", Response: "increase pool size"}

	_, err := s.ProvideFeedback(context.Background(), &rpc.ProvideFeedbackRequest{ResponseID: "r1", Positive: true})
	require.NoError(t, err)

	require.NotNil(t, mem.storedHeuristic)
	assert.Equal(t, 0.3, mem.storedHeuristic.Confidence)
	assert.Equal(t, models.OriginLearned, mem.storedHeuristic.Origin)
	assert.Equal(t, "r1", mem.storedHeuristic.OriginID)
	assert.Equal(t, "when a database connection pool is exhausted under sustained load", mem.storedHeuristic.ConditionText)
	assert.Equal(t, models.EffectSuggest, mem.storedHeuristic.Effects.Type)
}

func TestTryCreateHeuristicNoLLMReturnsError(t *testing.T) {
	s := newTestServerWithDoubles(t, nil, &fakeMemory{})
	_, err := s.tryCreateHeuristic(context.Background(), models.ReasoningTrace{ResponseID: "r1"})
	assert.ErrorContains(t, err, "LLM not available")
}

func TestTryCreateHeuristicRejectsUnparseableExtraction(t *testing.T) {
	s := newTestServerWithDoubles(t, &fakeCompleter{response: "not json"}, &fakeMemory{})
	_, err := s.tryCreateHeuristic(context.Background(), models.ReasoningTrace{ResponseID: "r1"})
	assert.ErrorContains(t, err, "pattern parsing failed")
}

func TestTryCreateHeuristicRejectsShortCondition(t *testing.T) {
	pattern := `{"condition": "too short", "action": {"type": "suggest", "message": "increase the connection pool size or add a queueing layer in front of it"}}`
	s := newTestServerWithDoubles(t, &fakeCompleter{response: pattern}, &fakeMemory{})
	_, err := s.tryCreateHeuristic(context.Background(), models.ReasoningTrace{ResponseID: "r1"})
	assert.ErrorContains(t, err, "quality gate")
	assert.ErrorContains(t, err, "condition too short")
}

func TestTryCreateHeuristicRejectsInvalidActionType(t *testing.T) {
	pattern := `{"condition": "when a database connection pool is exhausted under sustained load", "action": {"type": "panic", "message": "increase the connection pool size or add a queueing layer in front of it"}}`
	s := newTestServerWithDoubles(t, &fakeCompleter{response: pattern}, &fakeMemory{})
	_, err := s.tryCreateHeuristic(context.Background(), models.ReasoningTrace{ResponseID: "r1"})
	assert.ErrorContains(t, err, "quality gate")
	assert.ErrorContains(t, err, "action type")
}

func TestTryCreateHeuristicRejectsNearDuplicate(t *testing.T) {
	mem := &fakeMemory{dedupSimilarity: 0.95}
	s := newTestServerWithDoubles(t, &fakeCompleter{response: validExtractedPattern}, mem)
	_, err := s.tryCreateHeuristic(context.Background(), models.ReasoningTrace{ResponseID: "r1"})
	assert.ErrorContains(t, err, "near-duplicate")
	assert.Nil(t, mem.storedHeuristic)
}

func TestTryCreateHeuristicProceedsWhenDedupLookupFails(t *testing.T) {
	mem := &fakeMemory{dedupErr: assert.AnError}
	s := newTestServerWithDoubles(t, &fakeCompleter{response: validExtractedPattern}, mem)
	id, err := s.tryCreateHeuristic(context.Background(), models.ReasoningTrace{ResponseID: "r1"})
	require.NoError(t, err)
	require.NotNil(t, id)
}

func TestCheckHeuristicQualityAccepts(t *testing.T) {
	var p extractedPattern
	require.NoError(t, json.Unmarshal([]byte(validExtractedPattern), &p))
	assert.NoError(t, checkHeuristicQuality(p, 10, 50))
}

func TestParseExtractedPatternRoundTrip(t *testing.T) {
	p, ok := parseExtractedPattern(validExtractedPattern)
	require.True(t, ok)
	assert.Equal(t, "when a database connection pool is exhausted under sustained load", p.Condition)
	assert.Equal(t, "suggest", p.Action.Type)
}

func TestParseExtractedPatternInvalid(t *testing.T) {
	_, ok := parseExtractedPattern("no braces here")
	assert.False(t, ok)
}
