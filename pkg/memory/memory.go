// Package memory implements the Memory Service (spec §4.2): the
// rpc.MemoryServer surface over pkg/storage, pkg/embedding and, when
// configured, pkg/vectorindex. Grounded on the teacher's service-wraps-
// repository layering (pkg/services/*.go delegate to pkg/database), with
// constructor-injected dependencies rather than package-level state.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tsawler/prose/v3"

	"github.com/gladys-ai/gladys/pkg/embedding"
	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/rpc"
	"github.com/gladys-ai/gladys/pkg/storage"
	"github.com/gladys-ai/gladys/pkg/vectorindex"
)

// DefaultMinSimilarity is spec §4.2 step 3's configured minimum.
const DefaultMinSimilarity = 0.7

// Service implements rpc.MemoryServer.
type Service struct {
	repo      *storage.Repository
	embedder  embedding.Provider
	index     vectorindex.Index // optional; nil means repo's in-process cosine scan only
	logger    *slog.Logger
	minSimSet float64
}

var _ rpc.MemoryServer = (*Service)(nil)

func New(repo *storage.Repository, embedder embedding.Provider, index vectorindex.Index, logger *slog.Logger) *Service {
	return &Service{repo: repo, embedder: embedder, index: index, logger: logger, minSimSet: DefaultMinSimilarity}
}

// RunRetention periodically deletes episodic events older than maxAge,
// the retention loop grounded on the teacher's pkg/cleanup service.
// Episodic events are observational history, not the heuristic store
// of record, so a hard delete past the configured window keeps the
// relational table (and the vector index alongside it) bounded.
func (s *Service) RunRetention(ctx context.Context, interval, maxAge time.Duration) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-maxAge)
			n, err := s.repo.DeleteEventsOlderThan(ctx, cutoff)
			if err != nil {
				s.logger.Error("retention: delete expired events failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("retention: deleted expired episodic events", "count", n, "cutoff", cutoff)
			}
		}
	}
}

func (s *Service) StoreEvent(ctx context.Context, req *rpc.StoreEventRequest) (*rpc.StoreEventResponse, error) {
	if req.Event.ID == "" {
		req.Event.ID = uuid.NewString()
	}
	if err := s.repo.StoreEvent(ctx, req.Event); err != nil {
		return nil, err
	}
	return &rpc.StoreEventResponse{Success: true}, nil
}

func (s *Service) QueryByTime(ctx context.Context, req *rpc.QueryByTimeRequest) (*rpc.QueryByTimeResponse, error) {
	events, err := s.repo.QueryByTime(ctx, req.StartMS, req.EndMS, req.Source, req.Limit)
	if err != nil {
		return nil, err
	}
	return &rpc.QueryByTimeResponse{Events: events}, nil
}

func (s *Service) QueryBySimilarity(ctx context.Context, req *rpc.QueryBySimilarityRequest) (*rpc.QueryBySimilarityResponse, error) {
	events, err := s.repo.QueryBySimilarity(ctx, req.Embedding, req.Threshold, req.Hours, req.Limit)
	if err != nil {
		return nil, err
	}
	return &rpc.QueryBySimilarityResponse{Events: events}, nil
}

func (s *Service) GenerateEmbedding(ctx context.Context, req *rpc.GenerateEmbeddingRequest) (*rpc.GenerateEmbeddingResponse, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("memory: no embedding provider configured")
	}
	v, err := s.embedder.Embed(ctx, req.Text)
	if err != nil {
		return nil, fmt.Errorf("memory: generate embedding: %w", err)
	}
	return &rpc.GenerateEmbeddingResponse{Embedding: v}, nil
}

func (s *Service) StoreHeuristic(ctx context.Context, req *rpc.StoreHeuristicRequest) (*rpc.StoreHeuristicResponse, error) {
	h := req.Heuristic
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if req.GenerateEmbedding && s.embedder != nil && len(h.ConditionEmbedding) == 0 {
		v, err := s.embedder.Embed(ctx, h.ConditionText)
		if err != nil {
			s.logger.Warn("failed to embed heuristic condition, storing without embedding", "error", err, "heuristic_id", h.ID)
		} else {
			h.ConditionEmbedding = v
		}
	}
	if err := s.repo.StoreHeuristic(ctx, h); err != nil {
		return nil, err
	}
	if s.index != nil && len(h.ConditionEmbedding) > 0 {
		if err := s.index.Upsert(ctx, h.ID, h.ConditionEmbedding, map[string]string{"condition_text": h.ConditionText}); err != nil {
			s.logger.Warn("vector index upsert failed, relational store remains authoritative", "error", err, "heuristic_id", h.ID)
		}
	}
	return &rpc.StoreHeuristicResponse{Success: true, HeuristicID: h.ID}, nil
}

func (s *Service) GetHeuristic(ctx context.Context, req *rpc.GetHeuristicRequest) (*rpc.GetHeuristicResponse, error) {
	h, err := s.repo.GetHeuristic(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return &rpc.GetHeuristicResponse{Heuristic: h, Found: h != nil}, nil
}

func (s *Service) QueryHeuristics(ctx context.Context, req *rpc.QueryHeuristicsRequest) (*rpc.HeuristicMatchesResponse, error) {
	matches, err := s.repo.QueryHeuristics(ctx, req.MinConfidence, req.Limit)
	if err != nil {
		return nil, err
	}
	return &rpc.HeuristicMatchesResponse{Matches: matches}, nil
}

// QueryMatchingHeuristics implements the 5-step algorithm from spec §4.2.
func (s *Service) QueryMatchingHeuristics(ctx context.Context, req *rpc.QueryMatchingHeuristicsRequest) (*rpc.HeuristicMatchesResponse, error) {
	minConfidence := req.MinConfidence
	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}

	// Step 1: embed.
	var embeddingVec []float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, req.EventText)
		if err != nil {
			s.logger.Warn("embedding failed for heuristic match, falling back to keyword search", "error", err)
		} else {
			embeddingVec = v
		}
	}

	// Steps 2-3-5: embedding-ranked candidates, when we have a vector.
	if len(embeddingVec) > 0 {
		matches, err := s.queryByEmbedding(ctx, embeddingVec, minConfidence, limit, req.SourceFilter)
		if err != nil {
			return nil, err
		}
		if len(matches) > 0 {
			return &rpc.HeuristicMatchesResponse{Matches: matches}, nil
		}
	}

	// Step 4: OR-based keyword fallback for heuristics with no embedding
	// match (including those that predate embeddings entirely).
	keywords := tokenize(req.EventText)
	if len(keywords) == 0 {
		return &rpc.HeuristicMatchesResponse{}, nil
	}
	matches, err := s.repo.QueryByKeyword(ctx, keywords, minConfidence, limit, req.SourceFilter)
	if err != nil {
		return nil, err
	}
	return &rpc.HeuristicMatchesResponse{Matches: matches}, nil
}

// queryByEmbedding prefers the external vector index when one is wired,
// falling back to the repository's in-process cosine scan otherwise.
func (s *Service) queryByEmbedding(ctx context.Context, v []float32, minConfidence float64, limit int, sourceFilter string) ([]models.HeuristicMatch, error) {
	if s.index == nil {
		return s.repo.QueryByEmbedding(ctx, v, minConfidence, limit, sourceFilter, s.minSimSet)
	}
	filter := map[string]string{}
	results, err := s.index.SimilaritySearch(ctx, v, limit*3, filter)
	if err != nil {
		s.logger.Warn("vector index search failed, falling back to in-process scan", "error", err)
		return s.repo.QueryByEmbedding(ctx, v, minConfidence, limit, sourceFilter, s.minSimSet)
	}
	out := make([]models.HeuristicMatch, 0, len(results))
	for _, r := range results {
		if r.Score < s.minSimSet {
			continue
		}
		h, err := s.repo.GetHeuristic(ctx, r.ID)
		if err != nil || h == nil {
			continue
		}
		if h.Frozen || h.Confidence < minConfidence {
			continue
		}
		if sourceFilter != "" && !hasPrefix(h.ConditionText, sourceFilter+":") {
			continue
		}
		out = append(out, models.HeuristicMatch{Heuristic: *h, Similarity: r.Score, Score: r.Score * h.Confidence})
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// tokenize extracts distinct lowercase content words via prose's
// tokenizer, the same library manifold uses upstream of its keyword
// fallback path, discarding stopword-length noise tokens.
func tokenize(text string) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	for _, tok := range doc.Tokens() {
		w := normalizeToken(tok.Text)
		if len(w) < 3 || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

func normalizeToken(s string) string {
	b := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			r = r - 'A' + 'a'
		}
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b = append(b, r)
		}
	}
	return string(b)
}

func (s *Service) UpdateHeuristicConfidence(ctx context.Context, req *rpc.UpdateHeuristicConfidenceRequest) (*rpc.UpdateHeuristicConfidenceResponse, error) {
	source := models.FeedbackSource(req.FeedbackSource)
	old, newConf, delta, err := s.repo.UpdateHeuristicConfidence(ctx, req.ID, req.Positive, source)
	if err != nil {
		return nil, err
	}
	return &rpc.UpdateHeuristicConfidenceResponse{Success: true, Old: old, New: newConf, Delta: delta, TDError: 0}, nil
}

func (s *Service) RecordHeuristicFire(ctx context.Context, req *rpc.RecordHeuristicFireRequest) (*rpc.RecordHeuristicFireResponse, error) {
	fireID := uuid.NewString()
	if err := s.repo.RecordHeuristicFire(ctx, fireID, req.HeuristicID, req.EventID, req.EpisodicEventID); err != nil {
		return nil, err
	}
	return &rpc.RecordHeuristicFireResponse{FireID: fireID}, nil
}

func (s *Service) UpdateFireOutcome(ctx context.Context, req *rpc.UpdateFireOutcomeRequest) (*rpc.UpdateFireOutcomeResponse, error) {
	err := s.repo.UpdateFireOutcome(ctx, req.FireID, models.FireOutcome(req.Outcome), models.FeedbackSource(req.FeedbackSource))
	if err != nil {
		return nil, err
	}
	return &rpc.UpdateFireOutcomeResponse{Success: true}, nil
}

func (s *Service) GetPendingFires(ctx context.Context, req *rpc.GetPendingFiresRequest) (*rpc.GetPendingFiresResponse, error) {
	maxAge := time.Duration(req.MaxAgeSec) * time.Second
	fires, err := s.repo.GetPendingFires(ctx, req.HeuristicID, maxAge)
	if err != nil {
		return nil, err
	}
	return &rpc.GetPendingFiresResponse{Fires: fires}, nil
}

// ListEntities and GetRelationships are the read-only semantic-memory
// surface; entities/relationships are populated only as joins off
// EpisodicEvent.entity_ids, never written directly through this
// service.
func (s *Service) ListEntities(ctx context.Context, req *rpc.ListEntitiesRequest) (*rpc.ListEntitiesResponse, error) {
	entities, err := s.repo.ListEntities(ctx, req.Kind, req.Limit)
	if err != nil {
		return nil, err
	}
	return &rpc.ListEntitiesResponse{Entities: entities}, nil
}

func (s *Service) GetRelationships(ctx context.Context, req *rpc.GetRelationshipsRequest) (*rpc.GetRelationshipsResponse, error) {
	rels, err := s.repo.GetRelationships(ctx, req.EntityID, req.Kind, req.Limit)
	if err != nil {
		return nil, err
	}
	return &rpc.GetRelationshipsResponse{Relationships: rels}, nil
}
