package storage

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gladys-ai/gladys/ent"
	"github.com/gladys-ai/gladys/ent/entity"
	"github.com/gladys-ai/gladys/ent/episodicevent"
	"github.com/gladys-ai/gladys/ent/heuristic"
	"github.com/gladys-ai/gladys/ent/heuristicfire"
	"github.com/gladys-ai/gladys/ent/relationship"
	"github.com/gladys-ai/gladys/pkg/models"
)

// Repository is the Memory Service's storage-facing surface: every
// operation named in spec §4.2/§6 that touches the relational store.
// Vector similarity itself is delegated to pkg/vectorindex when an index
// is configured; Repository also offers an in-process cosine fallback
// over the raw embedding bytes column so the system keeps working
// without a vector index deployed (graceful degradation, same spirit as
// spec §4.1's neutral-salience fallback).
type Repository struct {
	client *Client
}

func NewRepository(c *Client) *Repository { return &Repository{client: c} }

// EncodeEmbedding/DecodeEmbedding implement the "accepts raw float32
// little-endian" wire contract from spec §6 (Memory.GenerateEmbedding).
func EncodeEmbedding(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func DecodeEmbedding(b []byte) []float32 {
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4 : i*4+4]))
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// StoreEvent persists a routed episodic event. Exactly one per ingested
// Event (§3).
func (r *Repository) StoreEvent(ctx context.Context, e models.EpisodicEvent) error {
	create := r.client.EpisodicEvent.Create().
		SetID(e.ID).
		SetSource(e.Event.Source).
		SetRawText(e.Event.RawText).
		SetTimestamp(e.Event.Timestamp).
		SetThreat(e.Salience.Threat).
		SetSalience(e.Salience.Salience).
		SetHabituation(e.Salience.Habituation).
		SetSalienceVector(e.Salience.Vector).
		SetDecisionPath(string(e.DecisionPath)).
		SetNillableMatchedHeuristicID(e.MatchedHeuristicID).
		SetNillableResponseID(e.ResponseID).
		SetNillableResponseText(e.ResponseText).
		SetNillableLlmPromptText(e.LLMPromptText).
		SetNillablePredictedSuccess(e.PredictedSuccess).
		SetNillablePredictionConfidence(e.PredictionConfidence).
		SetEntityIds(e.EntityIDs)
	if len(e.Embedding) > 0 {
		create = create.SetEmbedding(EncodeEmbedding(e.Embedding))
	}
	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("storage: store event %s: %w", e.ID, err)
	}
	return nil
}

func toModelEvent(row *ent.EpisodicEvent) models.EpisodicEvent {
	out := models.EpisodicEvent{
		ID: row.ID,
		Event: models.Event{
			ID:        row.ID,
			Source:    row.Source,
			RawText:   row.RawText,
			Timestamp: row.Timestamp,
		},
		Salience: models.Salience{
			Threat:      row.Threat,
			Salience:    row.Salience,
			Habituation: row.Habituation,
			Vector:      row.SalienceVector,
		},
		DecisionPath:         models.DecisionPath(row.DecisionPath),
		MatchedHeuristicID:   row.MatchedHeuristicID,
		ResponseID:           row.ResponseID,
		ResponseText:         row.ResponseText,
		LLMPromptText:        row.LlmPromptText,
		PredictedSuccess:     row.PredictedSuccess,
		PredictionConfidence: row.PredictionConfidence,
		EntityIDs:            row.EntityIds,
		CreatedAt:            row.CreatedAt,
	}
	if len(row.Embedding) > 0 {
		out.Embedding = DecodeEmbedding(row.Embedding)
	}
	return out
}

// QueryByTime implements Memory.QueryByTime.
func (r *Repository) QueryByTime(ctx context.Context, startMS, endMS int64, source *string, limit int) ([]models.EpisodicEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.client.EpisodicEvent.Query().
		Where(
			episodicevent.TimestampGTE(time.UnixMilli(startMS)),
			episodicevent.TimestampLTE(time.UnixMilli(endMS)),
		).
		Order(ent.Desc(episodicevent.FieldTimestamp)).
		Limit(limit)
	if source != nil && *source != "" {
		q = q.Where(episodicevent.SourceEQ(*source))
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: query by time: %w", err)
	}
	out := make([]models.EpisodicEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, toModelEvent(row))
	}
	return out, nil
}

// DeleteEventsOlderThan enforces episodic-event retention: the table is
// append-only from the Orchestrator's side, so something has to bound
// its growth. Grounded on the teacher's pkg/cleanup retention loop,
// adapted from session/event soft-deletes to a hard delete of expired
// episodic events (they are derived observational data, not the system
// of record the way a heuristic's confidence is).
func (r *Repository) DeleteEventsOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	n, err := r.client.EpisodicEvent.Delete().
		Where(episodicevent.TimestampLT(cutoff)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("storage: delete events older than %s: %w", cutoff, err)
	}
	return n, nil
}

// QueryBySimilarity implements Memory.QueryBySimilarity as an in-process
// cosine scan over the last `hours` of events. Intended as the fallback
// path when no vectorindex.Index is wired; the primary path (large
// corpora) should go through pkg/vectorindex instead.
func (r *Repository) QueryBySimilarity(ctx context.Context, embedding []float32, threshold float64, hours, limit int) ([]models.EpisodicEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	if hours <= 0 {
		hours = 24
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	rows, err := r.client.EpisodicEvent.Query().
		Where(episodicevent.TimestampGTE(since), episodicevent.EmbeddingNotNil()).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: query by similarity: %w", err)
	}
	type scored struct {
		event models.EpisodicEvent
		score float64
	}
	scoredRows := make([]scored, 0, len(rows))
	for _, row := range rows {
		ev := toModelEvent(row)
		sim := cosineSimilarity(embedding, ev.Embedding)
		if sim >= threshold {
			scoredRows = append(scoredRows, scored{ev, sim})
		}
	}
	for i := 1; i < len(scoredRows); i++ {
		for j := i; j > 0 && scoredRows[j].score > scoredRows[j-1].score; j-- {
			scoredRows[j], scoredRows[j-1] = scoredRows[j-1], scoredRows[j]
		}
	}
	if len(scoredRows) > limit {
		scoredRows = scoredRows[:limit]
	}
	out := make([]models.EpisodicEvent, len(scoredRows))
	for i, s := range scoredRows {
		out[i] = s.event
	}
	return out, nil
}

// --- Heuristics ---

func toModelHeuristic(row *ent.Heuristic) models.Heuristic {
	h := models.Heuristic{
		ID:            row.ID,
		Name:          row.Name,
		ConditionText: row.ConditionText,
		Effects: models.Effect{
			Type:    models.EffectType(row.EffectType),
			Message: row.EffectMessage,
		},
		Confidence:   row.Confidence,
		Origin:       models.Origin(row.Origin),
		FireCount:    row.FireCount,
		SuccessCount: row.SuccessCount,
		Frozen:       row.Frozen,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
	}
	if row.OriginID != nil {
		h.OriginID = *row.OriginID
	}
	if len(row.ConditionEmbedding) > 0 {
		h.ConditionEmbedding = DecodeEmbedding(row.ConditionEmbedding)
	}
	return h
}

// StoreHeuristic implements Memory.StoreHeuristic.
func (r *Repository) StoreHeuristic(ctx context.Context, h models.Heuristic) error {
	create := r.client.Heuristic.Create().
		SetID(h.ID).
		SetName(h.Name).
		SetConditionText(h.ConditionText).
		SetEffectType(string(h.Effects.Type)).
		SetEffectMessage(h.Effects.Message).
		SetConfidence(h.Confidence).
		SetOrigin(string(h.Origin)).
		SetFireCount(h.FireCount).
		SetSuccessCount(h.SuccessCount).
		SetFrozen(h.Frozen)
	if h.OriginID != "" {
		create = create.SetOriginID(h.OriginID)
	}
	if len(h.ConditionEmbedding) > 0 {
		create = create.SetConditionEmbedding(EncodeEmbedding(h.ConditionEmbedding))
	}
	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("storage: store heuristic %s: %w", h.ID, err)
	}
	return nil
}

// GetHeuristic implements Memory.GetHeuristic.
func (r *Repository) GetHeuristic(ctx context.Context, id string) (*models.Heuristic, error) {
	row, err := r.client.Heuristic.Get(ctx, id)
	if ent.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get heuristic %s: %w", id, err)
	}
	h := toModelHeuristic(row)
	return &h, nil
}

// QueryHeuristics implements Memory.QueryHeuristics: all non-frozen
// heuristics at or above min_confidence, ordered by confidence.
func (r *Repository) QueryHeuristics(ctx context.Context, minConfidence float64, limit int) ([]models.HeuristicMatch, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.client.Heuristic.Query().
		Where(heuristic.FrozenEQ(false), heuristic.ConfidenceGTE(minConfidence)).
		Order(ent.Desc(heuristic.FieldConfidence)).
		Limit(limit).
		All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: query heuristics: %w", err)
	}
	out := make([]models.HeuristicMatch, len(rows))
	for i, row := range rows {
		h := toModelHeuristic(row)
		out[i] = models.HeuristicMatch{Heuristic: h, Similarity: 1, Score: h.Confidence}
	}
	return out, nil
}

// QueryByEmbedding implements step 2-3-5 of §4.2's queryMatchingHeuristics:
// candidate selection (non-frozen, confidence floor, optional source
// prefix), cosine ranking, and last_accessed touch. Step 1 (embedding
// generation) and step 4 (keyword fallback) live in pkg/memory, which
// owns the full 5-step algorithm and calls this for the embedding leg.
func (r *Repository) QueryByEmbedding(ctx context.Context, embedding []float32, minConfidence float64, limit int, sourceFilter string, minSimilarity float64) ([]models.HeuristicMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	q := r.client.Heuristic.Query().
		Where(heuristic.FrozenEQ(false), heuristic.ConfidenceGTE(minConfidence), heuristic.ConditionEmbeddingNotNil())
	if sourceFilter != "" {
		q = q.Where(heuristic.ConditionTextHasPrefix(sourceFilter + ":"))
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: query heuristics by embedding: %w", err)
	}
	type scored struct {
		h   models.Heuristic
		sim float64
	}
	candidates := make([]scored, 0, len(rows))
	matchedIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		h := toModelHeuristic(row)
		sim := cosineSimilarity(embedding, h.ConditionEmbedding)
		if sim >= minSimilarity {
			candidates = append(candidates, scored{h, sim})
			matchedIDs = append(matchedIDs, h.ID)
		}
	}
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].sim > candidates[j-1].sim; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	if len(matchedIDs) > 0 {
		_, _ = r.client.Heuristic.Update().
			Where(heuristic.IDIn(matchedIDs...)).
			SetLastAccessed(time.Now()).
			Save(ctx)
	}
	out := make([]models.HeuristicMatch, len(candidates))
	for i, c := range candidates {
		out[i] = models.HeuristicMatch{Heuristic: c.h, Similarity: c.sim, Score: c.sim * c.h.Confidence}
	}
	return out, nil
}

// QueryByKeyword implements step 4 of §4.2: OR-based keyword search over
// the GIN full-text index, a transitional path for heuristics that
// predate embeddings.
func (r *Repository) QueryByKeyword(ctx context.Context, keywords []string, minConfidence float64, limit int, sourceFilter string) ([]models.HeuristicMatch, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 5
	}
	tsQuery := strings.Join(keywords, " | ")
	rows, err := r.client.DB().QueryContext(ctx, `
		SELECT heuristic_id FROM heuristics
		WHERE frozen = false
		  AND confidence >= $1
		  AND to_tsvector('english', condition_text) @@ to_tsquery('english', $2)
		ORDER BY confidence DESC
		LIMIT $3`, minConfidence, tsQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: keyword search: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage: scan keyword result: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: keyword search rows: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	found, err := r.client.Heuristic.Query().Where(heuristic.IDIn(ids...)).All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load keyword matches: %w", err)
	}
	out := make([]models.HeuristicMatch, 0, len(found))
	for _, row := range found {
		h := toModelHeuristic(row)
		if sourceFilter != "" && !strings.HasPrefix(h.ConditionText, sourceFilter+":") {
			continue
		}
		out = append(out, models.HeuristicMatch{Heuristic: h, Similarity: 0.7, Score: h.Confidence})
	}
	return out, nil
}

// UpdateHeuristicConfidence applies the Beta-Binomial rule from §4.2 and
// resolves the latest unknown fire, all inside one transaction so the
// two writes are never observed half-applied.
func (r *Repository) UpdateHeuristicConfidence(ctx context.Context, id string, positive bool, feedbackSource models.FeedbackSource) (old, new, delta float64, err error) {
	tx, err := r.client.Tx(ctx)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer tx.Rollback()

	row, err := tx.Heuristic.Get(ctx, id)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("storage: get heuristic %s: %w", id, err)
	}
	old = row.Confidence

	fireCount := row.FireCount + 1
	successCount := row.SuccessCount
	if positive {
		successCount++
	}
	new = models.Confidence(successCount, fireCount)

	if _, err := tx.Heuristic.UpdateOneID(id).
		SetFireCount(fireCount).
		SetSuccessCount(successCount).
		SetConfidence(new).
		Save(ctx); err != nil {
		return 0, 0, 0, fmt.Errorf("storage: update confidence: %w", err)
	}

	latest, err := tx.HeuristicFire.Query().
		Where(heuristicfire.HeuristicID(id), heuristicfire.OutcomeEQ(heuristicfire.OutcomeUnknown)).
		Order(ent.Desc(heuristicfire.FieldFiredAt)).
		First(ctx)
	if err != nil && !ent.IsNotFound(err) {
		return 0, 0, 0, fmt.Errorf("storage: find pending fire: %w", err)
	}
	if latest != nil {
		outcome := heuristicfire.OutcomeFail
		if positive {
			outcome = heuristicfire.OutcomeSuccess
		}
		if _, err := tx.HeuristicFire.UpdateOneID(latest.ID).
			SetOutcome(outcome).
			SetFeedbackSource(string(feedbackSource)).
			Save(ctx); err != nil {
			return 0, 0, 0, fmt.Errorf("storage: resolve fire: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, 0, fmt.Errorf("storage: commit: %w", err)
	}
	return old, new, new - old, nil
}

// RecordHeuristicFire implements Memory.RecordHeuristicFire.
func (r *Repository) RecordHeuristicFire(ctx context.Context, id, heuristicID, eventID string, episodicEventID *string) error {
	create := r.client.HeuristicFire.Create().
		SetID(id).
		SetHeuristicID(heuristicID).
		SetEventID(eventID)
	if episodicEventID != nil {
		create = create.SetEpisodicEventID(*episodicEventID)
	}
	if _, err := create.Save(ctx); err != nil {
		return fmt.Errorf("storage: record fire: %w", err)
	}
	return nil
}

// UpdateFireOutcome implements Memory.UpdateFireOutcome: exactly one
// transition from unknown to a terminal state; a second call on an
// already-terminal fire is a no-op.
func (r *Repository) UpdateFireOutcome(ctx context.Context, fireID string, outcome models.FireOutcome, source models.FeedbackSource) error {
	row, err := r.client.HeuristicFire.Get(ctx, fireID)
	if err != nil {
		return fmt.Errorf("storage: get fire %s: %w", fireID, err)
	}
	if row.Outcome != heuristicfire.OutcomeUnknown {
		return nil
	}
	if _, err := r.client.HeuristicFire.UpdateOneID(fireID).
		SetOutcome(heuristicfire.Outcome(outcome)).
		SetFeedbackSource(string(source)).
		Save(ctx); err != nil {
		return fmt.Errorf("storage: update fire outcome: %w", err)
	}
	return nil
}

// GetPendingFires implements Memory.GetPendingFires.
func (r *Repository) GetPendingFires(ctx context.Context, heuristicID string, maxAge time.Duration) ([]models.HeuristicFire, error) {
	q := r.client.HeuristicFire.Query().
		Where(heuristicfire.OutcomeEQ(heuristicfire.OutcomeUnknown))
	if heuristicID != "" {
		q = q.Where(heuristicfire.HeuristicID(heuristicID))
	}
	if maxAge > 0 {
		q = q.Where(heuristicfire.FiredAtGTE(time.Now().Add(-maxAge)))
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: pending fires: %w", err)
	}
	out := make([]models.HeuristicFire, len(rows))
	for i, row := range rows {
		out[i] = models.HeuristicFire{
			ID:              row.ID,
			HeuristicID:     row.HeuristicID,
			EventID:         row.EventID,
			EpisodicEventID: row.EpisodicEventID,
			FiredAt:         row.FiredAt,
			Outcome:         models.FireOutcome(row.Outcome),
			FeedbackSource:  models.FeedbackSource(row.FeedbackSource),
		}
	}
	return out, nil
}

// ListEntities implements the read-only semantic-memory query surface
// spec §6 mentions as out of the core's hot path.
func (r *Repository) ListEntities(ctx context.Context, kind string, limit int) ([]models.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.client.Entity.Query().Limit(limit)
	if kind != "" {
		q = q.Where(entity.KindEQ(kind))
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: list entities: %w", err)
	}
	out := make([]models.Entity, len(rows))
	for i, row := range rows {
		k := ""
		if row.Kind != nil {
			k = *row.Kind
		}
		out[i] = models.Entity{
			ID:         row.ID,
			Name:       row.Name,
			Kind:       k,
			Attributes: row.Attributes,
			CreatedAt:  row.CreatedAt,
		}
	}
	return out, nil
}

// GetRelationships implements the read-only semantic-memory query
// surface for edges touching a given entity, in either direction.
func (r *Repository) GetRelationships(ctx context.Context, entityID, kind string, limit int) ([]models.Relationship, error) {
	if limit <= 0 {
		limit = 100
	}
	q := r.client.Relationship.Query().
		Where(relationship.Or(
			relationship.FromEntityIDEQ(entityID),
			relationship.ToEntityIDEQ(entityID),
		)).
		Limit(limit)
	if kind != "" {
		q = q.Where(relationship.KindEQ(kind))
	}
	rows, err := q.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: get relationships: %w", err)
	}
	out := make([]models.Relationship, len(rows))
	for i, row := range rows {
		out[i] = models.Relationship{
			ID:           row.ID,
			FromEntityID: row.FromEntityID,
			ToEntityID:   row.ToEntityID,
			Kind:         row.Kind,
			CreatedAt:    row.CreatedAt,
		}
	}
	return out, nil
}
