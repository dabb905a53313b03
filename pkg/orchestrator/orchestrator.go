// Package orchestrator implements the Orchestrator service (spec §4.1):
// event ingest, salience evaluation, heuristic lookup, emergency/queued/
// no-match routing, the priority-queue worker loop, and subscriber
// fan-out. Subscriber fan-out is grounded on the teacher's
// pkg/events/manager.go ConnectionManager: snapshot subscriber pointers
// under a read lock, release before sending, and drop on a full/slow
// subscriber rather than block the broadcaster.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/gladys-ai/gladys/pkg/learning"
	"github.com/gladys-ai/gladys/pkg/masking"
	"github.com/gladys-ai/gladys/pkg/models"
	"github.com/gladys-ai/gladys/pkg/outcomewatcher"
	"github.com/gladys-ai/gladys/pkg/queue"
	"github.com/gladys-ai/gladys/pkg/rpc"
	"github.com/gladys-ai/gladys/pkg/salience"
)

// Config holds the routing/timing thresholds named in spec §4.1/§6.
type Config struct {
	EmergencyConfidenceThreshold float64
	EmergencyThreatThreshold     float64
	HeuristicMinSimilarity       float64
	MaxEvaluationCandidates      int
	EventTimeoutMS               int
	TimeoutScanInterval          time.Duration
	OutcomeCleanupInterval       time.Duration
	OutcomeTimeoutSec            int
	OutcomePatterns              []outcomewatcher.PatternConfig
}

const redisChannel = "gladys:orchestrator:fanout"

// Server implements rpc.OrchestratorServer.
type Server struct {
	cfg       Config
	memory    *rpc.MemoryClient
	executive *rpc.ExecutiveClient
	salienceP salience.Provider
	learn     *learning.Module
	watcher   *outcomewatcher.Watcher
	masker    *masking.Service
	q         *queue.Queue
	redis     *redis.Client
	logger    *slog.Logger

	mu          sync.RWMutex
	eventSubs   map[string]*eventSubscriber
	responseSubs map[string]*responseSubscriber
}

type eventSubscriber struct {
	sourceFilters map[string]bool
	ch            chan *rpc.PublishedEvent
}

type responseSubscriber struct {
	includeImmediate bool
	ch               chan *rpc.Response
}

var _ rpc.OrchestratorServer = (*Server)(nil)

func New(cfg Config, memory *rpc.MemoryClient, executive *rpc.ExecutiveClient, salienceP salience.Provider, learn *learning.Module, watcher *outcomewatcher.Watcher, masker *masking.Service, redisClient *redis.Client, logger *slog.Logger) *Server {
	return &Server{
		cfg:          cfg,
		memory:       memory,
		executive:    executive,
		salienceP:    salienceP,
		learn:        learn,
		watcher:      watcher,
		masker:       masker,
		q:            queue.New(),
		redis:        redisClient,
		logger:       logger,
		eventSubs:    make(map[string]*eventSubscriber),
		responseSubs: make(map[string]*responseSubscriber),
	}
}

// Run starts the single priority-queue worker, the timeout scanner, the
// outcome-cleanup loop, and (if configured) the cross-replica Redis
// subscriber — the concurrent-loops set spec §5 requires.
func (s *Server) Run(ctx context.Context) {
	go s.runWorker(ctx)
	go queue.RunTimeoutScanner(ctx, s.q, s.timeoutScanInterval(), s.eventTimeout(), s.handleTimeout, s.logger)
	go s.watcher.Run(ctx, s.outcomeCleanupInterval())
	go s.runCleanupLoop(ctx)
	if s.redis != nil {
		go s.runRedisSubscriber(ctx)
	}
}

func (s *Server) timeoutScanInterval() time.Duration {
	if s.cfg.TimeoutScanInterval <= 0 {
		return 2 * time.Second
	}
	return s.cfg.TimeoutScanInterval
}

func (s *Server) eventTimeout() time.Duration {
	if s.cfg.EventTimeoutMS <= 0 {
		return 30 * time.Second
	}
	return time.Duration(s.cfg.EventTimeoutMS) * time.Millisecond
}

func (s *Server) outcomeCleanupInterval() time.Duration {
	if s.cfg.OutcomeCleanupInterval <= 0 {
		return 30 * time.Second
	}
	return s.cfg.OutcomeCleanupInterval
}

func (s *Server) runCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.outcomeCleanupInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.learn.CleanupExpired()
		}
	}
}

// --- PublishEvents ---

func (s *Server) PublishEvents(stream rpc.Orchestrator_PublishEventsServer) error {
	ctx := stream.Context()
	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		ack := s.handleEvent(ctx, wireToEvent(msg.Event))
		if err := stream.Send(ack); err != nil {
			return err
		}
	}
}

func wireToEvent(w rpc.EventWire) models.Event {
	e := models.Event{
		ID:        w.ID,
		Source:    w.Source,
		RawText:   w.RawText,
		Timestamp: time.UnixMilli(w.TimestampMS),
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if w.Salience != nil {
		e.Salience = &models.Salience{
			Threat:      w.Salience.Threat,
			Salience:    w.Salience.Salience,
			Habituation: w.Salience.Habituation,
			Vector:      w.Salience.Vector,
			ModelID:     w.Salience.ModelID,
		}
	}
	return e
}

// handleEvent implements spec §4.1's routing decision: emergency fast
// path, queued path (with suggestion), or no-match queued path.
func (s *Server) handleEvent(ctx context.Context, event models.Event) *rpc.EventAck {
	event.RawText = s.masker.Mask(event.RawText)
	sal := salience.Evaluate(ctx, s.logger, s.salienceP, event)

	s.learn.CheckEventForOutcomes(event.RawText, event.Source)
	s.watcher.CheckEvent(event.RawText)

	matches := s.lookupHeuristics(ctx, event)

	if len(matches) > 0 {
		best := matches[0]
		if best.Heuristic.Confidence >= s.emergencyConfidence() && sal.Threat >= s.emergencyThreat() {
			return s.handleEmergency(ctx, event, sal, best)
		}
		return s.handleQueued(event, sal, &best, matches[1:])
	}
	return s.handleQueued(event, sal, nil, nil)
}

func (s *Server) emergencyConfidence() float64 {
	if s.cfg.EmergencyConfidenceThreshold <= 0 {
		return 0.95
	}
	return s.cfg.EmergencyConfidenceThreshold
}

func (s *Server) emergencyThreat() float64 {
	if s.cfg.EmergencyThreatThreshold <= 0 {
		return 0.9
	}
	return s.cfg.EmergencyThreatThreshold
}

func (s *Server) maxCandidates() int {
	if s.cfg.MaxEvaluationCandidates <= 0 {
		return 5
	}
	return s.cfg.MaxEvaluationCandidates
}

// lookupHeuristics implements spec §4.1's "Heuristic lookup": top-K
// matches at or above the configured similarity, confidence ≥ 0,
// filtered by source.
func (s *Server) lookupHeuristics(ctx context.Context, event models.Event) []models.HeuristicMatch {
	resp, err := s.memory.QueryMatchingHeuristics(ctx, &rpc.QueryMatchingHeuristicsRequest{
		EventText:     event.RawText,
		MinConfidence: 0,
		Limit:         s.maxCandidates(),
		SourceFilter:  event.Source,
	})
	if err != nil {
		s.logger.Warn("heuristic lookup failed, proceeding with no match", "error", err, "event_id", event.ID)
		return nil
	}
	return resp.Matches
}

func (s *Server) handleEmergency(ctx context.Context, event models.Event, sal *models.Salience, match models.HeuristicMatch) *rpc.EventAck {
	heuristicID := match.Heuristic.ID
	fireResp, err := s.memory.RecordHeuristicFire(ctx, &rpc.RecordHeuristicFireRequest{HeuristicID: heuristicID, EventID: event.ID})
	var fireID *string
	if err != nil {
		s.logger.Warn("failed to record emergency fire", "error", err, "heuristic_id", heuristicID)
	} else {
		fireID = &fireResp.FireID
	}

	responseText := match.Heuristic.Effects.Message
	responseID := uuid.NewString()
	episodicID := uuid.NewString()
	episode := models.EpisodicEvent{
		ID:                 episodicID,
		Event:              event,
		Salience:           *sal,
		DecisionPath:       models.DecisionHeuristic,
		MatchedHeuristicID: &heuristicID,
		ResponseID:         &responseID,
		ResponseText:       &responseText,
		CreatedAt:          time.Now(),
	}
	s.persistEpisode(ctx, episode)

	if fireID != nil {
		s.learn.OnFire(heuristicID, event.ID, event.Source)
		s.watchOutcome(match.Heuristic, event.ID, event.RawText, 1)
	}

	s.broadcastEvent(event)
	s.broadcastResponse(&rpc.Response{
		EventID: event.ID, ResponseID: responseID, Source: event.Source, Text: responseText,
		DecisionPath: models.DecisionHeuristic, MatchedHeuristicID: &heuristicID, Immediate: true,
	}, true)

	return &rpc.EventAck{
		EventID: event.ID, Accepted: true, MatchedHeuristicID: &heuristicID,
		ResponseText: &responseText,
	}
}

func (s *Server) handleQueued(event models.Event, sal *models.Salience, suggestion *models.HeuristicMatch, candidates []models.HeuristicMatch) *rpc.EventAck {
	item := models.QueuedItem{
		Event:         event,
		SalienceScore: sal.Salience,
		Candidates:    candidates,
		EnqueuedAt:    time.Now(),
	}
	routedToLLM := suggestion == nil
	if suggestion != nil {
		item.Suggestion = suggestion
		id := suggestion.Heuristic.ID
		item.MatchedHeuristicID = &id
	}
	s.q.Push(item)
	s.broadcastEvent(event)

	return &rpc.EventAck{
		EventID: event.ID, Accepted: true, Queued: true,
		RoutedToLLM:        routedToLLM,
		MatchedHeuristicID: item.MatchedHeuristicID,
	}
}

// --- Worker loop ---

func (s *Server) runWorker(ctx context.Context) {
	for {
		item, ok := s.q.Pop(ctx)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		s.processQueued(ctx, item)
	}
}

func (s *Server) processQueued(ctx context.Context, item models.QueuedItem) {
	resp, err := s.executive.ProcessEvent(ctx, &rpc.ProcessEventRequest{
		Event: item.Event, Suggestion: item.Suggestion, Candidates: item.Candidates,
	})
	var (
		decisionPath = models.DecisionNoExecutive
		responseText = "Unable to process this event right now."
		responseID   = uuid.NewString()
		matchedID    *string
		predSuccess  *float64
		predConf     *float64
		promptText   *string
	)
	if err != nil {
		s.logger.Error("executive call failed, recording canned no_executive episode", "error", err, "event_id", item.Event.ID)
	} else {
		decisionPath = resp.DecisionPath
		responseText = resp.ResponseText
		responseID = resp.ResponseID
		matchedID = resp.MatchedHeuristicID
		if resp.PromptText != "" {
			promptText = &resp.PromptText
		}
		if decisionPath == models.DecisionLLM {
			predSuccess = &resp.PredictedSuccess
			predConf = &resp.PredictionConfidence
		}
	}

	sal := models.Salience{Salience: item.SalienceScore}
	if item.Event.Salience != nil {
		sal = *item.Event.Salience
	}
	episode := models.EpisodicEvent{
		ID:                   uuid.NewString(),
		Event:                item.Event,
		Salience:             sal,
		DecisionPath:         decisionPath,
		MatchedHeuristicID:   matchedID,
		ResponseID:           &responseID,
		ResponseText:         &responseText,
		LLMPromptText:        promptText,
		PredictedSuccess:     predSuccess,
		PredictionConfidence: predConf,
		CreatedAt:            time.Now(),
	}
	s.persistEpisode(ctx, episode)

	s.broadcastResponse(&rpc.Response{
		EventID: item.Event.ID, ResponseID: responseID, Source: item.Event.Source, Text: responseText,
		DecisionPath: decisionPath, MatchedHeuristicID: matchedID,
	}, false)

	if matchedID != nil {
		fireResp, err := s.memory.RecordHeuristicFire(ctx, &rpc.RecordHeuristicFireRequest{
			HeuristicID: *matchedID, EventID: item.Event.ID, EpisodicEventID: &episode.ID,
		})
		if err != nil {
			s.logger.Warn("failed to record queued-path fire", "error", err, "heuristic_id", *matchedID)
		} else {
			s.learn.OnFire(*matchedID, item.Event.ID, item.Event.Source)
			_ = fireResp
			if item.Suggestion != nil && item.Suggestion.Heuristic.ID == *matchedID {
				predicted := 1.0
				if predSuccess != nil {
					predicted = *predSuccess
				}
				s.watchOutcome(item.Suggestion.Heuristic, item.Event.ID, item.Event.RawText, predicted)
			}
		}
	}
}

// watchOutcome registers an OutcomeExpectation for every configured
// pattern whose trigger matches the fired heuristic's condition text
// (spec §4.5: "trigger_pattern (substring of a heuristic's condition)").
func (s *Server) watchOutcome(h models.Heuristic, eventID, triggerText string, predictedSuccess float64) {
	for _, p := range outcomewatcher.MatchTriggers(s.cfg.OutcomePatterns, h.ConditionText) {
		timeout := time.Duration(p.TimeoutSec) * time.Second
		if timeout <= 0 {
			timeout = s.outcomeTimeout()
		}
		s.watcher.Watch(models.OutcomeExpectation{
			HeuristicID:      h.ID,
			EventID:          eventID,
			PredictedSuccess: predictedSuccess,
			TriggerText:      triggerText,
			OutcomePattern:   p.OutcomePattern,
			IsRegex:          p.IsRegex,
			IsSuccess:        p.IsSuccess,
			ExpiresAt:        time.Now().Add(timeout),
		})
	}
}

func (s *Server) outcomeTimeout() time.Duration {
	if s.cfg.OutcomeTimeoutSec <= 0 {
		return 120 * time.Second
	}
	return time.Duration(s.cfg.OutcomeTimeoutSec) * time.Second
}

func (s *Server) handleTimeout(item models.QueuedItem) {
	ctx := context.Background()
	responseID := uuid.NewString()
	text := "Request timed out waiting for processing."
	episode := models.EpisodicEvent{
		ID:           uuid.NewString(),
		Event:        item.Event,
		Salience:     models.Salience{Salience: item.SalienceScore},
		DecisionPath: models.DecisionNoExecutive,
		ResponseID:   &responseID,
		ResponseText: &text,
		CreatedAt:    time.Now(),
	}
	s.persistEpisode(ctx, episode)
	s.broadcastResponse(&rpc.Response{
		EventID: item.Event.ID, ResponseID: responseID, Source: item.Event.Source, Text: text,
		DecisionPath: models.DecisionNoExecutive, Timeout: true,
	}, false)
}

func (s *Server) persistEpisode(ctx context.Context, episode models.EpisodicEvent) {
	if _, err := s.memory.StoreEvent(ctx, &rpc.StoreEventRequest{Event: episode}); err != nil {
		s.logger.Error("failed to persist episode, response already sent", "error", err, "event_id", episode.Event.ID)
	}
}

// --- Subscriber fan-out ---

func (s *Server) SubscribeEvents(req *rpc.SubscribeEventsRequest, stream rpc.Orchestrator_SubscribeEventsServer) error {
	id := req.SubscriberID
	if id == "" {
		id = uuid.NewString()
	}
	filters := make(map[string]bool, len(req.SourceFilters))
	for _, f := range req.SourceFilters {
		filters[f] = true
	}
	sub := &eventSubscriber{sourceFilters: filters, ch: make(chan *rpc.PublishedEvent, 64)}

	s.mu.Lock()
	s.eventSubs[id] = sub
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.eventSubs, id)
		s.mu.Unlock()
	}()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-sub.ch:
			if err := stream.Send(ev); err != nil {
				return err
			}
		}
	}
}

func (s *Server) SubscribeResponses(req *rpc.SubscribeResponsesRequest, stream rpc.Orchestrator_SubscribeResponsesServer) error {
	id := req.SubscriberID
	if id == "" {
		id = uuid.NewString()
	}
	sub := &responseSubscriber{includeImmediate: req.IncludeImmediate, ch: make(chan *rpc.Response, 64)}

	s.mu.Lock()
	s.responseSubs[id] = sub
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.responseSubs, id)
		s.mu.Unlock()
	}()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case resp := <-sub.ch:
			if err := stream.Send(resp); err != nil {
				return err
			}
		}
	}
}

// broadcastEvent delivers a raw event to matching event subscribers.
// Snapshot under RLock, release, then send — mirrors the teacher's
// Broadcast (pkg/events/manager.go): never hold the lock during sends.
func (s *Server) broadcastEvent(event models.Event) {
	wire := &rpc.PublishedEvent{Event: rpc.EventWire{
		ID: event.ID, Source: event.Source, RawText: event.RawText, TimestampMS: event.Timestamp.UnixMilli(),
	}}
	if event.Salience != nil {
		wire.Event.Salience = &rpc.SalienceWire{
			Threat: event.Salience.Threat, Salience: event.Salience.Salience,
			Habituation: event.Salience.Habituation, Vector: event.Salience.Vector, ModelID: event.Salience.ModelID,
		}
	}

	s.mu.RLock()
	subs := make([]*eventSubscriber, 0, len(s.eventSubs))
	for _, sub := range s.eventSubs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		if len(sub.sourceFilters) > 0 && !sub.sourceFilters[event.Source] {
			continue
		}
		select {
		case sub.ch <- wire:
		default: // lossy backpressure on a single slow subscriber (spec §4.1)
		}
	}

	s.publishRemote(fanoutMessage{Kind: "event", Event: wire})
}

// broadcastResponse delivers a response to matching response subscribers,
// respecting includeImmediate.
func (s *Server) broadcastResponse(resp *rpc.Response, immediate bool) {
	resp.Immediate = immediate

	s.mu.RLock()
	subs := make([]*responseSubscriber, 0, len(s.responseSubs))
	for _, sub := range s.responseSubs {
		subs = append(subs, sub)
	}
	s.mu.RUnlock()

	for _, sub := range subs {
		if immediate && !sub.includeImmediate {
			continue
		}
		select {
		case sub.ch <- resp:
		default:
		}
	}

	s.publishRemote(fanoutMessage{Kind: "response", Response: resp})
}

// --- Cross-replica fan-out (Redis) ---

type fanoutMessage struct {
	Kind     string             `json:"kind"`
	Event    *rpc.PublishedEvent `json:"event,omitempty"`
	Response *rpc.Response       `json:"response,omitempty"`
}

func (s *Server) publishRemote(msg fanoutMessage) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.redis.Publish(ctx, redisChannel, data).Err(); err != nil {
		s.logger.Warn("redis fanout publish failed", "error", err)
	}
}

// runRedisSubscriber fans messages published by other replicas out to
// this replica's local subscribers, so a client connected to any
// instance sees every event/response regardless of which instance
// handled the originating PublishEvents call.
func (s *Server) runRedisSubscriber(ctx context.Context) {
	sub := s.redis.Subscribe(ctx, redisChannel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var fm fanoutMessage
			if err := json.Unmarshal([]byte(msg.Payload), &fm); err != nil {
				continue
			}
			s.deliverLocal(fm)
		}
	}
}

func (s *Server) deliverLocal(fm fanoutMessage) {
	switch fm.Kind {
	case "event":
		if fm.Event == nil {
			return
		}
		s.mu.RLock()
		subs := make([]*eventSubscriber, 0, len(s.eventSubs))
		for _, sub := range s.eventSubs {
			subs = append(subs, sub)
		}
		s.mu.RUnlock()
		for _, sub := range subs {
			if len(sub.sourceFilters) > 0 && !sub.sourceFilters[fm.Event.Event.Source] {
				continue
			}
			select {
			case sub.ch <- fm.Event:
			default:
			}
		}
	case "response":
		if fm.Response == nil {
			return
		}
		s.mu.RLock()
		subs := make([]*responseSubscriber, 0, len(s.responseSubs))
		for _, sub := range s.responseSubs {
			subs = append(subs, sub)
		}
		s.mu.RUnlock()
		for _, sub := range subs {
			if fm.Response.Immediate && !sub.includeImmediate {
				continue
			}
			select {
			case sub.ch <- fm.Response:
			default:
			}
		}
	}
}

// --- Stats & health ---

func (s *Server) GetQueueStats(ctx context.Context, _ *rpc.Empty) (*rpc.QueueStats, error) {
	st := s.q.Stats()
	return &rpc.QueueStats{
		QueueSize: st.QueueSize, TotalQueued: st.TotalQueued,
		TotalProcessed: st.TotalProcessed, TotalTimedOut: st.TotalTimedOut,
	}, nil
}

func (s *Server) ListQueuedEvents(ctx context.Context, req *rpc.ListQueuedEventsRequest) (*rpc.ListQueuedEventsResponse, error) {
	items := s.q.Snapshot(req.Limit)
	out := make([]rpc.QueuedEventInfo, len(items))
	for i, it := range items {
		out[i] = rpc.QueuedEventInfo{
			EventID: it.Event.ID, Source: it.Event.Source,
			SalienceScore: it.SalienceScore, EnqueuedAt: it.EnqueuedAt.Format(time.RFC3339Nano),
		}
	}
	return &rpc.ListQueuedEventsResponse{Events: out}, nil
}

func (s *Server) GetHealth(ctx context.Context, _ *rpc.Empty) (*rpc.HealthStatus, error) {
	return &rpc.HealthStatus{Status: "ok"}, nil
}

func (s *Server) GetHealthDetails(ctx context.Context, _ *rpc.Empty) (*rpc.HealthStatus, error) {
	st := s.q.Stats()
	return &rpc.HealthStatus{
		Status: "ok",
		Details: map[string]string{
			"queue_size":      fmt.Sprintf("%d", st.QueueSize),
			"total_queued":    fmt.Sprintf("%d", st.TotalQueued),
			"total_processed": fmt.Sprintf("%d", st.TotalProcessed),
			"total_timed_out": fmt.Sprintf("%d", st.TotalTimedOut),
			"event_subscribers":    fmt.Sprintf("%d", len(s.eventSubs)),
			"response_subscribers": fmt.Sprintf("%d", len(s.responseSubs)),
		},
	}, nil
}
