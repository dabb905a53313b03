// Package vectorindex is the vector-index half of spec §2's "Persistent
// Store (relational + vector index adapter)." It is grounded directly on
// intelligencedev-manifold's internal/persistence/databases/qdrant_vector.go:
// same DSN parsing, same non-UUID-id-to-deterministic-UUID mapping, same
// distance-metric switch. Postgres (pkg/storage) remains the relational
// system of record; this package is the ANN index used by
// Memory.QueryBySimilarity / QueryMatchingHeuristics when wired, with
// pkg/storage's in-process cosine scan as the fallback when it isn't.
package vectorindex

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// PayloadIDField stores the original (non-UUID) point ID, since Qdrant
// only accepts UUIDs or positive integers as point IDs.
const PayloadIDField = "_original_id"

// Result is one ranked match from a similarity search.
type Result struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Index is the vector-index adapter contract.
type Index interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error
	Delete(ctx context.Context, id string) error
	SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error)
	Dimension() int
	Close() error
}

type qdrantIndex struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// New connects to Qdrant and ensures the target collection exists, sized
// and distance-metric-configured per dimension/metric.
//
// dsn supports an optional "?api_key=..." query parameter, exactly as
// the teacher's NewQdrantVector does. Qdrant's Go client speaks gRPC,
// which defaults to port 6334.
// Connect dials Qdrant from a DSN, for callers (e.g. gladysctl's cache
// admin commands) that need the raw client rather than the Index
// adapter. Exported so the DSN-parsing logic lives in exactly one
// place.
func Connect(dsn string) (*qdrant.Client, error) {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: parse dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: invalid port in dsn: %w", err)
	}
	cfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		cfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vectorindex: create client: %w", err)
	}
	return client, nil
}

func New(dsn, collection string, dimension int, metric string) (Index, error) {
	if collection == "" {
		return nil, fmt.Errorf("vectorindex: collection name is required")
	}
	client, err := Connect(dsn)
	if err != nil {
		return nil, err
	}
	idx := &qdrantIndex{client: client, collection: collection, dimension: dimension, metric: strings.ToLower(strings.TrimSpace(metric))}
	ctx := context.Background()
	if err := idx.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("vectorindex: ensure collection: %w", err)
	}
	return idx, nil
}

func (q *qdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("vectorindex requires dimension > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

// ToPointID exposes the same original-id-to-Qdrant-point-id mapping
// Upsert/Delete use internally, for admin tooling (gladysctl cache
// evict) that deletes points by the caller's own id rather than one
// already known to be a Qdrant UUID.
func ToPointID(id string) string { return toPointID(id) }

func toPointID(id string) string {
	if _, err := uuid.Parse(id); err == nil {
		return id
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(id)).String()
}

func (q *qdrantIndex) Upsert(ctx context.Context, id string, vector []float32, metadata map[string]string) error {
	pointUUID := toPointID(id)
	metadataAny := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		metadataAny[k] = v
	}
	if pointUUID != id {
		metadataAny[PayloadIDField] = id
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: qdrant.NewValueMap(metadataAny),
		}},
	})
	if err != nil {
		return fmt.Errorf("vectorindex: upsert %s: %w", id, err)
	}
	return nil
}

func (q *qdrantIndex) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(toPointID(id))),
	})
	if err != nil {
		return fmt.Errorf("vectorindex: delete %s: %w", id, err)
	}
	return nil
}

func (q *qdrantIndex) SimilaritySearch(ctx context.Context, vector []float32, k int, filter map[string]string) ([]Result, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(vector))
	copy(vec, vector)
	var queryFilter *qdrant.Filter
	if len(filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	limit := uint64(k)
	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("vectorindex: query: %w", err)
	}
	out := make([]Result, 0, len(hits))
	for _, hit := range hits {
		pointID := hit.Id.GetUuid()
		if pointID == "" {
			pointID = hit.Id.String()
		}
		metadata := make(map[string]string)
		originalID := ""
		for k, v := range hit.Payload {
			if k == PayloadIDField {
				originalID = v.GetStringValue()
				continue
			}
			metadata[k] = v.GetStringValue()
		}
		id := originalID
		if id == "" {
			id = pointID
		}
		out = append(out, Result{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return out, nil
}

func (q *qdrantIndex) Dimension() int { return q.dimension }

func (q *qdrantIndex) Close() error { return q.client.Close() }
