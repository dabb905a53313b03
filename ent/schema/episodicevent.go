package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// EpisodicEvent holds the schema definition for the EpisodicEvent entity.
//
// One row per ingested Event, written once the routing decision is known.
type EpisodicEvent struct {
	ent.Schema
}

// Fields of the EpisodicEvent.
func (EpisodicEvent) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("event_id").
			Unique().
			Immutable(),
		field.String("source").
			Comment("Sensor source, e.g. 'sensor:kitchen'"),
		field.Text("raw_text").
			Comment("Natural language payload (full-text searchable)"),
		field.Time("timestamp").
			Comment("Absolute UTC event time"),

		// Evaluated salience.
		field.Float("threat").Default(0.5),
		field.Float("salience").Default(0.5),
		field.Float("habituation").Default(0.5),
		field.JSON("salience_vector", map[string]float64{}).
			Optional().
			Comment("Named salience dimensions: novelty, goal_relevance, opportunity, actionability, social"),
		field.String("salience_model_id").
			Optional().
			Nillable(),

		field.Enum("decision_path").
			Values("heuristic", "llm", "no_executive").
			Comment("How this event was routed"),
		field.String("matched_heuristic_id").
			Optional().
			Nillable().
			Comment("Metadata only; HeuristicFire is the source of truth"),

		// LLM bookkeeping.
		field.String("response_id").
			Optional().
			Nillable(),
		field.Text("response_text").
			Optional().
			Nillable(),
		field.Text("llm_prompt_text").
			Optional().
			Nillable(),
		field.Float("predicted_success").
			Optional().
			Nillable(),
		field.Float("prediction_confidence").
			Optional().
			Nillable(),

		field.Bytes("embedding").
			Optional().
			Comment("Fixed-dim float32 little-endian vector"),

		field.Strings("entity_ids").
			Optional().
			Comment("Semantic-memory entity references, out of the hot path"),

		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the EpisodicEvent.
func (EpisodicEvent) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("fires", HeuristicFire.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the EpisodicEvent.
func (EpisodicEvent) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("source"),
		index.Fields("timestamp"),
		index.Fields("source", "timestamp"),
		index.Fields("decision_path"),
	}
}

// Annotations for PostgreSQL-specific features.
// GIN full-text index on raw_text is created via a migration hook in
// pkg/storage/migrations.go, same as the teacher's approach.
func (EpisodicEvent) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
