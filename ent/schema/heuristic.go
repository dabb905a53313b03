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

// Heuristic holds the schema definition for the Heuristic entity: a
// learned condition -> action rule with a Bayesian confidence.
type Heuristic struct {
	ent.Schema
}

// Fields of the Heuristic.
func (Heuristic) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("heuristic_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.Text("condition_text").
			Comment("10-50 words after the quality gate; full-text searchable fallback"),
		field.Bytes("condition_embedding").
			Optional().
			Comment("Fixed-dim float32 little-endian vector, required for matching"),

		field.Enum("effect_type").
			Values("suggest", "remind", "warn"),
		field.Text("effect_message").
			Comment("10-50 words"),

		field.Float("confidence").
			Default(0.5).
			Comment("(1+success_count)/(2+fire_count), Beta(1,1) posterior mean"),
		field.Enum("origin").
			Values("built_in", "pack", "learned", "user"),
		field.String("origin_id").
			Optional().
			Nillable().
			Comment("Free-form reference, e.g. the response_id of the originating trace"),

		field.Int("fire_count").Default(0).Min(0),
		field.Int("success_count").Default(0).Min(0),

		field.Bool("frozen").
			Default(false).
			Comment("Frozen heuristics are excluded from matchers"),

		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("updated_at").Default(time.Now).UpdateDefault(time.Now),
		field.Time("last_accessed").
			Optional().
			Nillable().
			Comment("Touched on every match for LRU visibility"),
	}
}

// Edges of the Heuristic.
func (Heuristic) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("fires", HeuristicFire.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the Heuristic.
func (Heuristic) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("confidence"),
		index.Fields("frozen"),
		index.Fields("origin"),
		// Source-prefix filtering on condition_text ("kitchen:...") relies
		// on the GIN full-text index created in pkg/storage/migrations.go.
	}
}

func (Heuristic) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
