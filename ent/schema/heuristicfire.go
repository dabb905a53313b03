package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// HeuristicFire holds the schema definition for the HeuristicFire entity:
// a record that a heuristic was offered or applied in response to an
// event. Created with outcome=unknown, updated exactly once to terminal.
type HeuristicFire struct {
	ent.Schema
}

// Fields of the HeuristicFire.
func (HeuristicFire) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("fire_id").
			Unique().
			Immutable(),
		field.String("heuristic_id").
			Immutable(),
		field.String("event_id").
			Immutable(),
		field.String("episodic_event_id").
			Optional().
			Nillable(),
		field.Time("fired_at").
			Default(time.Now).
			Immutable(),
		field.Enum("outcome").
			Values("unknown", "success", "fail").
			Default("unknown"),
		field.Enum("feedback_source").
			Values("", "explicit", "implicit_timeout", "implicit_undo", "implicit_ignored").
			Default(""),
	}
}

// Edges of the HeuristicFire.
func (HeuristicFire) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("heuristic", Heuristic.Type).
			Ref("fires").
			Field("heuristic_id").
			Unique().
			Required().
			Immutable(),
		edge.From("episodic_event", EpisodicEvent.Type).
			Ref("fires").
			Field("episodic_event_id").
			Unique(),
	}
}

// Indexes of the HeuristicFire.
func (HeuristicFire) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("heuristic_id", "outcome"),
		index.Fields("heuristic_id", "fired_at"),
		index.Fields("event_id"),
	}
}

func (HeuristicFire) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
