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

// Relationship holds the schema definition for the Relationship entity:
// a directed edge between two Entities used by semantic-memory queries.
type Relationship struct {
	ent.Schema
}

func (Relationship) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("relationship_id").
			Unique().
			Immutable(),
		field.String("from_entity_id").Immutable(),
		field.String("to_entity_id").Immutable(),
		field.String("kind").
			Comment("e.g. 'located_in', 'owned_by'"),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Relationship) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("from_entity", Entity.Type).
			Unique().
			Required().
			Field("from_entity_id").
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("to_entity", Entity.Type).
			Unique().
			Required().
			Field("to_entity_id").
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

func (Relationship) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("from_entity_id", "kind"),
		index.Fields("to_entity_id", "kind"),
	}
}

func (Relationship) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
