package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Entity holds the schema definition for the Entity entity: semantic-memory
// node referenced by EpisodicEvent.entity_ids. Out of the core's hot path;
// no RPC method in the external interface exposes it as a primary
// operation today, but it's exercised via entity_ids joins.
type Entity struct {
	ent.Schema
}

func (Entity) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("entity_id").
			Unique().
			Immutable(),
		field.String("name"),
		field.String("kind").
			Optional().
			Nillable().
			Comment("e.g. 'person', 'appliance', 'location'"),
		field.JSON("attributes", map[string]interface{}{}).
			Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

func (Entity) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("name"),
		index.Fields("kind"),
	}
}

func (Entity) Annotations() []schema.Annotation {
	return []schema.Annotation{}
}
