package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Actor holds the schema definition for an organization or person
// entity mentioned by Signals (§3, §4.1 link_actor/merge_actors).
type Actor struct {
	ent.Schema
}

// Fields of the Actor.
func (Actor) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("actor_id").
			Unique().
			Immutable(),
		field.String("city").
			Immutable(),
		field.String("canonical_name"),
		field.Strings("aliases").
			Optional(),
		field.Strings("domains").
			Optional().
			Comment("Email/website domains used to fold EntityMapping aliases into one Actor"),
	}
}

// Edges of the Actor.
func (Actor) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("signals", Signal.Type).Ref("actors"),
	}
}

// Indexes of the Actor.
func (Actor) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("city", "canonical_name"),
	}
}
