package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Evidence holds the schema definition for a single fetched document
// supporting a Signal (§3, §4.1 add_evidence/corroborate).
type Evidence struct {
	ent.Schema
}

// Fields of the Evidence.
func (Evidence) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("evidence_id").
			Unique().
			Immutable(),
		field.String("signal_id").
			Immutable(),
		field.String("source_id"),
		field.String("url"),
		field.Uint64("content_hash").
			Comment("xxhash of normalized body text, used for within-batch exact dedup"),
		field.Text("raw_excerpt").
			Optional().
			Nillable(),
		field.Time("fetched_at").
			Default(time.Now).
			Immutable(),
		field.Time("published_at").
			Optional().
			Nillable(),
	}
}

// Edges of the Evidence.
func (Evidence) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("signal", Signal.Type).
			Ref("evidence").
			Unique().
			Required(),
		edge.From("source", Source.Type).
			Ref("evidence").
			Unique(),
	}
}

// Indexes of the Evidence.
func (Evidence) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("signal_id"),
		index.Fields("content_hash"),
		index.Fields("url"),
	}
}
