// Package schema declares the conceptual shape of the civic-intelligence
// property graph using ent's schema-builder DSL (§3 of the spec). These
// declarations are the system of record for fields, edges, and indexes;
// the runtime adapter in pkg/graph/store talks to Postgres directly with
// hand-written SQL rather than ent's generated query builder (see
// DESIGN.md for why).
package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Signal holds the schema definition for the Signal entity, polymorphic
// over {Gathering, Aid, Need, Notice, Tension}. Common fields come first
// in Fields; variant-specific fields follow, grouped per variant.
type Signal struct {
	ent.Schema
}

// Fields of the Signal.
func (Signal) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("signal_id").
			Unique().
			Immutable(),
		field.String("city").
			Immutable().
			Comment("City tag for multi-city operation"),
		field.Enum("variant").
			Values("gathering", "aid", "need", "notice", "tension").
			Immutable(),
		field.String("title"),
		field.Text("summary").
			Optional().
			Nillable(),
		field.Float("confidence").
			Comment("Combines completeness (0.4), geo specificity (0.3), freshness (0.3)"),
		field.Enum("sensitivity").
			Values("normal", "elevated", "sensitive").
			Default("normal"),
		field.Float("lat").
			Optional().
			Nillable(),
		field.Float("lng").
			Optional().
			Nillable(),
		field.Enum("geo_precision").
			Values("exact", "approximate", "city").
			Optional().
			Nillable(),
		field.String("source_url"),
		field.Time("last_confirmed_active").
			Default(time.Now),
		field.Int("corroboration_count").
			Default(0).
			Min(0),
		field.Int("source_diversity").
			Default(1).
			Min(0).
			Comment("Distinct entity domains across linked Evidence"),
		field.Float("external_ratio").
			Optional().
			Nillable(),
		field.Float("cause_heat").
			Optional().
			Nillable().
			Comment("Radiated from tensions via RESPONDS_TO"),
		field.Bytes("embedding").
			Optional().
			Nillable().
			Comment("1024-dim float32 vector, opaque to ent; pgvector column at the store layer"),
		field.Time("investigated_at").
			Optional().
			Nillable(),
		field.Float("quality_penalty").
			Optional().
			Nillable().
			Comment("<= 1.0, multiplies into source weight when set"),

		// Gathering
		field.Time("starts_at").Optional().Nillable(),
		field.Time("ends_at").Optional().Nillable(),
		field.Bool("is_recurring").Optional().Nillable(),
		field.String("action_url").Optional().Nillable(),

		// Aid additionally uses is_ongoing
		field.Bool("is_ongoing").Optional().Nillable(),

		// Need
		field.String("urgency").Optional().Nillable(),
		field.String("what_needed").Optional().Nillable(),

		// Notice / Tension severity + category (shared enum text, not a
		// shared ent.Enum — notice severities and tension severities are
		// drawn from different vocabularies at the extractor layer).
		field.String("severity").Optional().Nillable(),
		field.String("category").Optional().Nillable(),
		field.Time("effective_date").Optional().Nillable(),
		field.String("source_authority").Optional().Nillable(),

		// Tension
		field.String("what_would_help").Optional().Nillable(),

		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

// Edges of the Signal.
func (Signal) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("evidence", Evidence.Type).
			Annotations(entsql.OnDelete(entsql.Cascade)),
		edge.To("actors", Actor.Type),
		edge.To("responds_to", Signal.Type),
		edge.From("responded_by", Signal.Type).Ref("responds_to"),
		edge.To("similar_to", Signal.Type),
	}
}

// Indexes of the Signal.
func (Signal) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("city", "variant"),
		index.Fields("source_url"),
		index.Fields("last_confirmed_active"),
		index.Fields("city", "variant", "investigated_at"),
	}
}
