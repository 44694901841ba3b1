package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Source holds the schema definition for a fetchable origin: a curated
// feed, a discovered page, or a social account (§3, §4.1 upsert_source).
type Source struct {
	ent.Schema
}

// Fields of the Source.
func (Source) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("source_id").
			Unique().
			Immutable(),
		field.String("city").
			Immutable(),
		field.String("canonical_key").
			Comment("normalized URL or platform:handle; unique per city"),
		field.Enum("source_type").
			Values("curated_web", "curated_headless", "web_query", "rss",
				"instagram", "facebook", "reddit", "tiktok", "twitter", "human_submission").
			Immutable(),
		field.String("url"),
		field.Float("weight").
			Default(1.0).
			Comment("Clamped to [0.1, 1.0]; decayed by supervisor penalty()"),
		field.Bool("active").
			Default(true),
		field.Int("signals_produced").
			Default(0).
			Min(0),
		field.Int("signals_corroborated").
			Default(0).
			Min(0),
		field.Time("last_fetched_at").
			Optional().
			Nillable(),
		field.Time("next_due_at").
			Optional().
			Nillable(),
		field.Time("last_produced_signal").
			Optional().
			Nillable(),
		field.Int("consecutive_empty_runs").
			Default(0).
			Min(0),
		field.Int("consecutive_failures").
			Default(0).
			Min(0),
		field.Float("quality_penalty").
			Optional().
			Nillable(),
		field.String("discovery_method").
			Optional().
			Nillable().
			Comment("gap_analysis | signal_reference; empty for curated sources"),
		field.Text("gap_context").
			Optional().
			Nillable().
			Comment("Discoverer's rationale for proposing this source"),
		field.String("entity_id").
			Optional().
			Nillable(),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Source.
func (Source) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("evidence", Evidence.Type),
	}
}

// Indexes of the Source.
func (Source) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("city", "canonical_key").Unique(),
		index.Fields("city", "active", "next_due_at"),
	}
}
