package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Story holds the schema definition for a woven narrative over a cluster
// of related Signals anchored on a Tension (§3, §4.10 weave/materialize).
type Story struct {
	ent.Schema
}

// Fields of the Story.
func (Story) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("story_id").
			Unique().
			Immutable(),
		field.String("city").
			Immutable(),
		field.String("tension_signal_id").
			Immutable(),
		field.String("headline"),
		field.String("lede").
			Optional().
			Nillable(),
		field.Text("narrative").
			Optional().
			Nillable(),
		field.String("category").
			Optional().
			Nillable(),
		// arc is the LLM-synthesized narrative arc (e.g. "developing",
		// "resolving"); forced to "archived" once the story goes stale
		// (§4.10.E) regardless of what synthesis last wrote.
		field.String("arc").
			Optional().
			Nillable(),
		field.Text("action_guidance").
			Optional().
			Nillable(),
		// status reflects clustering confidence, not staleness — kept
		// independent of arc so archival never erases how corroborated
		// the story was.
		field.Enum("status").
			Values("emerging", "confirmed", "echo").
			Default("emerging"),
		field.Int("signal_count").Default(0).Min(0),
		field.Int("ask_count").Default(0).Min(0),
		field.Int("give_count").Default(0).Min(0),
		field.Int("event_count").Default(0).Min(0),
		field.Int("entity_count").Default(0).Min(0),
		field.Int("source_count").Default(0).Min(0),
		field.Int("type_diversity").Default(0).Min(0),
		field.Int("gap_score").Default(0),
		field.Float("gap_velocity").Default(0),
		field.Float("centroid_lat").
			Optional().
			Nillable(),
		field.Float("centroid_lng").
			Optional().
			Nillable(),
		field.Enum("sensitivity").
			Values("normal", "elevated", "sensitive").
			Default("normal"),
		field.Float("velocity").Default(0),
		field.Float("energy").Default(0),
		field.Float("heat"),
		field.Int("response_count").
			Default(0).
			Min(0),
		// echo_score is set by the supervisor's echo detection pass
		// (§4.12) for stories with signal_count >= 5; nil until then.
		field.Float("echo_score").
			Optional().
			Nillable(),
		field.Time("first_seen").
			Default(time.Now).
			Immutable(),
		field.Time("last_updated").
			Default(time.Now),
		field.Time("last_rewoven_at").
			Default(time.Now),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the Story.
func (Story) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("snapshots", ClusterSnapshot.Type),
	}
}

// Indexes of the Story.
func (Story) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("city", "tension_signal_id").Unique(),
		index.Fields("city", "status", "heat"),
		index.Fields("city", "arc"),
	}
}
