package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ClusterSnapshot holds the schema definition for a point-in-time record
// of a Story's member-signal membership and metrics, used to detect drift
// and support the supervisor's echo-chamber detection (§3, §4.10 metrics).
type ClusterSnapshot struct {
	ent.Schema
}

// Fields of the ClusterSnapshot.
func (ClusterSnapshot) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("snapshot_id").
			Unique().
			Immutable(),
		field.String("story_id").
			Immutable(),
		field.Strings("member_signal_ids").
			Immutable(),
		field.Float("heat").
			Immutable(),
		field.Float("external_ratio").
			Optional().
			Nillable(),
		field.Time("taken_at").
			Default(time.Now).
			Immutable(),
	}
}

// Edges of the ClusterSnapshot.
func (ClusterSnapshot) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("story", Story.Type).
			Ref("snapshots").
			Unique().
			Required(),
	}
}

// Indexes of the ClusterSnapshot.
func (ClusterSnapshot) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("story_id", "taken_at"),
	}
}
