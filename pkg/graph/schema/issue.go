package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ValidationIssue holds the schema definition for a supervisor-raised
// concern about a Signal or Source that could not be auto-fixed (§3,
// §4.12 triage/validate/create_validation_issue/expire_issue).
type ValidationIssue struct {
	ent.Schema
}

// Fields of the ValidationIssue.
func (ValidationIssue) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("issue_id").
			Unique().
			Immutable(),
		field.String("city").
			Immutable(),
		field.Enum("subject_kind").
			Values("signal", "source", "story").
			Immutable(),
		field.String("subject_id").
			Immutable(),
		field.Enum("category").
			Values("stale_coords", "low_diversity", "contradicts_evidence", "orphaned_evidence",
				"duplicate_candidate", "source_degraded", "echo_chamber").
			Immutable(),
		field.Text("detail"),
		field.Enum("status").
			Values("open", "resolved", "expired").
			Default("open"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("resolved_at").
			Optional().
			Nillable(),
	}
}

// Indexes of the ValidationIssue.
func (ValidationIssue) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("city", "status"),
		index.Fields("subject_kind", "subject_id"),
	}
}
