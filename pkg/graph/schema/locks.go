package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ScoutLock holds the schema definition for the compare-and-set lease a
// Scout run holds over a city while it executes its phases (§3, §4.6,
// §8 invariant 8 — at most one active run per city).
type ScoutLock struct {
	ent.Schema
}

// Fields of the ScoutLock.
func (ScoutLock) Fields() []ent.Field {
	return []ent.Field{
		field.String("city").
			StorageKey("city").
			Unique().
			Immutable(),
		field.String("holder_run_id"),
		field.Time("acquired_at"),
		field.Time("expires_at"),
	}
}

// Indexes of the ScoutLock.
func (ScoutLock) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("expires_at"),
	}
}

// SupervisorLock holds the schema definition for the analogous lease
// held by the supervisor process over a city (§4.12).
type SupervisorLock struct {
	ent.Schema
}

// Fields of the SupervisorLock.
func (SupervisorLock) Fields() []ent.Field {
	return []ent.Field{
		field.String("city").
			StorageKey("city").
			Unique().
			Immutable(),
		field.String("holder_run_id"),
		field.Time("acquired_at"),
		field.Time("expires_at"),
	}
}

// SupervisorState holds the schema definition for the supervisor's
// durable progress cursor per city, so a restart resumes triage rather
// than re-scanning everything (§4.12).
type SupervisorState struct {
	ent.Schema
}

// Fields of the SupervisorState.
func (SupervisorState) Fields() []ent.Field {
	return []ent.Field{
		field.String("city").
			StorageKey("city").
			Unique().
			Immutable(),
		field.Time("last_triage_at").
			Optional().
			Nillable(),
		field.Time("last_echo_scan_at").
			Optional().
			Nillable(),
		field.Int("llm_checks_this_window").
			Default(0).
			Min(0),
		field.Time("window_started_at").
			Default(time.Now),
	}
}
