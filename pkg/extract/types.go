// Package extract turns a fetched RawPage into zero or more candidate
// signals: an LLM structured-extraction call (§4.4), a geo filter, and a
// confidence score, none of which yet touch the graph — persistence and
// dedup happen downstream in pkg/dedup.
package extract

import (
	"errors"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// ErrExtractionFailed wraps an LLM error or malformed output (§4.4);
// callers may continue to the next page, incrementing the source's miss
// counter.
var ErrExtractionFailed = errors.New("extract: extraction failed")

// Candidate is one extracted signal after geo filtering and confidence
// scoring, ready to be handed to the dedup stack. It intentionally
// mirrors graph.Signal's field set but omits anything the store assigns
// (ID, CreatedAt, embedding, counters).
type Candidate struct {
	City        string
	Variant     graph.Variant
	Title       string
	Summary     string
	Confidence  float64
	Sensitivity graph.Sensitivity

	Lat          *float64
	Lng          *float64
	LocationName string
	GeoPrecision graph.GeoPrecision

	SourceURL           string
	LastConfirmedActive time.Time
	RawExcerpt          string

	MentionedActors []ActorMention

	// Variant-specific fields, carried straight from the extractor.
	StartsAt        *time.Time
	EndsAt          *time.Time
	IsRecurring     *bool
	ActionURL       *string
	IsOngoing       *bool
	Urgency         *string
	WhatNeeded      *string
	Severity        *string
	Category        *string
	EffectiveDate   *time.Time
	SourceAuthority *string
	WhatWouldHelp   *string
}

// ActorMention is a named actor pending resolution against the Actor
// graph (domain/handle matching only, §4's Non-goals).
type ActorMention struct {
	Name       string
	Domain     string
	SocialURLs []string
}
