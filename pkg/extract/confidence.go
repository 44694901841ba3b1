package extract

import (
	"time"

	"github.com/civic-scout/scout/pkg/llmprovider"
)

// unrecognizedLocationPenalty is applied (not a reject) when a
// signal's location_name doesn't match any of the city's configured
// geo terms (§4.4).
const unrecognizedLocationPenalty = 0.8

// scoreConfidence combines completeness (0.4), geo specificity (0.3),
// and freshness (0.3) into the confidence §4.4 requires the extractor
// to emit itself (the LLM is never asked for a confidence number).
func scoreConfidence(sig llmprovider.ExtractedSignal, fetchedAt time.Time) float64 {
	completeness := completenessScore(sig)
	geoSpecificity := geoSpecificityScore(sig)
	freshness := freshnessScore(fetchedAt)

	score := 0.4*completeness + 0.3*geoSpecificity + 0.3*freshness
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// completenessScore rewards a signal for having the fields a reader
// would actually want filled in, beyond the required title/summary.
func completenessScore(sig llmprovider.ExtractedSignal) float64 {
	fields := 0
	filled := 0

	track := func(present bool) {
		fields++
		if present {
			filled++
		}
	}

	track(sig.LocationName != "")
	track(sig.Lat != nil && sig.Lng != nil)
	track(len(sig.MentionedActors) > 0)

	switch sig.Variant {
	case "gathering":
		track(sig.StartsAt != "")
		track(sig.ActionURL != "")
	case "aid":
		track(sig.IsOngoing != nil)
	case "need":
		track(sig.Urgency != "")
		track(sig.WhatNeeded != "")
	case "notice":
		track(sig.Severity != "")
		track(sig.SourceAuthority != "")
	case "tension":
		track(sig.WhatWouldHelp != "")
	}

	if fields == 0 {
		return 0
	}
	return float64(filled) / float64(fields)
}

// geoSpecificityScore rewards exact coordinates over a bare location
// name over nothing at all.
func geoSpecificityScore(sig llmprovider.ExtractedSignal) float64 {
	switch {
	case sig.Lat != nil && sig.Lng != nil:
		return 1.0
	case sig.LocationName != "":
		return 0.5
	default:
		return 0.0
	}
}

// freshnessScore decays linearly from 1.0 (just fetched) to 0.0 at 30
// days old, matching the cadence-band horizon §4.6.1 uses elsewhere.
func freshnessScore(fetchedAt time.Time) float64 {
	age := time.Since(fetchedAt)
	const horizon = 30 * 24 * time.Hour
	if age <= 0 {
		return 1.0
	}
	if age >= horizon {
		return 0.0
	}
	return 1.0 - float64(age)/float64(horizon)
}
