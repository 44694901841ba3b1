package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

// llmClient is the narrow surface Extractor needs from *llmprovider.Client,
// kept as an interface so tests can fake the LLM call.
type llmClient interface {
	ExtractSignals(ctx context.Context, pageText string) (*llmprovider.ExtractionResult, error)
}

// Extractor runs §4.4 against one fetched page for one city.
type Extractor struct {
	llm llmClient
}

// NewExtractor constructs an Extractor.
func NewExtractor(llm llmClient) *Extractor {
	return &Extractor{llm: llm}
}

// Extract runs the LLM extraction call against page, then applies the
// geo filter and confidence scoring per city profile. Extraction
// failures are wrapped in ErrExtractionFailed; callers should treat it
// as non-fatal and increment the source's miss counter.
func (e *Extractor) Extract(ctx context.Context, page *fetch.RawPage, sourceURL string, city config.CityProfile) ([]Candidate, error) {
	result, err := e.llm.ExtractSignals(ctx, page.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExtractionFailed, err)
	}

	out := make([]Candidate, 0, len(result.Signals))
	for _, raw := range result.Signals {
		c, keep := e.buildCandidate(raw, page, sourceURL, city)
		if keep {
			out = append(out, c)
		}
	}
	return out, nil
}

const maxExcerptLen = 2000

func excerpt(body string, maxLen int) string {
	if len(body) <= maxLen {
		return body
	}
	return strings.TrimSpace(body[:maxLen]) + "…"
}

func (e *Extractor) buildCandidate(raw llmprovider.ExtractedSignal, page *fetch.RawPage, sourceURL string, city config.CityProfile) (Candidate, bool) {
	c := Candidate{
		City:                city.CityKey,
		Variant:             graph.Variant(raw.Variant),
		Title:               strings.TrimSpace(raw.Title),
		Summary:             strings.TrimSpace(raw.Summary),
		Sensitivity:         graph.Sensitivity(raw.Sensitivity),
		LocationName:        raw.LocationName,
		SourceURL:           sourceURL,
		LastConfirmedActive: time.Now(),
		GeoPrecision:        graph.GeoPrecisionExact,
		RawExcerpt:          excerpt(page.Body, maxExcerptLen),
	}
	if c.Title == "" || !ValidVariant(c.Variant) {
		return c, false
	}

	if raw.Lat != nil && raw.Lng != nil {
		verdict := applyGeoFilter(*raw.Lat, *raw.Lng, city.CenterLat, city.CenterLng, city.RadiusKM, config.GeoEpsilonDegrees)
		switch verdict {
		case geoReject:
			return c, false
		case geoSnapNull:
			c.Lat, c.Lng = nil, nil
			c.GeoPrecision = graph.GeoPrecisionCity
		case geoKeep:
			c.Lat, c.Lng = raw.Lat, raw.Lng
		}
	} else {
		c.GeoPrecision = graph.GeoPrecisionCity
	}

	c.Confidence = scoreConfidence(raw, page.FetchedAt)
	if !recognizedLocation(raw.LocationName, city.GeoTerms) {
		c.Confidence *= unrecognizedLocationPenalty
	}

	for _, m := range raw.MentionedActors {
		c.MentionedActors = append(c.MentionedActors, ActorMention{
			Name:       m.Name,
			Domain:     m.Domain,
			SocialURLs: m.SocialURLs,
		})
	}

	c.StartsAt = parseOptionalTime(raw.StartsAt)
	c.EndsAt = parseOptionalTime(raw.EndsAt)
	c.IsRecurring = raw.IsRecurring
	c.ActionURL = nonEmptyPtr(raw.ActionURL)
	c.IsOngoing = raw.IsOngoing
	c.Urgency = nonEmptyPtr(raw.Urgency)
	c.WhatNeeded = nonEmptyPtr(raw.WhatNeeded)
	c.Severity = nonEmptyPtr(raw.Severity)
	c.Category = nonEmptyPtr(raw.Category)
	c.EffectiveDate = parseOptionalTime(raw.EffectiveDate)
	c.SourceAuthority = nonEmptyPtr(raw.SourceAuthority)
	c.WhatWouldHelp = nonEmptyPtr(raw.WhatWouldHelp)

	return c, true
}

// parseOptionalTime returns nil rather than a best-guess default when s
// is empty or unparseable — §4.4 forbids defaulting an unknown
// Gathering starts_at to "now".
func parseOptionalTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}

func nonEmptyPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
