// Package respond implements the response/gathering finder (§4.9): for
// every unresponded Tension, search for and extract concrete responses
// (aid offered, gatherings organized, needs that echo the same gap) and
// link them back to the tension they answer.
package respond

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/dedup"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
	"github.com/civic-scout/scout/pkg/scout"
)

// responseVariants is what a DiscoveredResponse is allowed to decode as;
// anything else is a malformed LLM response and is dropped.
var responseVariants = map[graph.Variant]bool{
	graph.VariantGathering: true,
	graph.VariantAid:       true,
	graph.VariantNeed:      true,
}

// Store is the narrow graph surface §4.9 needs. It embeds dedup.Store so
// the same three-layer stack used during fetch/extract/persist (§4.5)
// also governs whether a found response is new, a refresh, or
// corroboration of an already-linked responder.
type Store interface {
	dedup.Store
	ListUnrespondedTensions(ctx context.Context, city string) ([]*graph.Signal, error)
	CreateSignal(ctx context.Context, s *graph.Signal, ev *graph.Evidence) (string, error)
	AddEvidence(ctx context.Context, signalID string, ev *graph.Evidence) error
	RefreshSignal(ctx context.Context, signalID string, at time.Time) error
	Corroborate(ctx context.Context, signalID string, newEvidenceEntityDomain string) error
	UpdateSignalEmbedding(ctx context.Context, signalID string, embedding []float32) error
	LinkRespondsTo(ctx context.Context, responderID, tensionID string, matchStrength float64, explanation string) error
}

// embedder is the narrow surface needed from *llmprovider.Embedder.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// llm is the narrow LLM surface; satisfied by *llmprovider.Client.
type llm interface {
	FindResponses(ctx context.Context, tensionWhatWouldHelp, hitText string) (*llmprovider.DiscoveredResponseResult, error)
}

// Finder runs §4.9 against one city per Scout run.
type Finder struct {
	Store Store
	Caps  fetch.Capabilities
	LLM   llm
	Embed embedder
}

// Run implements the orchestrator's responseFinder interface.
func (f *Finder) Run(ctx context.Context, city config.CityProfile, meter *budget.Meter) (scout.PhaseStats, error) {
	var stats scout.PhaseStats

	tensions, err := f.Store.ListUnrespondedTensions(ctx, city.CityKey)
	if err != nil {
		return stats, fmt.Errorf("list unresponded tensions: %w", err)
	}

	stack := dedup.NewStack(f.Store, dedup.NewBatchSet(), dedup.NewEmbeddingCache(), meter)

	for _, tension := range tensions {
		if !meter.HasBudget(budget.ClassWebSearch) {
			break
		}
		stats.Attempted++

		query := city.DisplayName + " " + tension.Title
		if tension.WhatWouldHelp != nil && *tension.WhatWouldHelp != "" {
			query = *tension.WhatWouldHelp + " " + city.DisplayName
		}
		meter.Charge(budget.ClassWebSearch)

		hits, err := f.Caps.SearchWeb(ctx, query)
		if err != nil {
			continue
		}

		linked, err := f.processHits(ctx, stack, tension, hits, meter)
		if err != nil {
			stats.Failed++
			if stats.FirstErr == nil {
				stats.FirstErr = err
			}
			continue
		}
		if linked {
			stats.Succeeded++
		}
	}

	return stats, nil
}

func (f *Finder) processHits(ctx context.Context, stack *dedup.Stack, tension *graph.Signal, hits []fetch.Hit, meter *budget.Meter) (bool, error) {
	linked := false
	whatWouldHelp := ""
	if tension.WhatWouldHelp != nil {
		whatWouldHelp = *tension.WhatWouldHelp
	}

	for _, h := range hits {
		if !meter.HasBudget(budget.ClassInvestigation) {
			break
		}
		meter.Charge(budget.ClassInvestigation)

		result, err := f.LLM.FindResponses(ctx, whatWouldHelp, h.Title+"\n"+h.Snippet)
		if err != nil || result == nil {
			continue
		}

		for _, r := range result.Responses {
			variant := graph.Variant(r.Variant)
			if !responseVariants[variant] {
				continue
			}

			responderID, err := f.matchOrCreate(ctx, stack, variant, r, h.URL, tension.City)
			if err != nil || responderID == "" {
				continue
			}
			if err := f.Store.LinkRespondsTo(ctx, responderID, tension.ID, r.MatchStrength, r.Explanation); err != nil {
				continue
			}
			linked = true
		}
	}

	return linked, nil
}

// matchOrCreate runs §4.5's dedup stack against one discovered response
// and returns the signal ID it resolved to — existing (refresh/
// corroborate) or newly created.
func (f *Finder) matchOrCreate(ctx context.Context, stack *dedup.Stack, variant graph.Variant, r llmprovider.DiscoveredResponse, sourceURL, city string) (string, error) {
	var embedding []float32
	if f.Embed != nil && f.Store != nil {
		// Embedding is best-effort (§7 EmbeddingUnavailable): a failure
		// here just skips layer 3 for this candidate, not the whole run.
		if v, err := f.Embed.Embed(ctx, r.Title+"\n"+r.Summary); err == nil {
			embedding = v
		}
	}

	decision, err := stack.Decide(ctx, variant, r.Title, sourceURL, embedding)
	if err != nil {
		return "", fmt.Errorf("dedup decide: %w", err)
	}

	now := time.Now()
	switch decision.Outcome {
	case dedup.OutcomeDropExact:
		return "", nil

	case dedup.OutcomeRefresh:
		if err := f.Store.RefreshSignal(ctx, decision.MatchedID, now); err != nil {
			return "", fmt.Errorf("refresh responder: %w", err)
		}
		return decision.MatchedID, nil

	case dedup.OutcomeCorroborate:
		ev := &graph.Evidence{ID: ulid.Make().String(), URL: sourceURL, FetchedAt: now}
		if err := f.Store.AddEvidence(ctx, decision.MatchedID, ev); err != nil {
			return "", fmt.Errorf("add corroborating evidence: %w", err)
		}
		if err := f.Store.Corroborate(ctx, decision.MatchedID, entityDomainOf(sourceURL)); err != nil {
			return "", fmt.Errorf("corroborate responder: %w", err)
		}
		return decision.MatchedID, nil

	default: // OutcomeNew
		signal := &graph.Signal{
			ID:                  ulid.Make().String(),
			City:                city,
			Variant:             variant,
			Title:               r.Title,
			Summary:             r.Summary,
			Confidence:          r.MatchStrength,
			Sensitivity:         graph.SensitivityNormal,
			SourceURL:           sourceURL,
			LastConfirmedActive: now,
			SourceDiversity:     1,
			Embedding:           embedding,
			CreatedAt:           now,
			IsRecurring:         r.IsRecurring,
		}
		ev := &graph.Evidence{ID: ulid.Make().String(), URL: sourceURL, FetchedAt: now}
		id, err := f.Store.CreateSignal(ctx, signal, ev)
		if err != nil {
			return "", fmt.Errorf("create responder signal: %w", err)
		}
		if len(embedding) > 0 {
			_ = f.Store.UpdateSignalEmbedding(ctx, id, embedding)
		}
		return id, nil
	}
}

// entityDomainOf derives the registrable host behind a URL, matching
// pkg/scout/persist.go's and pkg/investigate's derivation so every
// package that writes source_diversity agrees on what a "domain" is.
func entityDomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
