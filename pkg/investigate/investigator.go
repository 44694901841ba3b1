// Package investigate implements the investigator (§4.8): for
// uncorroborated signals due for a re-check, issue a handful of targeted
// web searches and judge whether any hit actually corroborates the
// signal's claim.
package investigate

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
	"github.com/civic-scout/scout/pkg/scout"
)

// allVariants is every variant the investigator draws targets from;
// unlike the response finder (§4.9), which only ever looks at tensions,
// §4.8 investigates any uncorroborated signal regardless of kind.
var allVariants = []graph.Variant{
	graph.VariantGathering, graph.VariantAid, graph.VariantNeed,
	graph.VariantNotice, graph.VariantTension,
}

// sensitiveTerms are stripped from a sensitive signal's search queries so
// they never surface an enforcement action, legal proceeding, or
// individual's name (§4.8 sensitivity-aware query construction).
var sensitiveTerms = []string{
	"arrest", "arrested", "enforcement", "lawsuit", "legal action",
	"charges", "charged", "suspect", "defendant", "indicted", "warrant",
	"citation", "eviction notice", "prosecuted",
}

const perVariantFetchLimit = 20

// Store is the narrow graph surface §4.8 needs.
type Store interface {
	ListUncorroborated(ctx context.Context, city string, variant graph.Variant, cooldown time.Duration, limit int) ([]*graph.Signal, error)
	AddEvidence(ctx context.Context, signalID string, ev *graph.Evidence) error
	Corroborate(ctx context.Context, signalID string, newEvidenceEntityDomain string) error
	MarkInvestigated(ctx context.Context, signalID string, at time.Time) error
}

// llm is the narrow LLM surface; satisfied by *llmprovider.Client.
type llm interface {
	JudgeRelevance(ctx context.Context, targetSummary, hitText string) (*llmprovider.RelevanceJudgment, error)
}

// Investigator runs §4.8 against one city per Scout run.
type Investigator struct {
	Store Store
	Caps  fetch.Capabilities
	LLM   llm
}

// Run implements the orchestrator's investigator interface.
func (inv *Investigator) Run(ctx context.Context, city config.CityProfile, meter *budget.Meter) (scout.PhaseStats, error) {
	var stats scout.PhaseStats

	targets, err := inv.selectTargets(ctx, city.CityKey)
	if err != nil {
		return stats, fmt.Errorf("select investigation targets: %w", err)
	}

	usedDomains := make(map[string]bool)
	queriesIssued := 0
	now := time.Now()

	for _, t := range targets {
		if stats.Attempted >= config.MaxInvestigationTargetsPerRun || queriesIssued >= config.MaxSearchQueriesPerRun {
			break
		}

		domain := entityDomainOf(t.SourceURL)
		if usedDomains[domain] {
			// §4.8 per-source-domain cap: at most one target per
			// originating domain investigated per run.
			continue
		}
		usedDomains[domain] = true
		stats.Attempted++

		found, issued := inv.investigateOne(ctx, t, city, domain, meter, queriesIssued, now)
		queriesIssued = issued

		if err := inv.Store.MarkInvestigated(ctx, t.ID, now); err != nil {
			stats.Failed++
			if stats.FirstErr == nil {
				stats.FirstErr = err
			}
			continue
		}
		if found {
			stats.Succeeded++
		}
	}

	return stats, nil
}

// investigateOne issues up to MaxSearchQueriesPerTarget queries for one
// signal and judges every hit not from the signal's own domain. It
// always stamps investigated_at via the caller, win or lose.
func (inv *Investigator) investigateOne(ctx context.Context, t *graph.Signal, city config.CityProfile, ownDomain string, meter *budget.Meter, queriesIssued int, now time.Time) (found bool, newQueriesIssued int) {
	for _, q := range buildQueries(t, city) {
		if queriesIssued >= config.MaxSearchQueriesPerRun {
			break
		}
		if !meter.HasBudget(budget.ClassWebSearch) {
			break
		}
		meter.Charge(budget.ClassWebSearch)
		queriesIssued++

		hits, err := inv.Caps.SearchWeb(ctx, q)
		if err != nil {
			continue
		}

		for _, h := range hits {
			if entityDomainOf(h.URL) == ownDomain {
				// Cross-domain filtering: a hit from the signal's own
				// source domain isn't independent corroboration.
				continue
			}
			if !meter.HasBudget(budget.ClassInvestigation) {
				continue
			}
			meter.Charge(budget.ClassInvestigation)

			judgment, err := inv.LLM.JudgeRelevance(ctx, t.Title+": "+t.Summary, h.Title+"\n"+h.Snippet)
			if err != nil || judgment == nil || judgment.Relevance < 0.5 {
				continue
			}

			ev := &graph.Evidence{
				ID:          ulid.Make().String(),
				SignalID:    t.ID,
				URL:         h.URL,
				ContentHash: xxhash.Sum64String(h.URL),
				RawExcerpt:  h.Snippet,
				FetchedAt:   now,
			}
			if err := inv.Store.AddEvidence(ctx, t.ID, ev); err != nil {
				continue
			}
			if err := inv.Store.Corroborate(ctx, t.ID, entityDomainOf(h.URL)); err != nil {
				continue
			}
			found = true
		}
	}
	return found, queriesIssued
}

// selectTargets merges §4.8's five per-variant uncorroborated lists
// (each already ordered by the store per the spec's
// (1 - corroboration_count/10, sensitivity_rank) DESC formula) into one
// combined priority order.
func (inv *Investigator) selectTargets(ctx context.Context, city string) ([]*graph.Signal, error) {
	var all []*graph.Signal
	for _, v := range allVariants {
		sigs, err := inv.Store.ListUncorroborated(ctx, city, v, config.InvestigationCooldown, perVariantFetchLimit)
		if err != nil {
			return nil, fmt.Errorf("list uncorroborated %s: %w", v, err)
		}
		all = append(all, sigs...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		pi, pj := investigationPriority(all[i]), investigationPriority(all[j])
		if pi != pj {
			return pi > pj
		}
		return sensitivityRank(all[i].Sensitivity) > sensitivityRank(all[j].Sensitivity)
	})
	return all, nil
}

func investigationPriority(s *graph.Signal) float64 {
	c := s.CorroborationCount
	if c > 10 {
		c = 10
	}
	return 1 - float64(c)/10.0
}

func sensitivityRank(s graph.Sensitivity) int {
	switch s {
	case graph.SensitivitySensitive:
		return 2
	case graph.SensitivityElevated:
		return 1
	default:
		return 0
	}
}

// buildQueries turns one target signal into up to
// MaxSearchQueriesPerTarget search queries, stripping enforcement/legal
// terms for sensitive signals (§4.8).
func buildQueries(t *graph.Signal, city config.CityProfile) []string {
	var fragments []string
	fragments = append(fragments, t.Title)
	if t.WhatWouldHelp != nil && *t.WhatWouldHelp != "" {
		fragments = append(fragments, *t.WhatWouldHelp)
	}
	if t.WhatNeeded != nil && *t.WhatNeeded != "" {
		fragments = append(fragments, *t.WhatNeeded)
	}
	if t.Category != nil && *t.Category != "" {
		fragments = append(fragments, *t.Category)
	}

	queries := make([]string, 0, config.MaxSearchQueriesPerTarget)
	for _, f := range fragments {
		if len(queries) >= config.MaxSearchQueriesPerTarget {
			break
		}
		q := strings.TrimSpace(f + " " + city.DisplayName)
		if t.Sensitivity == graph.SensitivitySensitive {
			q = stripSensitiveTerms(q)
		}
		if q == "" {
			continue
		}
		queries = append(queries, q)
	}
	return queries
}

// stripSensitiveTerms removes enforcement/legal vocabulary
// case-insensitively, collapsing the resulting whitespace.
func stripSensitiveTerms(q string) string {
	lower := strings.ToLower(q)
	for _, term := range sensitiveTerms {
		for {
			idx := strings.Index(lower, term)
			if idx == -1 {
				break
			}
			q = q[:idx] + q[idx+len(term):]
			lower = strings.ToLower(q)
		}
	}
	return strings.Join(strings.Fields(q), " ")
}

// entityDomainOf derives the registrable host behind a URL, matching
// pkg/scout/persist.go's derivation so corroboration's source_diversity
// count agrees across every package that writes it.
func entityDomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
