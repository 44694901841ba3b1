// Package discover implements §4.7's curiosity engine: the Scout's
// between-run source-gap analysis. It reads the current graph state,
// assembles a briefing, and either asks an LLM for new candidate search
// queries or falls back to a mechanical template when the graph is too
// thin to brief usefully or the call isn't affordable.
package discover

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

// Store is the narrow graph surface the discoverer needs.
type Store interface {
	ListDiscoverySources(ctx context.Context, city string) ([]*graph.Source, error)
	ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error)
	ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error)
	ListTensionBriefs(ctx context.Context, city string) ([]graph.TensionBrief, error)
	ListSignalsByVariant(ctx context.Context, city string, variant graph.Variant) ([]*graph.Signal, error)
	ListUntrackedActors(ctx context.Context, city string) ([]*graph.Actor, error)
	UpsertSource(ctx context.Context, s *graph.Source) (*graph.Source, error)
}

// llm is the narrow LLM surface; satisfied by *llmprovider.Client.
type llm interface {
	DiscoverQueries(ctx context.Context, briefing string) (*llmprovider.DiscoveryResult, error)
}

// Discoverer runs §4.7 against one city per Scout run.
type Discoverer struct {
	Store Store
	LLM   llm
}

// coldStartTensionFloor gates the mechanical fallback per §4.7 "cold
// start"; a city with no active stories is also treated as cold.
const coldStartTensionFloor = 3

// Run drives one discovery pass (§4.7) and returns how many new Source
// rows were created.
func (d *Discoverer) Run(ctx context.Context, city config.CityProfile, meter *budget.Meter) (int, error) {
	briefs, err := d.Store.ListTensionBriefs(ctx, city.CityKey)
	if err != nil {
		return 0, fmt.Errorf("list tension briefs: %w", err)
	}
	stories, err := d.Store.ListActiveStories(ctx, city.CityKey)
	if err != nil {
		return 0, fmt.Errorf("list active stories: %w", err)
	}
	actors, err := d.Store.ListUntrackedActors(ctx, city.CityKey)
	if err != nil {
		return 0, fmt.Errorf("list untracked actors: %w", err)
	}

	active, err := d.Store.ListActiveSources(ctx, city.CityKey)
	if err != nil {
		return 0, fmt.Errorf("list active sources: %w", err)
	}
	existing := existingQueryKeys(active)

	created := 0

	coldStart := len(briefs) < coldStartTensionFloor || len(stories) == 0
	switch {
	case coldStart:
		n, err := d.mechanicalFallback(ctx, city, briefs, existing)
		if err != nil {
			return created, err
		}
		created += n

	case !meter.HasBudget(budget.ClassDiscovery):
		// Budget guard: without budget for the discovery call, fall
		// through to the same mechanical template cold start uses.
		n, err := d.mechanicalFallback(ctx, city, briefs, existing)
		if err != nil {
			return created, err
		}
		created += n

	case len(briefs) == 0 && len(actors) == 0:
		// Without tensions and actors there is nothing to brief or
		// discover from; skip entirely rather than call the LLM on an
		// empty briefing.

	default:
		n, err := d.llmDiscovery(ctx, city, briefs, active, existing, meter)
		if err != nil {
			return created, err
		}
		created += n
	}

	n, err := d.actorDerivedDiscovery(ctx, city, actors, existing)
	if err != nil {
		return created, err
	}
	created += n

	return created, nil
}

func (d *Discoverer) mechanicalFallback(ctx context.Context, city config.CityProfile, briefs []graph.TensionBrief, existing map[string]bool) (int, error) {
	created := 0
	for _, b := range briefs {
		if b.Signal.WhatWouldHelp == nil || *b.Signal.WhatWouldHelp == "" {
			continue
		}
		query := strings.TrimSpace(*b.Signal.WhatWouldHelp) + " " + city.DisplayName
		if containsExisting(existing, query) {
			continue
		}
		if err := d.createQuerySource(ctx, city, query, 0.3, "gap_analysis", "Tension: "+*b.Signal.WhatWouldHelp); err != nil {
			return created, err
		}
		existing[strings.ToLower(query)] = true
		created++
		if created >= config.MaxCuriosityQueries {
			break
		}
	}
	return created, nil
}

func (d *Discoverer) llmDiscovery(ctx context.Context, city config.CityProfile, briefs []graph.TensionBrief, active []*graph.Source, existing map[string]bool, meter *budget.Meter) (int, error) {
	briefing, err := d.buildBriefing(ctx, city, briefs, active)
	if err != nil {
		return 0, err
	}

	meter.Charge(budget.ClassDiscovery)
	result, err := d.LLM.DiscoverQueries(ctx, briefing)
	if err != nil {
		// §7: an LLM call failure here just yields zero new queries this
		// run, it isn't a reason to abort the Scout run.
		return 0, nil
	}

	created := 0
	for _, q := range result.Queries {
		if created >= config.MaxCuriosityQueries {
			break
		}
		query := strings.TrimSpace(q.QueryText)
		if query == "" || containsExisting(existing, query) {
			continue
		}
		gapContext := fmt.Sprintf("Curiosity: %s | Gap: %s", q.Reasoning, q.GapType)
		if err := d.createQuerySource(ctx, city, query, 0.3, "gap_analysis", gapContext); err != nil {
			return created, err
		}
		existing[strings.ToLower(query)] = true
		created++
	}
	return created, nil
}

func (d *Discoverer) actorDerivedDiscovery(ctx context.Context, city config.CityProfile, actors []*graph.Actor, existing map[string]bool) (int, error) {
	created := 0
	for _, a := range actors {
		for _, domain := range a.Domains {
			if containsExisting(existing, domain) {
				continue
			}
			s := &graph.Source{
				ID:              ulid.Make().String(),
				City:            city.CityKey,
				CanonicalKey:    domain,
				SourceType:      graph.SourceCuratedWeb,
				URL:             "https://" + domain,
				Weight:          0.3,
				Active:          true,
				DiscoveryMethod: "signal_reference",
				GapContext:      "Actor: " + a.CanonicalName,
				EntityID:        a.ID,
			}
			if _, err := d.Store.UpsertSource(ctx, s); err != nil {
				return created, fmt.Errorf("create actor-derived source %q: %w", domain, err)
			}
			existing[strings.ToLower(domain)] = true
			created++
		}
		for _, social := range a.SocialURLs {
			platform, handle, ok := inferSocialPlatform(social)
			if !ok {
				continue
			}
			key := platform + ":" + handle
			if containsExisting(existing, key) {
				continue
			}
			s := &graph.Source{
				ID:              ulid.Make().String(),
				City:            city.CityKey,
				CanonicalKey:    key,
				SourceType:      graph.SourceType(platform),
				URL:             handle,
				Weight:          0.3,
				Active:          true,
				DiscoveryMethod: "signal_reference",
				GapContext:      "Actor: " + a.CanonicalName,
				EntityID:        a.ID,
			}
			if _, err := d.Store.UpsertSource(ctx, s); err != nil {
				return created, fmt.Errorf("create actor-derived source %q: %w", social, err)
			}
			existing[strings.ToLower(key)] = true
			created++
		}
	}
	return created, nil
}

func (d *Discoverer) createQuerySource(ctx context.Context, city config.CityProfile, query string, weight float64, discoveryMethod, gapContext string) error {
	s := &graph.Source{
		ID:              ulid.Make().String(),
		City:            city.CityKey,
		CanonicalKey:    "query:" + query,
		SourceType:      graph.SourceWebQuery,
		URL:             query,
		Weight:          weight,
		Active:          true,
		DiscoveryMethod: discoveryMethod,
		GapContext:      gapContext,
	}
	_, err := d.Store.UpsertSource(ctx, s)
	if err != nil {
		return fmt.Errorf("create query source %q: %w", query, err)
	}
	return nil
}

// buildBriefing assembles §4.7's input bundle into the plain-text prompt
// the discovery LLM call reads.
func (d *Discoverer) buildBriefing(ctx context.Context, city config.CityProfile, briefs []graph.TensionBrief, active []*graph.Source) (string, error) {
	discoverySources, err := d.Store.ListDiscoverySources(ctx, city.CityKey)
	if err != nil {
		return "", fmt.Errorf("list discovery sources: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "City: %s\n\n", city.DisplayName)

	top, failing := splitPerformance(discoverySources)
	b.WriteString("Top-performing discovery sources:\n")
	for _, s := range top {
		fmt.Fprintf(&b, "- %s (signals_produced=%d): %s\n", s.URL, s.SignalsProduced, s.GapContext)
	}
	b.WriteString("\nFailing discovery sources:\n")
	for _, s := range failing {
		fmt.Fprintf(&b, "- %s (active=%v, empty_runs=%d): %s\n", s.URL, s.Active, s.ConsecutiveEmptyRuns, s.GapContext)
	}

	b.WriteString("\nUnmet tensions (ordered by unmet-first, severity):\n")
	for _, t := range briefs {
		severity := ""
		if t.Signal.Severity != nil {
			severity = *t.Signal.Severity
		}
		fmt.Fprintf(&b, "- %q (responses=%d, severity=%s, corroboration=%d, source_diversity=%d)\n",
			t.Signal.Title, t.ResponseCount, severity, t.Signal.CorroborationCount, t.Signal.SourceDiversity)
	}

	b.WriteString("\nSignal-type counts:\n")
	for _, v := range []graph.Variant{graph.VariantGathering, graph.VariantAid, graph.VariantNeed, graph.VariantNotice, graph.VariantTension} {
		signals, err := d.Store.ListSignalsByVariant(ctx, city.CityKey, v)
		if err != nil {
			return "", fmt.Errorf("list signals by variant %s: %w", v, err)
		}
		fmt.Fprintf(&b, "- %s: %d\n", v, len(signals))
	}

	b.WriteString("\nActive source canonical keys (avoid duplicating):\n")
	for _, s := range active {
		fmt.Fprintf(&b, "- %s\n", s.CanonicalKey)
	}

	return b.String(), nil
}

// splitPerformance buckets discovery-created sources into the briefing's
// top-5-by-yield and top-5-failing lists (§4.7).
func splitPerformance(sources []*graph.Source) (top, failing []*graph.Source) {
	byYield := append([]*graph.Source(nil), sources...)
	sort.Slice(byYield, func(i, j int) bool { return byYield[i].SignalsProduced > byYield[j].SignalsProduced })
	if len(byYield) > 5 {
		byYield = byYield[:5]
	}

	var failingAll []*graph.Source
	for _, s := range sources {
		if !s.Active || s.ConsecutiveEmptyRuns >= 3 {
			failingAll = append(failingAll, s)
		}
	}
	sort.Slice(failingAll, func(i, j int) bool { return failingAll[i].ConsecutiveEmptyRuns > failingAll[j].ConsecutiveEmptyRuns })
	if len(failingAll) > 5 {
		failingAll = failingAll[:5]
	}

	return byYield, failingAll
}

// existingQueryKeys indexes active sources' canonical keys and URLs
// (lowercased) for the substring-containment dedup check.
func existingQueryKeys(active []*graph.Source) map[string]bool {
	out := make(map[string]bool, len(active)*2)
	for _, s := range active {
		out[strings.ToLower(s.CanonicalKey)] = true
		out[strings.ToLower(s.URL)] = true
	}
	return out
}

// containsExisting reports whether candidate is a substring of any
// existing key or vice versa (§4.7 "dedup via substring containment").
func containsExisting(existing map[string]bool, candidate string) bool {
	c := strings.ToLower(strings.TrimSpace(candidate))
	if c == "" {
		return true
	}
	for key := range existing {
		if key == "" {
			continue
		}
		if strings.Contains(key, c) || strings.Contains(c, key) {
			return true
		}
	}
	return false
}

// inferSocialPlatform recognizes the five supported platforms from a raw
// profile URL and extracts the handle from its path.
func inferSocialPlatform(rawURL string) (platform, handle string, ok bool) {
	u := strings.ToLower(rawURL)
	domains := map[string]graph.SourceType{
		"instagram.com": graph.SourceInstagram,
		"facebook.com":  graph.SourceFacebook,
		"reddit.com":    graph.SourceReddit,
		"tiktok.com":    graph.SourceTikTok,
		"twitter.com":   graph.SourceTwitter,
		"x.com":         graph.SourceTwitter,
	}
	for domain, sourceType := range domains {
		idx := strings.Index(u, domain)
		if idx == -1 {
			continue
		}
		rest := strings.Trim(u[idx+len(domain):], "/")
		rest = strings.SplitN(rest, "/", 2)[0]
		rest = strings.SplitN(rest, "?", 2)[0]
		if rest == "" {
			return "", "", false
		}
		return string(sourceType), rest, true
	}
	return "", "", false
}
