package scout

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
	"github.com/civic-scout/scout/pkg/extract"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/masking"
)

// embedder is the narrow surface persist needs from *llmprovider.Embedder.
type embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// persistStore is the store surface §4.6 step 5 needs.
type persistStore interface {
	CreateSignal(ctx context.Context, s *graph.Signal, ev *graph.Evidence) (string, error)
	AddEvidence(ctx context.Context, signalID string, ev *graph.Evidence) error
	FindSignalsByEvidence(ctx context.Context, url string, contentHash uint64) ([]string, error)
	RefreshSignal(ctx context.Context, signalID string, at time.Time) error
	Corroborate(ctx context.Context, signalID string, newEvidenceEntityDomain string) error
	UpdateSignalEmbedding(ctx context.Context, signalID string, embedding []float32) error
	FindOrCreateActor(ctx context.Context, city, canonicalName string, domains, socialURLs []string) (*graph.Actor, error)
	LinkActor(ctx context.Context, signalID, actorID string) error
}

// persistRun bundles the scoped, per-run collaborators candidate
// persistence needs: the Extractor, the dedup Stack (already carrying
// this run's BatchSet/EmbeddingCache), and the Embedder charged against
// the shared budget Meter.
type persistRun struct {
	store     persistStore
	extractor *extract.Extractor
	dedup     *dedup.Stack
	embed     embedder
	meter     *budget.Meter
	masker    *masking.Service
}

// persistCounts tallies what happened across one source's candidates.
type persistCounts struct {
	New          int
	TensionNew   int // of New, how many were graph.VariantTension (§4.6.1 tension_bonus)
	Refreshed    int
	Corroborated int
	Dropped      int
}

// persistPage runs the extractor against one fetched page, then the
// dedup stack and graph writes for each resulting candidate (§4.6 steps
// 4-5). Extraction failures are non-fatal (§7 ExtractionFailed): the
// caller just sees zero signals for that page.
//
// Before extraction it applies §4.3's content dedup contract: if an
// Evidence row already exists for this exact (url, content_hash) pair,
// the page has not changed since it was last seen, so extraction is
// skipped entirely and every Signal that evidence backs just has its
// last_confirmed_active bumped.
func (r *persistRun) persistPage(ctx context.Context, page *fetch.RawPage, source *graph.Source, city config.CityProfile) (persistCounts, error) {
	var counts persistCounts

	seen, err := r.store.FindSignalsByEvidence(ctx, page.URL, page.ContentHash)
	if err != nil {
		return counts, fmt.Errorf("find signals by evidence: %w", err)
	}
	if len(seen) > 0 {
		now := time.Now()
		for _, signalID := range seen {
			if err := r.store.RefreshSignal(ctx, signalID, now); err != nil {
				return counts, fmt.Errorf("refresh signal: %w", err)
			}
			counts.Refreshed++
		}
		return counts, nil
	}

	candidates, err := r.extractor.Extract(ctx, page, page.URL, city)
	if err != nil {
		return counts, fmt.Errorf("%w", err)
	}

	for _, c := range candidates {
		outcome, err := r.persistCandidate(ctx, c, source, page.ContentHash)
		if err != nil {
			return counts, err
		}
		switch outcome {
		case dedup.OutcomeNew:
			counts.New++
			if c.Variant == graph.VariantTension {
				counts.TensionNew++
			}
		case dedup.OutcomeRefresh:
			counts.Refreshed++
		case dedup.OutcomeCorroborate:
			counts.Corroborated++
		case dedup.OutcomeDropExact:
			counts.Dropped++
		}
	}

	return counts, nil
}

// persistCandidate runs one candidate through §4.5's dedup stack, then
// performs whichever graph write the decision calls for. contentHash is
// the fetched page's content hash, carried onto the Evidence row this
// candidate produces so a later run's §4.3 content dedup check can find it.
func (r *persistRun) persistCandidate(ctx context.Context, c extract.Candidate, source *graph.Source, contentHash uint64) (dedup.Outcome, error) {
	var embedding []float32
	if r.meter.HasBudget(budget.ClassEmbedding) {
		if v, err := r.embed.Embed(ctx, c.Title+"\n"+c.Summary); err == nil {
			embedding = v
			r.meter.Charge(budget.ClassEmbedding)
		}
		// §7 EmbeddingUnavailable: persist without embedding, skip vector
		// dedup for this candidate; it becomes eligible again next run.
	}

	decision, err := r.dedup.Decide(ctx, c.Variant, c.Title, c.SourceURL, embedding)
	if err != nil {
		return decision.Outcome, fmt.Errorf("dedup decide: %w", err)
	}

	now := time.Now()
	switch decision.Outcome {
	case dedup.OutcomeDropExact:
		return decision.Outcome, nil

	case dedup.OutcomeRefresh:
		if err := r.store.RefreshSignal(ctx, decision.MatchedID, now); err != nil {
			return decision.Outcome, fmt.Errorf("refresh signal: %w", err)
		}
		return decision.Outcome, nil

	case dedup.OutcomeCorroborate:
		if err := r.store.AddEvidence(ctx, decision.MatchedID, newEvidence(source.ID, c.SourceURL, r.masker.Mask(c.RawExcerpt), contentHash, now)); err != nil {
			return decision.Outcome, fmt.Errorf("add corroborating evidence: %w", err)
		}
		if err := r.store.Corroborate(ctx, decision.MatchedID, entityDomainOf(c.SourceURL)); err != nil {
			return decision.Outcome, fmt.Errorf("corroborate: %w", err)
		}
		if len(embedding) > 0 {
			r.dedup.RememberEmbedding(c.Variant, decision.MatchedID, embedding, c.SourceURL)
		}
		return decision.Outcome, nil

	default: // OutcomeNew
		signalID, err := r.createNewSignal(ctx, c, source, embedding, contentHash, now)
		if err != nil {
			return decision.Outcome, err
		}
		if len(embedding) > 0 {
			r.dedup.RememberEmbedding(c.Variant, signalID, embedding, c.SourceURL)
		}
		return decision.Outcome, nil
	}
}

func (r *persistRun) createNewSignal(ctx context.Context, c extract.Candidate, source *graph.Source, embedding []float32, contentHash uint64, now time.Time) (string, error) {
	signal := &graph.Signal{
		ID:                  ulid.Make().String(),
		City:                c.City,
		Variant:             c.Variant,
		Title:               c.Title,
		Summary:             c.Summary,
		Confidence:          c.Confidence,
		Sensitivity:         c.Sensitivity,
		Lat:                 c.Lat,
		Lng:                 c.Lng,
		GeoPrecision:        c.GeoPrecision,
		SourceURL:           c.SourceURL,
		LastConfirmedActive: c.LastConfirmedActive,
		CorroborationCount:  0,
		SourceDiversity:     1,
		Embedding:           embedding,
		CreatedAt:           now,
		StartsAt:            c.StartsAt,
		EndsAt:              c.EndsAt,
		IsRecurring:         c.IsRecurring,
		ActionURL:           c.ActionURL,
		IsOngoing:           c.IsOngoing,
		Urgency:             c.Urgency,
		WhatNeeded:          c.WhatNeeded,
		Severity:            c.Severity,
		Category:            c.Category,
		EffectiveDate:       c.EffectiveDate,
		SourceAuthority:     c.SourceAuthority,
		WhatWouldHelp:       c.WhatWouldHelp,
	}

	id, err := r.store.CreateSignal(ctx, signal, newEvidence(source.ID, c.SourceURL, r.masker.Mask(c.RawExcerpt), contentHash, now))
	if err != nil {
		return "", fmt.Errorf("create signal: %w", err)
	}

	for _, mention := range c.MentionedActors {
		actor, err := r.store.FindOrCreateActor(ctx, c.City, mention.Name, appendDomain(mention.Domain), mention.SocialURLs)
		if err != nil {
			continue
		}
		_ = r.store.LinkActor(ctx, id, actor.ID)
	}

	return id, nil
}

func appendDomain(domain string) []string {
	if domain == "" {
		return nil
	}
	return []string{domain}
}

func newEvidence(sourceID, rawURL, rawExcerpt string, contentHash uint64, at time.Time) *graph.Evidence {
	return &graph.Evidence{
		ID:          ulid.Make().String(),
		SourceID:    sourceID,
		URL:         rawURL,
		RawExcerpt:  rawExcerpt,
		ContentHash: contentHash,
		FetchedAt:   at,
	}
}

// entityDomainOf derives the host behind a URL, lowercased and without a
// leading "www.". pkg/graph/store's own derivation for source_diversity
// (split_part on "//" and "/") does neither, so the two agree only for
// lowercase hosts without that prefix.
func entityDomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
