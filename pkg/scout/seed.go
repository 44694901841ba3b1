package scout

import (
	"context"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
)

// seedStore is the narrow store surface seeding needs.
type seedStore interface {
	UpsertSource(ctx context.Context, s *graph.Source) (*graph.Source, error)
}

// SeedSources idempotently upserts a CityProfile's curated sources and
// seed queries as Source rows (§6 "Environment / configuration"). It is
// meant to run once per city before the first Scout run; UpsertSource's
// (city, canonical_key) conflict target makes repeated calls safe.
// Curated sources are seeded with CanonicalKey == URL so the
// scheduler's dead-source-immunity check (curatedKeySet) can key off
// the same value without a second lookup.
func SeedSources(ctx context.Context, st seedStore, city config.CityProfile) error {
	for _, cs := range city.CuratedSources {
		sourceType := graph.SourceCuratedWeb
		if cs.Kind == config.CuratedSourceHeadless {
			sourceType = graph.SourceCuratedHeadless
		}
		s := &graph.Source{
			ID:           ulid.Make().String(),
			City:         city.CityKey,
			CanonicalKey: cs.URL,
			SourceType:   sourceType,
			URL:          cs.URL,
			Weight:       1.0,
			Active:       true,
		}
		if _, err := st.UpsertSource(ctx, s); err != nil {
			return fmt.Errorf("seed curated source %q: %w", cs.URL, err)
		}
	}

	for _, q := range city.SeedQueries {
		s := &graph.Source{
			ID:           ulid.Make().String(),
			City:         city.CityKey,
			CanonicalKey: "query:" + q,
			SourceType:   graph.SourceWebQuery,
			URL:          q,
			Weight:       0.5,
			Active:       true,
			GapContext:   "seed query",
		}
		if _, err := st.UpsertSource(ctx, s); err != nil {
			return fmt.Errorf("seed query source %q: %w", q, err)
		}
	}

	// Seed social accounts are "platform:handle" pairs (§3 Source's
	// canonical_key grammar); unrecognized platforms are skipped rather
	// than rejected outright, since a city profile shouldn't fail to load
	// over one bad entry.
	for _, acct := range city.SeedSocialAccount {
		platform, handle, ok := strings.Cut(acct, ":")
		if !ok || !validSocialPlatform(platform) {
			continue
		}
		s := &graph.Source{
			ID:           ulid.Make().String(),
			City:         city.CityKey,
			CanonicalKey: acct,
			SourceType:   graph.SourceType(platform),
			URL:          handle,
			Weight:       0.5,
			Active:       true,
			GapContext:   "seed social account",
		}
		if _, err := st.UpsertSource(ctx, s); err != nil {
			return fmt.Errorf("seed social account %q: %w", acct, err)
		}
	}

	return nil
}

func validSocialPlatform(p string) bool {
	switch graph.SourceType(p) {
	case graph.SourceInstagram, graph.SourceFacebook, graph.SourceReddit, graph.SourceTikTok, graph.SourceTwitter:
		return true
	default:
		return false
	}
}
