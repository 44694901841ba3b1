package supervisor

import (
	"context"
	"log/slog"
	"strings"

	"github.com/civic-scout/scout/pkg/config"
)

// runAutoFix implements §4.12's non-destructive auto-fix phase. Every
// step is independent and a failure in one does not block the others —
// these are best-effort cleanups, not a transaction.
func (s *Supervisor) runAutoFix(ctx context.Context, city config.CityProfile, report *Report) {
	if n, err := s.Store.DeleteOrphanedEvidence(ctx, city.CityKey); err != nil {
		slog.Warn("supervisor: delete orphaned evidence failed", "city", city.CityKey, "error", err)
	} else {
		report.OrphanedEvidenceDeleted = n
	}

	if n, err := s.Store.DeleteEmptySignals(ctx, city.CityKey); err != nil {
		slog.Warn("supervisor: delete empty signals failed", "city", city.CityKey, "error", err)
	} else {
		report.EmptySignalsDeleted = n
	}

	merged, err := s.mergeDuplicateActors(ctx, city.CityKey)
	if err != nil {
		slog.Warn("supervisor: merge actors failed", "city", city.CityKey, "error", err)
	}
	report.ActorsMerged = merged

	if n, err := s.Store.NullFakeCityCenterCoords(ctx, city.CityKey, city.CenterLat, city.CenterLng, config.GeoEpsilonDegrees); err != nil {
		slog.Warn("supervisor: null fake city-center coords failed", "city", city.CityKey, "error", err)
	} else {
		report.FakeCoordsCleared = n
	}
}

// mergeDuplicateActors groups a city's actors by normalized canonical
// name and merges every duplicate into the first (lowest-ID, i.e.
// earliest-created) actor in each group.
func (s *Supervisor) mergeDuplicateActors(ctx context.Context, city string) (int, error) {
	actors, err := s.Store.ListActors(ctx, city)
	if err != nil {
		return 0, err
	}

	groups := make(map[string][]string)
	for _, a := range actors {
		key := normalizeActorName(a.CanonicalName)
		groups[key] = append(groups[key], a.ID)
	}

	merged := 0
	for _, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		keep := ids[0]
		for _, id := range ids[1:] {
			if id == keep {
				continue
			}
			if err := s.Store.MergeActors(ctx, keep, id); err != nil {
				return merged, err
			}
			merged++
		}
	}
	return merged, nil
}

// normalizeActorName collapses case and surrounding whitespace so
// "Acme Corp" and "ACME CORP " are recognized as the same actor.
func normalizeActorName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
