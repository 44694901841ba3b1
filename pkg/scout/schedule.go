package scout

import (
	"context"
	"time"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
)

// Bayesian smoothing prior for base_yield (§4.6.1).
const (
	priorMeanYield = 0.3
	priorStrength  = 5
)

// Cadence bands map a source's recomputed weight to its next scrape
// interval (§4.6.1).
func cadenceFor(weight float64) time.Duration {
	switch {
	case weight > 0.8:
		return 6 * time.Hour
	case weight >= 0.5:
		return 24 * time.Hour
	case weight >= 0.2:
		return 72 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// baseYield is the Bayesian-smoothed signals_produced/scrapes ratio.
func baseYield(s *graph.Source) float64 {
	return (float64(s.SignalsProduced) + priorMeanYield*priorStrength) / (float64(s.Scrapes) + priorStrength)
}

// tensionBonus rewards sources that disproportionately surface
// tensions, capped at 2.
func tensionBonus(tensionSignals, totalSignals int) float64 {
	if totalSignals == 0 {
		return 1
	}
	ratio := float64(tensionSignals) / float64(totalSignals)
	if ratio > 1 {
		ratio = 1
	}
	return min(1+ratio, 2)
}

// recencyFactor is piecewise linear from 1.0 at <7 days since last
// produced signal to 0.5 at >30 days.
func recencyFactor(lastProduced *time.Time, now time.Time) float64 {
	if lastProduced == nil {
		return 0.5
	}
	days := now.Sub(*lastProduced).Hours() / 24
	switch {
	case days <= 7:
		return 1.0
	case days >= 30:
		return 0.5
	default:
		return 1.0 - 0.5*(days-7)/(30-7)
	}
}

// diversityFactor rewards sources whose signals get corroborated from
// elsewhere, capped at 1.5.
func diversityFactor(s *graph.Source) float64 {
	if s.SignalsProduced == 0 {
		return 1
	}
	ratio := float64(s.SignalsCorroborated) / float64(s.SignalsProduced)
	return min(1+0.5*ratio, 1.5)
}

// qualityPenalty defaults to 1.0 until the supervisor has set one
// (§4.12); it is already clamped to [0.1, 1.0] by the supervisor.
func qualityPenaltyOf(s *graph.Source) float64 {
	if s.QualityPenalty == nil {
		return 1.0
	}
	return *s.QualityPenalty
}

// computeWeight implements §4.6.1's central feedback-loop formula.
func computeWeight(s *graph.Source, tensionSignals, totalSignals int, now time.Time) float64 {
	return baseYield(s) * tensionBonus(tensionSignals, totalSignals) *
		recencyFactor(s.LastProducedSignal, now) * diversityFactor(s) * qualityPenaltyOf(s)
}

// scheduleStore is the narrow store surface the scheduler needs.
type scheduleStore interface {
	ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error)
	ListDueSources(ctx context.Context, city string, now time.Time) ([]*graph.Source, error)
	SetSourceSchedule(ctx context.Context, sourceID string, weight float64, nextDueAt time.Time) error
	SetSourceActive(ctx context.Context, sourceID string, active bool) error
	RecordSourceRun(ctx context.Context, sourceID string, signalsProduced int, at time.Time) error
}

// selectDueSources returns the sources whose next_due_at has arrived
// (§4.6 step 3); NewSource/first-run sources (next_due_at nil) are
// always selected.
func selectDueSources(ctx context.Context, st scheduleStore, city string, now time.Time) ([]*graph.Source, error) {
	return st.ListDueSources(ctx, city, now)
}

// rescheduleSource recomputes a source's weight and cadence after a run
// and deactivates it once it crosses the dead-source threshold
// (§4.6.1). Curated sources (static/headless CityProfile entries) are
// immune to deactivation.
func rescheduleSource(ctx context.Context, st scheduleStore, s *graph.Source, curated map[string]bool, tensionSignals, totalSignals int, now time.Time) (SourceDelta, error) {
	weight := computeWeight(s, tensionSignals, totalSignals, now)
	nextDue := now.Add(cadenceFor(weight))

	if err := st.SetSourceSchedule(ctx, s.ID, weight, nextDue); err != nil {
		return SourceDelta{}, err
	}

	delta := SourceDelta{
		SourceID:        s.ID,
		SignalsProduced: s.SignalsProduced,
		NewWeight:       weight,
		NextDueAt:       nextDue,
	}

	if s.ConsecutiveEmptyRuns >= config.MaxConsecutiveEmptyRuns && !curated[s.CanonicalKey] {
		if err := st.SetSourceActive(ctx, s.ID, false); err != nil {
			return delta, err
		}
		delta.Deactivated = true
	}

	return delta, nil
}

// curatedKeySet builds the lookup rescheduleSource checks against.
// Curated sources are seeded with CanonicalKey == URL (see
// SeedSources), so keying this set by URL lines up.
func curatedKeySet(sources []config.CuratedSource) map[string]bool {
	out := make(map[string]bool, len(sources))
	for _, s := range sources {
		out[s.URL] = true
	}
	return out
}
