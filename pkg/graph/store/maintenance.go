package store

import (
	"context"
	"fmt"
	"time"
)

// reapWindowSQL maps a Signal variant to its type-specific freshness
// window (§3 Lifecycle). The need, notice and aid/tension intervals
// match the *FreshnessWindow constants in pkg/config/defaults.go.
const reapWindowSQL = `
	CASE variant
		WHEN 'gathering' THEN interval '1 day'
		WHEN 'aid' THEN interval '150 days'
		WHEN 'need' THEN interval '30 days'
		WHEN 'notice' THEN interval '30 days'
		WHEN 'tension' THEN interval '150 days'
		ELSE interval '30 days'
	END`

// ReapExpired implements store.Store (§3 Lifecycle). Deletes signals whose
// last_confirmed_active has exceeded their variant's freshness window;
// cascades to evidence, story_signals, and edges via FK ON DELETE CASCADE.
func (p *Postgres) ReapExpired(ctx context.Context, city string, now time.Time) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM signals
		WHERE city = $1 AND last_confirmed_active < ($2::timestamptz - `+reapWindowSQL+`)`,
		city, now)
	if err != nil {
		return 0, fmt.Errorf("reap expired: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteOrphanedEvidence implements store.Store (§3 Lifecycle: supervisor
// auto-fix sweep). Orphans occur when a signal is deleted outside of the
// evidence FK cascade path (e.g. a supervisor-initiated direct delete).
func (p *Postgres) DeleteOrphanedEvidence(ctx context.Context, city string) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM evidence e
		USING sources s
		WHERE e.source_id = s.source_id AND s.city = $1
			AND NOT EXISTS (SELECT 1 FROM signals sig WHERE sig.signal_id = e.signal_id)`, city)
	if err != nil {
		return 0, fmt.Errorf("delete orphaned evidence: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// DeleteEmptySignals implements store.Store (§4.12 auto-fix: a signal
// with no title is never useful and is cheaper to delete than triage).
func (p *Postgres) DeleteEmptySignals(ctx context.Context, city string) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM signals WHERE city = $1 AND trim(title) = ''`, city)
	if err != nil {
		return 0, fmt.Errorf("delete empty signals: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// NullFakeCityCenterCoords implements store.Store (§4.1, §3 invariant-
// adjacent cleanup). Extractors sometimes default to the city centroid
// when no address was found; this nulls out any coordinate within
// epsilonDegrees of the profile's declared center so it isn't mistaken
// for a real pin.
func (p *Postgres) NullFakeCityCenterCoords(ctx context.Context, city string, centerLat, centerLng, epsilonDegrees float64) (int, error) {
	tag, err := p.pool.Exec(ctx, `
		UPDATE signals SET lat = NULL, lng = NULL, geo_precision = 'city'
		WHERE city = $1 AND lat IS NOT NULL AND lng IS NOT NULL
			AND abs(lat - $2) < $4 AND abs(lng - $3) < $4`,
		city, centerLat, centerLng, epsilonDegrees)
	if err != nil {
		return 0, fmt.Errorf("null fake city center coords: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
