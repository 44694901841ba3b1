package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civic-scout/scout/pkg/graph"
)

func scanSource(row pgx.Row) (*graph.Source, error) {
	var s graph.Source
	err := row.Scan(&s.ID, &s.City, &s.CanonicalKey, &s.SourceType, &s.URL, &s.Weight, &s.Active,
		&s.Scrapes, &s.SignalsProduced, &s.SignalsCorroborated, &s.LastFetchedAt, &s.NextDueAt, &s.LastProducedSignal,
		&s.ConsecutiveEmptyRuns, &s.ConsecutiveFailures, &s.QualityPenalty, &s.DiscoveryMethod,
		&s.GapContext, &s.EntityID, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

const sourceColumns = `source_id, city, canonical_key, source_type, url, weight, active,
	scrapes, signals_produced, signals_corroborated, last_fetched_at, next_due_at, last_produced_signal,
	consecutive_empty_runs, consecutive_failures, quality_penalty, discovery_method, gap_context,
	entity_id, created_at`

// FindSourceByCanonicalKey implements store.Store.
func (p *Postgres) FindSourceByCanonicalKey(ctx context.Context, city, key string) (*graph.Source, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+sourceColumns+` FROM sources WHERE city = $1 AND canonical_key = $2`, city, key)
	s, err := scanSource(row)
	if isNoRows(err) {
		return nil, graph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find source by canonical key: %w", err)
	}
	return s, nil
}

// UpsertSource implements store.Store.
func (p *Postgres) UpsertSource(ctx context.Context, s *graph.Source) (*graph.Source, error) {
	row := p.pool.QueryRow(ctx, `
		INSERT INTO sources (source_id, city, canonical_key, source_type, url, weight, active,
			discovery_method, gap_context, entity_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (city, canonical_key) DO UPDATE SET
			url = EXCLUDED.url
		RETURNING `+sourceColumns,
		s.ID, s.City, s.CanonicalKey, s.SourceType, s.URL, s.Weight, s.Active,
		s.DiscoveryMethod, s.GapContext, s.EntityID)
	out, err := scanSource(row)
	if err != nil {
		return nil, fmt.Errorf("upsert source: %w", err)
	}
	return out, nil
}

// SetSourceActive implements store.Store.
func (p *Postgres) SetSourceActive(ctx context.Context, sourceID string, active bool) error {
	_, err := p.pool.Exec(ctx, `UPDATE sources SET active = $2 WHERE source_id = $1`, sourceID, active)
	if err != nil {
		return fmt.Errorf("set source active: %w", err)
	}
	return nil
}

// SetSourceWeight implements store.Store. Weight is clamped to [0.1, 1.0]
// per §3 invariant 7.
func (p *Postgres) SetSourceWeight(ctx context.Context, sourceID string, weight float64) error {
	if weight < 0.1 {
		weight = 0.1
	}
	if weight > 1.0 {
		weight = 1.0
	}
	_, err := p.pool.Exec(ctx, `UPDATE sources SET weight = $2 WHERE source_id = $1`, sourceID, weight)
	if err != nil {
		return fmt.Errorf("set source weight: %w", err)
	}
	return nil
}

// SetSourceQualityPenalty implements store.Store (§4.12 source penalty:
// quality_penalty = 0.7^open_count, clamped to [0.1, 1.0]; reset to 1.0
// once every open issue for the source resolves).
func (p *Postgres) SetSourceQualityPenalty(ctx context.Context, sourceID string, penalty float64) error {
	if penalty < 0.1 {
		penalty = 0.1
	}
	if penalty > 1.0 {
		penalty = 1.0
	}
	_, err := p.pool.Exec(ctx, `UPDATE sources SET quality_penalty = $2 WHERE source_id = $1`, sourceID, penalty)
	if err != nil {
		return fmt.Errorf("set source quality penalty: %w", err)
	}
	return nil
}

// SetSourceSchedule implements store.Store. Weight is clamped to
// [0.1, 1.0] per §3 invariant 7; next_due_at is the cadence-band
// output of §4.6.1's weight formula.
func (p *Postgres) SetSourceSchedule(ctx context.Context, sourceID string, weight float64, nextDueAt time.Time) error {
	if weight < 0.1 {
		weight = 0.1
	}
	if weight > 1.0 {
		weight = 1.0
	}
	_, err := p.pool.Exec(ctx, `UPDATE sources SET weight = $2, next_due_at = $3 WHERE source_id = $1`,
		sourceID, weight, nextDueAt)
	if err != nil {
		return fmt.Errorf("set source schedule: %w", err)
	}
	return nil
}

// RecordSourceRun implements store.Store. Every run increments scrapes
// (the denominator of §4.6.1's base_yield); a run that produced signals
// also resets the empty-run streak and bumps signals_produced /
// last_produced_signal, while an empty run increments the streak
// (§4.6.1 dead-source deactivation after 10 consecutive empty runs).
// Either way last_fetched_at advances.
func (p *Postgres) RecordSourceRun(ctx context.Context, sourceID string, signalsProduced int, at time.Time) error {
	var err error
	if signalsProduced > 0 {
		_, err = p.pool.Exec(ctx, `UPDATE sources SET
				scrapes = scrapes + 1,
				last_fetched_at = $2,
				last_produced_signal = $2,
				signals_produced = signals_produced + $3,
				consecutive_empty_runs = 0
			WHERE source_id = $1`, sourceID, at, signalsProduced)
	} else {
		_, err = p.pool.Exec(ctx, `UPDATE sources SET
				scrapes = scrapes + 1,
				last_fetched_at = $2,
				consecutive_empty_runs = consecutive_empty_runs + 1
			WHERE source_id = $1`, sourceID, at)
	}
	if err != nil {
		return fmt.Errorf("record source run: %w", err)
	}
	return nil
}

// ListActiveSources implements store.Store.
func (p *Postgres) ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources WHERE city = $1 AND active = TRUE`, city)
	if err != nil {
		return nil, fmt.Errorf("list active sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

// ListDueSources implements store.Store.
func (p *Postgres) ListDueSources(ctx context.Context, city string, now time.Time) ([]*graph.Source, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources
		WHERE city = $1 AND active = TRUE AND (next_due_at IS NULL OR next_due_at <= $2)
		ORDER BY next_due_at NULLS FIRST`, city, now)
	if err != nil {
		return nil, fmt.Errorf("list due sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

// ListDiscoverySources implements store.Store — every source §4.7's
// discoverer briefing draws from (active or not), excluding curated/seed
// sources that weren't themselves discovery-created.
func (p *Postgres) ListDiscoverySources(ctx context.Context, city string) ([]*graph.Source, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+sourceColumns+` FROM sources
		WHERE city = $1 AND discovery_method != ''`, city)
	if err != nil {
		return nil, fmt.Errorf("list discovery sources: %w", err)
	}
	defer rows.Close()
	return collectSources(rows)
}

func collectSources(rows pgx.Rows) ([]*graph.Source, error) {
	var out []*graph.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
