package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/civic-scout/scout/pkg/graph"
)

const signalColumns = `signal_id, city, variant, title, summary, confidence, sensitivity, lat, lng,
	geo_precision, source_url, last_confirmed_active, corroboration_count, source_diversity,
	external_ratio, cause_heat, investigated_at, quality_penalty, starts_at, ends_at, is_recurring,
	action_url, is_ongoing, urgency, what_needed, severity, category, effective_date,
	source_authority, what_would_help, created_at`

func scanSignal(row pgx.Row) (*graph.Signal, error) {
	var s graph.Signal
	err := row.Scan(&s.ID, &s.City, &s.Variant, &s.Title, &s.Summary, &s.Confidence, &s.Sensitivity,
		&s.Lat, &s.Lng, &s.GeoPrecision, &s.SourceURL, &s.LastConfirmedActive, &s.CorroborationCount,
		&s.SourceDiversity, &s.ExternalRatio, &s.CauseHeat, &s.InvestigatedAt, &s.QualityPenalty,
		&s.StartsAt, &s.EndsAt, &s.IsRecurring, &s.ActionURL, &s.IsOngoing, &s.Urgency, &s.WhatNeeded,
		&s.Severity, &s.Category, &s.EffectiveDate, &s.SourceAuthority, &s.WhatWouldHelp, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSignal implements store.Store. The insert and (when present) the
// evidence row land in one transaction so the signal never exists without
// its required SOURCED_FROM edge (§3 invariant 1); when an embedding is
// supplied it is written in the same statement, so the row is immediately
// reachable by the vector index.
func (p *Postgres) CreateSignal(ctx context.Context, s *graph.Signal, ev *graph.Evidence) (string, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: begin tx: %v", graph.ErrGraphUnavailable, err)
	}
	defer tx.Rollback(ctx)

	var embedding any
	if len(s.Embedding) > 0 {
		v := pgvector.NewVector(s.Embedding)
		embedding = &v
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO signals (signal_id, city, variant, title, summary, confidence, sensitivity,
			lat, lng, geo_precision, source_url, last_confirmed_active, corroboration_count,
			source_diversity, external_ratio, cause_heat, embedding, starts_at, ends_at, is_recurring,
			action_url, is_ongoing, urgency, what_needed, severity, category, effective_date,
			source_authority, what_would_help)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29)`,
		s.ID, s.City, s.Variant, s.Title, s.Summary, s.Confidence, s.Sensitivity, s.Lat, s.Lng,
		s.GeoPrecision, s.SourceURL, s.LastConfirmedActive, s.CorroborationCount, s.SourceDiversity,
		s.ExternalRatio, s.CauseHeat, embedding, s.StartsAt, s.EndsAt, s.IsRecurring, s.ActionURL,
		s.IsOngoing, s.Urgency, s.WhatNeeded, s.Severity, s.Category, s.EffectiveDate,
		s.SourceAuthority, s.WhatWouldHelp)
	if err != nil {
		return "", fmt.Errorf("insert signal: %w", err)
	}

	if ev != nil {
		ev.SignalID = s.ID
		if err := insertEvidence(ctx, tx, ev); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit create signal: %w", err)
	}
	return s.ID, nil
}

// GetSignal implements store.Store.
func (p *Postgres) GetSignal(ctx context.Context, id string) (*graph.Signal, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+signalColumns+` FROM signals WHERE signal_id = $1`, id)
	s, err := scanSignal(row)
	if isNoRows(err) {
		return nil, graph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get signal: %w", err)
	}
	return s, nil
}

func insertEvidence(ctx context.Context, tx pgx.Tx, ev *graph.Evidence) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO evidence (evidence_id, signal_id, source_id, url, content_hash, raw_excerpt,
			fetched_at, published_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ev.ID, ev.SignalID, nullableString(ev.SourceID), ev.URL, ev.ContentHash, ev.RawExcerpt,
		ev.FetchedAt, ev.PublishedAt)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// AddEvidence implements store.Store (§4.1 add_evidence).
func (p *Postgres) AddEvidence(ctx context.Context, signalID string, ev *graph.Evidence) error {
	ev.SignalID = signalID
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", graph.ErrGraphUnavailable, err)
	}
	defer tx.Rollback(ctx)
	if err := insertEvidence(ctx, tx, ev); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListEvidenceForSignal implements store.Store (§4.12: the supervisor's
// LLM validation call needs a real excerpt to judge, not just the
// signal's own summary).
func (p *Postgres) ListEvidenceForSignal(ctx context.Context, signalID string) ([]*graph.Evidence, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT evidence_id, signal_id, COALESCE(source_id, ''), url, content_hash, raw_excerpt, fetched_at, published_at
		FROM evidence WHERE signal_id = $1 ORDER BY fetched_at DESC`, signalID)
	if err != nil {
		return nil, fmt.Errorf("list evidence for signal: %w", err)
	}
	defer rows.Close()

	var out []*graph.Evidence
	for rows.Next() {
		var e graph.Evidence
		if err := rows.Scan(&e.ID, &e.SignalID, &e.SourceID, &e.URL, &e.ContentHash, &e.RawExcerpt, &e.FetchedAt, &e.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// FindSignalsByEvidence implements store.Store (§4.3 content dedup
// contract): returns the distinct signals backed by an Evidence row
// matching (url, content_hash), so the caller can skip re-extraction
// and just refresh those signals' last_confirmed_active.
func (p *Postgres) FindSignalsByEvidence(ctx context.Context, url string, contentHash uint64) ([]string, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT DISTINCT signal_id FROM evidence WHERE url = $1 AND content_hash = $2`, url, contentHash)
	if err != nil {
		return nil, fmt.Errorf("find signals by evidence: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// RefreshSignal implements store.Store (§4.5 layer 2/3 "refresh only":
// the same source restating an already-known signal bumps freshness
// without counting as independent corroboration).
func (p *Postgres) RefreshSignal(ctx context.Context, signalID string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE signals SET last_confirmed_active = $2 WHERE signal_id = $1`, signalID, at)
	if err != nil {
		return fmt.Errorf("refresh signal: %w", err)
	}
	return nil
}

// Corroborate implements store.Store. It increments corroboration_count,
// recomputes source_diversity as the number of distinct entity domains
// (derived from evidence.url) across all linked evidence, and refreshes
// last_confirmed_active (§4.1).
func (p *Postgres) Corroborate(ctx context.Context, signalID string, newEvidenceEntityDomain string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE signals SET
			corroboration_count = corroboration_count + 1,
			last_confirmed_active = now(),
			source_diversity = (
				SELECT COUNT(DISTINCT split_part(split_part(e.url, '//', 2), '/', 1))
				FROM evidence e WHERE e.signal_id = $1
			)
		WHERE signal_id = $1`, signalID)
	if err != nil {
		return fmt.Errorf("corroborate signal: %w", err)
	}
	return nil
}

// UpdateSignalEmbedding implements store.Store.
func (p *Postgres) UpdateSignalEmbedding(ctx context.Context, signalID string, embedding []float32) error {
	v := pgvector.NewVector(embedding)
	_, err := p.pool.Exec(ctx, `UPDATE signals SET embedding = $2 WHERE signal_id = $1`, signalID, &v)
	if err != nil {
		return fmt.Errorf("update signal embedding: %w", err)
	}
	return nil
}

// MarkInvestigated implements store.Store.
func (p *Postgres) MarkInvestigated(ctx context.Context, signalID string, at time.Time) error {
	_, err := p.pool.Exec(ctx, `UPDATE signals SET investigated_at = $2 WHERE signal_id = $1`, signalID, at)
	if err != nil {
		return fmt.Errorf("mark investigated: %w", err)
	}
	return nil
}

// SetQualityPenalty implements store.Store. Penalty is clamped to
// [0.1, 1.0] per §3 invariant 7.
func (p *Postgres) SetQualityPenalty(ctx context.Context, signalID string, penalty float64) error {
	if penalty < 0.1 {
		penalty = 0.1
	}
	if penalty > 1.0 {
		penalty = 1.0
	}
	_, err := p.pool.Exec(ctx, `UPDATE signals SET quality_penalty = $2 WHERE signal_id = $1`, signalID, penalty)
	if err != nil {
		return fmt.Errorf("set quality penalty: %w", err)
	}
	return nil
}

// FindDuplicateByVector implements store.Store (§4.5 layer 3). It returns
// the closest neighbor whose cosine similarity is at least threshold.
// Only ID and Cosine are set; SameSource is left false, and the dedup
// layer compares sources itself.
func (p *Postgres) FindDuplicateByVector(ctx context.Context, variant graph.Variant, embedding []float32, k int, threshold float64) (*graph.DuplicateMatch, error) {
	v := pgvector.NewVector(embedding)
	rows, err := p.pool.Query(ctx, `
		SELECT signal_id, 1 - (embedding <=> $2) AS cosine
		FROM signals
		WHERE variant = $1 AND embedding IS NOT NULL
		ORDER BY embedding <=> $2
		LIMIT $3`, variant, &v, k)
	if err != nil {
		return nil, fmt.Errorf("find duplicate by vector: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var cosine float64
		if err := rows.Scan(&id, &cosine); err != nil {
			return nil, err
		}
		if cosine >= threshold {
			return &graph.DuplicateMatch{ID: id, Cosine: cosine}, nil
		}
	}
	return nil, rows.Err()
}

// FindDuplicateByTitle implements store.Store (§4.5 layer 2). It checks
// two independent matches, refresh taking priority over corroborate:
// same variant + same source_url + normalized-title prefix match
// (refresh), or failing that, an exact global normalized-title match
// regardless of source_url (corroborate). Neither branch is an OR of
// the other's condition — a shared source_url alone, or a shared title
// alone without the matching scope, is not a match.
func (p *Postgres) FindDuplicateByTitle(ctx context.Context, variant graph.Variant, normalizedTitle, url string) (string, error) {
	var id string
	if url != "" {
		err := p.pool.QueryRow(ctx, `
			SELECT signal_id FROM signals
			WHERE variant = $1 AND source_url = $2 AND left(lower(title), length($3)) = $3
			LIMIT 1`, variant, url, normalizedTitle).Scan(&id)
		if err != nil && !isNoRows(err) {
			return "", fmt.Errorf("find duplicate by title (refresh): %w", err)
		}
	}
	if id != "" {
		return id, nil
	}

	err := p.pool.QueryRow(ctx, `
		SELECT signal_id FROM signals
		WHERE variant = $1 AND lower(title) = lower($2)
		LIMIT 1`, variant, normalizedTitle).Scan(&id)
	if isNoRows(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("find duplicate by title (corroborate): %w", err)
	}
	return id, nil
}

// ListSignalsByVariant implements store.Store.
func (p *Postgres) ListSignalsByVariant(ctx context.Context, city string, variant graph.Variant) ([]*graph.Signal, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+signalColumns+` FROM signals WHERE city = $1 AND variant = $2`, city, variant)
	if err != nil {
		return nil, fmt.Errorf("list signals by variant: %w", err)
	}
	defer rows.Close()
	return collectSignals(rows)
}

// ListEmbeddedSignals implements store.Store (§4.11: "fetch all
// embeddings in one batch"). Only the fields the similarity builder
// needs are populated (ID, Variant, Confidence, Embedding) — callers
// must not assume the rest of the Signal is filled in.
func (p *Postgres) ListEmbeddedSignals(ctx context.Context, city string) ([]*graph.Signal, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT signal_id, variant, confidence, embedding FROM signals
		WHERE city = $1 AND embedding IS NOT NULL`, city)
	if err != nil {
		return nil, fmt.Errorf("list embedded signals: %w", err)
	}
	defer rows.Close()

	var out []*graph.Signal
	for rows.Next() {
		var s graph.Signal
		var v pgvector.Vector
		if err := rows.Scan(&s.ID, &s.Variant, &s.Confidence, &v); err != nil {
			return nil, err
		}
		s.Embedding = v.Slice()
		out = append(out, &s)
	}
	return out, rows.Err()
}

// ListUncorroborated implements store.Store — targets for the
// investigator (§4.8): signals never investigated, or investigated
// longer ago than cooldown, ordered by the priority formula
// (1 - corroboration_count/10, sensitivity_rank) DESC so thinly
// corroborated, higher-sensitivity signals surface first.
func (p *Postgres) ListUncorroborated(ctx context.Context, city string, variant graph.Variant, cooldown time.Duration, limit int) ([]*graph.Signal, error) {
	cutoff := time.Now().Add(-cooldown)
	rows, err := p.pool.Query(ctx, `
		SELECT `+signalColumns+` FROM signals
		WHERE city = $1 AND variant = $2
			AND (investigated_at IS NULL OR investigated_at < $3)
		ORDER BY
			(1 - LEAST(corroboration_count, 10) / 10.0) DESC,
			CASE sensitivity WHEN 'sensitive' THEN 2 WHEN 'elevated' THEN 1 ELSE 0 END DESC
		LIMIT $4`, city, variant, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list uncorroborated: %w", err)
	}
	defer rows.Close()
	return collectSignals(rows)
}

// ListUnrespondedTensions implements store.Store — the target set for
// the response/gathering finder (§4.9): Tension signals with zero
// RESPONDS_TO in-edges, ordered by severity so the most serious unmet
// tensions get searched first.
func (p *Postgres) ListUnrespondedTensions(ctx context.Context, city string) ([]*graph.Signal, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+prefixedSignalColumns("s")+` FROM signals s
		WHERE s.city = $1 AND s.variant = 'tension'
			AND NOT EXISTS (SELECT 1 FROM responds_to_edges r WHERE r.tension_id = s.signal_id)
		ORDER BY `+severityRankExpr("s")+` DESC`, city)
	if err != nil {
		return nil, fmt.Errorf("list unresponded tensions: %w", err)
	}
	defer rows.Close()
	return collectSignals(rows)
}

// ListTensionBriefs implements store.Store — every Tension signal
// annotated with its current respondent count, for the discoverer's
// briefing (§4.7: "unmet tensions ordered by (unmet, severity DESC)").
func (p *Postgres) ListTensionBriefs(ctx context.Context, city string) ([]graph.TensionBrief, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+prefixedSignalColumns("s")+`,
			(SELECT COUNT(*) FROM responds_to_edges r WHERE r.tension_id = s.signal_id) AS response_count
		FROM signals s
		WHERE s.city = $1 AND s.variant = 'tension'
		ORDER BY (
			(SELECT COUNT(*) FROM responds_to_edges r WHERE r.tension_id = s.signal_id) = 0
		) DESC, `+severityRankExpr("s")+` DESC`, city)
	if err != nil {
		return nil, fmt.Errorf("list tension briefs: %w", err)
	}
	defer rows.Close()

	var out []graph.TensionBrief
	for rows.Next() {
		s, count, err := scanSignalWithCount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, graph.TensionBrief{Signal: s, ResponseCount: count})
	}
	return out, rows.Err()
}

// ListSignalsSince implements store.Store (§4.12 triage: candidate pool
// scoped to what's changed since the supervisor's last watermark).
func (p *Postgres) ListSignalsSince(ctx context.Context, city string, since time.Time) ([]*graph.Signal, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+signalColumns+` FROM signals WHERE city = $1 AND created_at >= $2`, city, since)
	if err != nil {
		return nil, fmt.Errorf("list signals since: %w", err)
	}
	defer rows.Close()
	return collectSignals(rows)
}

// severityRankExpr maps the free-text severity field to a numeric rank
// for ordering; unrecognized or absent severities sort last.
func severityRankExpr(alias string) string {
	return `CASE ` + alias + `.severity
		WHEN 'critical' THEN 3 WHEN 'high' THEN 2 WHEN 'medium' THEN 1 WHEN 'low' THEN 0 ELSE -1 END`
}

func prefixedSignalColumns(alias string) string {
	cols := strings.Split(signalColumns, ", ")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func scanSignalWithCount(rows pgx.Rows) (*graph.Signal, int, error) {
	var s graph.Signal
	var count int
	err := rows.Scan(&s.ID, &s.City, &s.Variant, &s.Title, &s.Summary, &s.Confidence, &s.Sensitivity,
		&s.Lat, &s.Lng, &s.GeoPrecision, &s.SourceURL, &s.LastConfirmedActive, &s.CorroborationCount,
		&s.SourceDiversity, &s.ExternalRatio, &s.CauseHeat, &s.InvestigatedAt, &s.QualityPenalty,
		&s.StartsAt, &s.EndsAt, &s.IsRecurring, &s.ActionURL, &s.IsOngoing, &s.Urgency, &s.WhatNeeded,
		&s.Severity, &s.Category, &s.EffectiveDate, &s.SourceAuthority, &s.WhatWouldHelp, &s.CreatedAt,
		&count)
	if err != nil {
		return nil, 0, err
	}
	return &s, count, nil
}

func collectSignals(rows pgx.Rows) ([]*graph.Signal, error) {
	var out []*graph.Signal
	for rows.Next() {
		s, err := scanSignal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
