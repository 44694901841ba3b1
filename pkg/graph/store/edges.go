package store

import (
	"context"
	"fmt"

	"github.com/civic-scout/scout/pkg/graph"
)

// LinkActor implements store.Store (ACTED_IN edge).
func (p *Postgres) LinkActor(ctx context.Context, signalID, actorID string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO signal_actors (signal_id, actor_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, signalID, actorID)
	if err != nil {
		return fmt.Errorf("link actor: %w", err)
	}
	return nil
}

// LinkRespondsTo implements store.Store (RESPONDS_TO edge, §4.9).
func (p *Postgres) LinkRespondsTo(ctx context.Context, responderID, tensionID string, matchStrength float64, explanation string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO responds_to_edges (responder_id, tension_id, match_strength, explanation)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (responder_id, tension_id) DO UPDATE SET
			match_strength = EXCLUDED.match_strength, explanation = EXCLUDED.explanation`,
		responderID, tensionID, matchStrength, explanation)
	if err != nil {
		return fmt.Errorf("link responds_to: %w", err)
	}
	return nil
}

// ListResponders implements store.Store: every signal with a RESPONDS_TO
// edge into tensionID (§4.10.A materialize/§4.10.B reconcile read the
// tension's responder set when building or growing a Story).
func (p *Postgres) ListResponders(ctx context.Context, tensionID string) ([]*graph.Signal, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+prefixedSignalColumns("s")+` FROM signals s
		JOIN responds_to_edges r ON r.responder_id = s.signal_id
		WHERE r.tension_id = $1`, tensionID)
	if err != nil {
		return nil, fmt.Errorf("list responders: %w", err)
	}
	defer rows.Close()
	return collectSignals(rows)
}

// LinkContains implements store.Store (CONTAINS edge, §4.10).
func (p *Postgres) LinkContains(ctx context.Context, storyID, signalID string) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO story_signals (story_id, signal_id) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, storyID, signalID)
	if err != nil {
		return fmt.Errorf("link contains: %w", err)
	}
	return nil
}

// UpsertSimilarityEdge implements store.Store (SIMILAR_TO edge). Endpoints
// are stored once with deterministic ordering (§3 invariant 5).
func (p *Postgres) UpsertSimilarityEdge(ctx context.Context, aID, bID string, weight float64) error {
	a, b := aID, bID
	if a > b {
		a, b = b, a
	}
	_, err := p.pool.Exec(ctx, `
		INSERT INTO similarity_edges (signal_a, signal_b, weight) VALUES ($1, $2, $3)
		ON CONFLICT (signal_a, signal_b) DO UPDATE SET weight = EXCLUDED.weight`, a, b, weight)
	if err != nil {
		return fmt.Errorf("upsert similarity edge: %w", err)
	}
	return nil
}

// ListSimilarityEdgesInRange implements store.Store (§4.12 triage:
// near-duplicate candidates are SIMILAR_TO edges in a weight band too
// high to be coincidence but too low for the dedup stack to have
// already merged them).
func (p *Postgres) ListSimilarityEdgesInRange(ctx context.Context, city string, minWeight, maxWeight float64) ([]graph.SimilarityEdge, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT e.signal_a, e.signal_b, e.weight
		FROM similarity_edges e
		JOIN signals a ON a.signal_id = e.signal_a
		JOIN signals b ON b.signal_id = e.signal_b
		WHERE a.city = $1 AND b.city = $1 AND e.weight >= $2 AND e.weight < $3`,
		city, minWeight, maxWeight)
	if err != nil {
		return nil, fmt.Errorf("list similarity edges in range: %w", err)
	}
	defer rows.Close()

	var out []graph.SimilarityEdge
	for rows.Next() {
		var e graph.SimilarityEdge
		if err := rows.Scan(&e.SignalAID, &e.SignalBID, &e.Weight); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListActors implements store.Store (§4.12 auto-fix: the full per-city
// actor roster, scanned for near-duplicate canonical names to merge).
func (p *Postgres) ListActors(ctx context.Context, city string) ([]*graph.Actor, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT actor_id, city, canonical_name, aliases, domains, social_urls FROM actors WHERE city = $1`, city)
	if err != nil {
		return nil, fmt.Errorf("list actors: %w", err)
	}
	defer rows.Close()

	var out []*graph.Actor
	for rows.Next() {
		var a graph.Actor
		if err := rows.Scan(&a.ID, &a.City, &a.CanonicalName, &a.Aliases, &a.Domains, &a.SocialURLs); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// FindOrCreateActor implements store.Store. An existing actor gains any
// newly-mentioned domains/social URLs rather than staying frozen at
// whatever it was first created with — §4.7's actor-derived discovery
// depends on these lists staying current.
func (p *Postgres) FindOrCreateActor(ctx context.Context, city, canonicalName string, domains, socialURLs []string) (*graph.Actor, error) {
	var a graph.Actor
	err := p.pool.QueryRow(ctx, `
		SELECT actor_id, city, canonical_name, aliases, domains, social_urls FROM actors
		WHERE city = $1 AND canonical_name = $2`, city, canonicalName).
		Scan(&a.ID, &a.City, &a.CanonicalName, &a.Aliases, &a.Domains, &a.SocialURLs)
	if err == nil {
		if len(domains) == 0 && len(socialURLs) == 0 {
			return &a, nil
		}
		row := p.pool.QueryRow(ctx, `
			UPDATE actors SET
				domains = (SELECT ARRAY(SELECT DISTINCT unnest(domains || $2::text[]))),
				social_urls = (SELECT ARRAY(SELECT DISTINCT unnest(social_urls || $3::text[])))
			WHERE actor_id = $1
			RETURNING actor_id, city, canonical_name, aliases, domains, social_urls`,
			a.ID, domains, socialURLs)
		if err := row.Scan(&a.ID, &a.City, &a.CanonicalName, &a.Aliases, &a.Domains, &a.SocialURLs); err != nil {
			return nil, fmt.Errorf("update actor links: %w", err)
		}
		return &a, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("find actor: %w", err)
	}

	id := newID("actor")
	_, err = p.pool.Exec(ctx, `
		INSERT INTO actors (actor_id, city, canonical_name, domains, social_urls) VALUES ($1, $2, $3, $4, $5)`,
		id, city, canonicalName, domains, socialURLs)
	if err != nil {
		return nil, fmt.Errorf("create actor: %w", err)
	}
	return &graph.Actor{ID: id, City: city, CanonicalName: canonicalName, Domains: domains, SocialURLs: socialURLs}, nil
}

// ListUntrackedActors implements store.Store (§4.7 actor-derived
// discovery): Actors with at least one domain or social URL not yet
// behind a Source's entity_id.
func (p *Postgres) ListUntrackedActors(ctx context.Context, city string) ([]*graph.Actor, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT actor_id, city, canonical_name, aliases, domains, social_urls FROM actors
		WHERE city = $1 AND NOT EXISTS (
			SELECT 1 FROM sources s WHERE s.entity_id = actors.actor_id
		)`, city)
	if err != nil {
		return nil, fmt.Errorf("list untracked actors: %w", err)
	}
	defer rows.Close()

	var out []*graph.Actor
	for rows.Next() {
		var a graph.Actor
		if err := rows.Scan(&a.ID, &a.City, &a.CanonicalName, &a.Aliases, &a.Domains, &a.SocialURLs); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

// MergeActors implements store.Store (§3 Lifecycle, merge_actors). Every
// signal and domain linked to dropID is repointed to keepID, and dropID is
// removed — this is the repo's only cross-source entity resolution, and it
// is domain-and-handle matching only (§1 Non-goals), never fuzzy.
func (p *Postgres) MergeActors(ctx context.Context, keepID, dropID string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", graph.ErrGraphUnavailable, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO signal_actors (signal_id, actor_id)
		SELECT signal_id, $1 FROM signal_actors WHERE actor_id = $2
		ON CONFLICT DO NOTHING`, keepID, dropID)
	if err != nil {
		return fmt.Errorf("repoint signal_actors: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE actors SET
			domains = (
				SELECT ARRAY(SELECT DISTINCT unnest(a1.domains || a2.domains))
				FROM actors a1, actors a2 WHERE a1.actor_id = $1 AND a2.actor_id = $2
			),
			social_urls = (
				SELECT ARRAY(SELECT DISTINCT unnest(a1.social_urls || a2.social_urls))
				FROM actors a1, actors a2 WHERE a1.actor_id = $1 AND a2.actor_id = $2
			)
		WHERE actor_id = $1`, keepID, dropID)
	if err != nil {
		return fmt.Errorf("merge domains and social URLs: %w", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM signal_actors WHERE actor_id = $1`, dropID); err != nil {
		return fmt.Errorf("delete dropped actor edges: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM actors WHERE actor_id = $1`, dropID); err != nil {
		return fmt.Errorf("delete dropped actor: %w", err)
	}
	return tx.Commit(ctx)
}
