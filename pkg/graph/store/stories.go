package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civic-scout/scout/pkg/graph"
)

const storyColumns = `story_id, city, tension_signal_id, headline, lede, narrative, category, arc,
	action_guidance, status, signal_count, ask_count, give_count, event_count, entity_count,
	source_count, type_diversity, gap_score, gap_velocity, centroid_lat, centroid_lng, sensitivity,
	velocity, energy, heat, response_count, echo_score, first_seen, last_updated, last_rewoven_at, created_at`

func scanStory(row pgx.Row) (*graph.Story, error) {
	var s graph.Story
	err := row.Scan(&s.ID, &s.City, &s.TensionSignalID, &s.Headline, &s.Lede, &s.Narrative, &s.Category,
		&s.Arc, &s.ActionGuidance, &s.Status, &s.SignalCount, &s.AskCount, &s.GiveCount, &s.EventCount,
		&s.EntityCount, &s.SourceCount, &s.TypeDiversity, &s.GapScore, &s.GapVelocity, &s.CentroidLat,
		&s.CentroidLng, &s.Sensitivity, &s.Velocity, &s.Energy, &s.Heat, &s.ResponseCount, &s.EchoScore,
		&s.FirstSeen, &s.LastUpdated, &s.LastRewovenAt, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SetStoryEchoScore implements store.Store (§4.12 echo detection).
func (p *Postgres) SetStoryEchoScore(ctx context.Context, storyID string, score float64) error {
	_, err := p.pool.Exec(ctx, `UPDATE stories SET echo_score = $2 WHERE story_id = $1`, storyID, score)
	if err != nil {
		return fmt.Errorf("set story echo score: %w", err)
	}
	return nil
}

// CreateStory implements store.Store (§4.10 materialize). New stories
// start with status "emerging" and no synthesis (lede/narrative nil)
// until the weaver's Synthesize phase runs.
func (p *Postgres) CreateStory(ctx context.Context, st *graph.Story) (string, error) {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO stories (story_id, city, tension_signal_id, headline, status, heat, response_count,
			last_rewoven_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		st.ID, st.City, st.TensionSignalID, st.Headline, graph.StoryStatusEmerging, st.Heat,
		st.ResponseCount, st.LastRewovenAt)
	if err != nil {
		return "", fmt.Errorf("create story: %w", err)
	}
	return st.ID, nil
}

// GetStory implements store.Store.
func (p *Postgres) GetStory(ctx context.Context, id string) (*graph.Story, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+storyColumns+` FROM stories WHERE story_id = $1`, id)
	s, err := scanStory(row)
	if isNoRows(err) {
		return nil, graph.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get story: %w", err)
	}
	return s, nil
}

// ListStoriesForTension implements store.Store.
func (p *Postgres) ListStoriesForTension(ctx context.Context, tensionID string) ([]*graph.Story, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+storyColumns+` FROM stories WHERE tension_signal_id = $1`, tensionID)
	if err != nil {
		return nil, fmt.Errorf("list stories for tension: %w", err)
	}
	defer rows.Close()
	return collectStories(rows)
}

// ListActiveStories implements store.Store. "Active" means not yet
// archived (§4.10.E sets arc = "archived"; everything else is live).
func (p *Postgres) ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT `+storyColumns+` FROM stories WHERE city = $1 AND (arc IS DISTINCT FROM 'archived')`, city)
	if err != nil {
		return nil, fmt.Errorf("list active stories: %w", err)
	}
	defer rows.Close()
	return collectStories(rows)
}

// UpdateStoryMetrics implements store.Store (§4.10.C recompute pass).
func (p *Postgres) UpdateStoryMetrics(ctx context.Context, storyID string, m graph.StoryMetrics) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE stories SET status = $2, signal_count = $3, ask_count = $4, give_count = $5,
			event_count = $6, entity_count = $7, source_count = $8, type_diversity = $9,
			gap_score = $10, gap_velocity = $11, centroid_lat = $12, centroid_lng = $13,
			sensitivity = $14, velocity = $15, energy = $16, heat = $17, response_count = $18,
			last_updated = $19, last_rewoven_at = $19
		WHERE story_id = $1`,
		storyID, m.Status, m.SignalCount, m.AskCount, m.GiveCount, m.EventCount, m.EntityCount,
		m.SourceCount, m.TypeDiversity, m.GapScore, m.GapVelocity, m.CentroidLat, m.CentroidLng,
		m.Sensitivity, m.Velocity, m.Energy, m.Heat, m.ResponseCount, m.RewovenAt)
	if err != nil {
		return fmt.Errorf("update story metrics: %w", err)
	}
	return nil
}

// UpdateStorySynthesis implements store.Store (§4.10.D). Called once per
// newly-created or freshly-grown story that doesn't yet have a lede.
func (p *Postgres) UpdateStorySynthesis(ctx context.Context, storyID string, headline string, lede, narrative, category, arc, actionGuidance *string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE stories SET headline = $2, lede = $3, narrative = $4, category = $5, arc = $6,
			action_guidance = $7
		WHERE story_id = $1`,
		storyID, headline, lede, narrative, category, arc, actionGuidance)
	if err != nil {
		return fmt.Errorf("update story synthesis: %w", err)
	}
	return nil
}

// ArchiveStory implements store.Store (§4.10.E: >30 days stale AND
// velocity <= 0). Archival is terminal for Arc; Status is untouched so
// a story's clustering confidence survives archival.
func (p *Postgres) ArchiveStory(ctx context.Context, storyID string) error {
	archived := "archived"
	_, err := p.pool.Exec(ctx, `UPDATE stories SET arc = $2 WHERE story_id = $1`, storyID, archived)
	if err != nil {
		return fmt.Errorf("archive story: %w", err)
	}
	return nil
}

func collectStories(rows pgx.Rows) ([]*graph.Story, error) {
	var out []*graph.Story
	for rows.Next() {
		s, err := scanStory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SnapshotCluster implements store.Store (§4.10.C velocity).
func (p *Postgres) SnapshotCluster(ctx context.Context, storyID string, memberSignalIDs []string, heat float64, at time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO cluster_snapshots (snapshot_id, story_id, member_signal_ids, heat, taken_at)
		VALUES ($1, $2, $3, $4, $5)`, newID("snap"), storyID, memberSignalIDs, heat, at)
	if err != nil {
		return fmt.Errorf("snapshot cluster: %w", err)
	}
	return nil
}

// ListSnapshots implements store.Store.
func (p *Postgres) ListSnapshots(ctx context.Context, storyID string, since time.Time) ([]*graph.ClusterSnapshot, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT snapshot_id, story_id, member_signal_ids, heat, external_ratio, taken_at
		FROM cluster_snapshots WHERE story_id = $1 AND taken_at >= $2 ORDER BY taken_at`, storyID, since)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []*graph.ClusterSnapshot
	for rows.Next() {
		var s graph.ClusterSnapshot
		if err := rows.Scan(&s.ID, &s.StoryID, &s.MemberSignalIDs, &s.Heat, &s.ExternalRatio, &s.TakenAt); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}
