package store

import (
	"context"
	"fmt"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// GetOrCreateSupervisorState implements store.Store (§4.12 watermark).
// A city's first supervisor run has no row yet; one is created with a
// fresh window rather than erroring, mirroring FindOrCreateActor's
// lazy-upsert shape.
func (p *Postgres) GetOrCreateSupervisorState(ctx context.Context, city string) (*graph.SupervisorState, error) {
	var st graph.SupervisorState
	err := p.pool.QueryRow(ctx, `
		SELECT city, last_triage_at, last_echo_scan_at, llm_checks_this_window, window_started_at
		FROM supervisor_state WHERE city = $1`, city).
		Scan(&st.City, &st.LastTriageAt, &st.LastEchoScanAt, &st.LLMChecksThisWindow, &st.WindowStartedAt)
	if err == nil {
		return &st, nil
	}
	if !isNoRows(err) {
		return nil, fmt.Errorf("get supervisor state: %w", err)
	}

	now := time.Now()
	_, err = p.pool.Exec(ctx, `
		INSERT INTO supervisor_state (city, window_started_at) VALUES ($1, $2)
		ON CONFLICT (city) DO NOTHING`, city, now)
	if err != nil {
		return nil, fmt.Errorf("create supervisor state: %w", err)
	}
	return &graph.SupervisorState{City: city, WindowStartedAt: now}, nil
}

// UpdateSupervisorState implements store.Store.
func (p *Postgres) UpdateSupervisorState(ctx context.Context, st *graph.SupervisorState) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE supervisor_state SET
			last_triage_at = $2, last_echo_scan_at = $3, llm_checks_this_window = $4, window_started_at = $5
		WHERE city = $1`,
		st.City, st.LastTriageAt, st.LastEchoScanAt, st.LLMChecksThisWindow, st.WindowStartedAt)
	if err != nil {
		return fmt.Errorf("update supervisor state: %w", err)
	}
	return nil
}
