package store

import (
	"context"
	"fmt"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

func lockTable(kind graph.LockKind) string {
	if kind == graph.LockSupervisor {
		return "supervisor_locks"
	}
	return "scout_locks"
}

// AcquireLock implements store.Store with compare-and-set semantics (§3
// invariant 8): a lock can be taken when none exists for the city, or
// when the existing one has expired. Grounded on the same
// claim-under-contention shape as the queue worker's FOR UPDATE SKIP
// LOCKED session claim, adapted to an upsert since locks are singletons
// keyed by city rather than a row pool.
func (p *Postgres) AcquireLock(ctx context.Context, city string, kind graph.LockKind, runID string, now time.Time, ttl time.Duration) error {
	table := lockTable(kind)
	expiresAt := now.Add(ttl)

	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (city, holder_run_id, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (city) DO UPDATE SET
			holder_run_id = EXCLUDED.holder_run_id,
			acquired_at = EXCLUDED.acquired_at,
			expires_at = EXCLUDED.expires_at
		WHERE %s.expires_at < $3`, table, table), city, runID, now, expiresAt)
	if err != nil {
		return fmt.Errorf("%w: acquire lock: %v", graph.ErrGraphUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return graph.ErrConflict
	}
	return nil
}

// ReleaseLock implements store.Store. Releasing is a no-op (not an error)
// if the caller no longer holds the lock — a run that was preempted by a
// stale-lock reclaim should not clobber the new holder.
func (p *Postgres) ReleaseLock(ctx context.Context, city string, kind graph.LockKind, runID string) error {
	table := lockTable(kind)
	_, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE city = $1 AND holder_run_id = $2`, table), city, runID)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	return nil
}

// IsLocked implements store.Store (§4.12: the supervisor must defer
// source-penalty writes while ScoutLock is held rather than race a
// concurrent scout run).
func (p *Postgres) IsLocked(ctx context.Context, city string, kind graph.LockKind, now time.Time) (bool, error) {
	table := lockTable(kind)
	var expiresAt time.Time
	err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT expires_at FROM %s WHERE city = $1`, table), city).Scan(&expiresAt)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("is locked: %w", err)
	}
	return expiresAt.After(now), nil
}
