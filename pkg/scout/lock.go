package scout

import (
	"context"
	"errors"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// lockTTL bounds how long a ScoutLock survives a crashed holder; a run
// that genuinely needs longer must re-acquire (not modeled here — no
// run observed in practice approaches this).
const lockTTL = 30 * time.Minute

// acquireScoutLock wraps store.AcquireLock, translating a conflict into
// the package's ErrLockHeld sentinel (§4.6 step 1, §7 LockHeld).
func acquireScoutLock(ctx context.Context, st lockStore, city, runID string, now time.Time) error {
	err := st.AcquireLock(ctx, city, graph.LockScout, runID, now, lockTTL)
	if err == nil {
		return nil
	}
	if errors.Is(err, graph.ErrConflict) {
		return ErrLockHeld
	}
	return err
}

// releaseScoutLock always attempts release, even on a cancelled or
// failed run (§5 "a cancelled scout MUST still release its lock").
func releaseScoutLock(ctx context.Context, st lockStore, city, runID string) error {
	return st.ReleaseLock(ctx, city, graph.LockScout, runID)
}

type lockStore interface {
	AcquireLock(ctx context.Context, city string, kind graph.LockKind, runID string, now time.Time, ttl time.Duration) error
	ReleaseLock(ctx context.Context, city string, kind graph.LockKind, runID string) error
}
