package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
)

// ErrLockHeld is returned when another run already holds
// SupervisorLock(city); callers should treat this as a non-fatal skip,
// mirroring pkg/scout's ErrLockHeld (§7 LockHeld).
var ErrLockHeld = errors.New("supervisor: lock held")

func acquireSupervisorLock(ctx context.Context, st lockStore, city, runID string, now time.Time) error {
	err := st.AcquireLock(ctx, city, graph.LockSupervisor, runID, now, config.SupervisorLockTTL)
	if err == nil {
		return nil
	}
	if errors.Is(err, graph.ErrConflict) {
		return ErrLockHeld
	}
	return err
}

func releaseSupervisorLock(ctx context.Context, st lockStore, city, runID string) error {
	return st.ReleaseLock(ctx, city, graph.LockSupervisor, runID)
}

type lockStore interface {
	AcquireLock(ctx context.Context, city string, kind graph.LockKind, runID string, now time.Time, ttl time.Duration) error
	ReleaseLock(ctx context.Context, city string, kind graph.LockKind, runID string) error
	IsLocked(ctx context.Context, city string, kind graph.LockKind, now time.Time) (bool, error)
}
