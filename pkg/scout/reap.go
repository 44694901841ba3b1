package scout

import (
	"context"
	"time"
)

// reapStore is the narrow surface reap needs.
type reapStore interface {
	ReapExpired(ctx context.Context, city string, now time.Time) (int, error)
}

// reap deletes type-expired signals (§4.6 step 2); the per-variant
// freshness windows live in pkg/graph/store, which already knows each
// signal's variant.
func reap(ctx context.Context, st reapStore, city string, now time.Time) (int, error) {
	return st.ReapExpired(ctx, city, now)
}
