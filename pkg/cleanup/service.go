// Package cleanup provides data retention for the graph store.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/civic-scout/scout/pkg/config"
)

// Store is the narrow maintenance surface Service needs.
type Store interface {
	ReapExpired(ctx context.Context, city string, now time.Time) (int, error)
	DeleteOrphanedEvidence(ctx context.Context, city string) (int, error)
	PurgeResolvedIssues(ctx context.Context, city string, cutoff time.Time) (int, error)
}

// CityLister is the narrow surface Service needs from *config.Registry.
type CityLister interface {
	List() []*config.CityProfile
}

// Service periodically enforces retention policies per city:
//   - Reaps Signals past their variant's freshness window (§3 Lifecycle)
//   - Removes Evidence orphaned by a direct signal delete
//   - Hard-deletes ValidationIssues resolved or expired past IssueRetention
//
// All operations are idempotent and safe to run from multiple processes.
type Service struct {
	store     Store
	registry  CityLister
	interval  time.Duration
	retention time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup Service. retention bounds how long a
// resolved or expired ValidationIssue is kept before being purged;
// interval is how often the sweep runs.
func NewService(store Store, registry CityLister, interval, retention time.Duration) *Service {
	return &Service{store: store, registry: registry, interval: interval, retention: retention}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("cleanup service started", "interval", s.interval, "issue_retention", s.retention)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.runAll(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runAll(ctx)
		}
	}
}

func (s *Service) runAll(ctx context.Context) {
	now := time.Now()
	cutoff := now.Add(-s.retention)
	for _, city := range s.registry.List() {
		s.reapExpiredSignals(ctx, city.CityKey, now)
		s.cleanupOrphanedEvidence(ctx, city.CityKey)
		s.purgeResolvedIssues(ctx, city.CityKey, cutoff)
	}
}

func (s *Service) reapExpiredSignals(ctx context.Context, city string, now time.Time) {
	count, err := s.store.ReapExpired(ctx, city, now)
	if err != nil {
		slog.Error("retention: reap expired signals failed", "city", city, "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: reaped expired signals", "city", city, "count", count)
	}
}

func (s *Service) cleanupOrphanedEvidence(ctx context.Context, city string) {
	count, err := s.store.DeleteOrphanedEvidence(ctx, city)
	if err != nil {
		slog.Error("retention: orphaned evidence cleanup failed", "city", city, "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: deleted orphaned evidence", "city", city, "count", count)
	}
}

func (s *Service) purgeResolvedIssues(ctx context.Context, city string, cutoff time.Time) {
	count, err := s.store.PurgeResolvedIssues(ctx, city, cutoff)
	if err != nil {
		slog.Error("retention: purge resolved issues failed", "city", city, "error", err)
		return
	}
	if count > 0 {
		slog.Info("retention: purged resolved issues", "city", city, "count", count)
	}
}
