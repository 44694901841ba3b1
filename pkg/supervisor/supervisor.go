// Package supervisor implements the out-of-band validation, auto-repair,
// and source-quality feedback agent (§4.12). It runs on its own cadence
// under SupervisorLock, concurrently with (but mutually exclusive on
// penalty writes from) a city's Scout runs.
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
	"github.com/civic-scout/scout/pkg/notify"
)

// Store is the full graph surface §4.12 needs, satisfied by
// *store.Postgres and *store.Memory.
type Store interface {
	lockStore

	// Auto-fix
	DeleteOrphanedEvidence(ctx context.Context, city string) (int, error)
	DeleteEmptySignals(ctx context.Context, city string) (int, error)
	ListActors(ctx context.Context, city string) ([]*graph.Actor, error)
	MergeActors(ctx context.Context, keepID, dropID string) error
	NullFakeCityCenterCoords(ctx context.Context, city string, centerLat, centerLng, epsilonDegrees float64) (int, error)

	// Triage candidate pools
	ListSignalsSince(ctx context.Context, city string, since time.Time) ([]*graph.Signal, error)
	ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error)
	ListSimilarityEdgesInRange(ctx context.Context, city string, minWeight, maxWeight float64) ([]graph.SimilarityEdge, error)
	GetSignal(ctx context.Context, id string) (*graph.Signal, error)
	ListEvidenceForSignal(ctx context.Context, signalID string) ([]*graph.Evidence, error)

	// Issue persistence
	CreateValidationIssue(ctx context.Context, iss *graph.ValidationIssue) (string, error)
	ListOpenIssues(ctx context.Context, city string, subjectKind graph.SubjectKind, since time.Time) ([]*graph.ValidationIssue, error)
	ExpireIssue(ctx context.Context, id string) error

	// Source penalty
	FindSourceByCanonicalKey(ctx context.Context, city, key string) (*graph.Source, error)
	ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error)
	SetSourceQualityPenalty(ctx context.Context, sourceID string, penalty float64) error

	// Echo detection
	SetStoryEchoScore(ctx context.Context, storyID string, score float64) error

	// Watermark
	GetOrCreateSupervisorState(ctx context.Context, city string) (*graph.SupervisorState, error)
	UpdateSupervisorState(ctx context.Context, st *graph.SupervisorState) error
}

// llm is the narrow LLM surface; satisfied by *llmprovider.Client.
type llm interface {
	ValidateEvidence(ctx context.Context, signalSummary, evidenceExcerpt string) (*llmprovider.ValidationVerdict, error)
}

// Supervisor runs §4.12 against one city on its own cadence, independent
// of that city's Scout schedule.
type Supervisor struct {
	Store  Store
	LLM    llm
	Notify notify.Backend
}

// Run executes one full supervisor pass for city, releasing
// SupervisorLock on every exit path.
func (s *Supervisor) Run(ctx context.Context, city config.CityProfile) (*Report, error) {
	runID := ulid.Make().String()
	now := time.Now()
	report := &Report{City: city.CityKey}
	meter := budget.NewMeter(config.DefaultSupervisorBudgetCents, map[budget.Class]int{budget.ClassValidation: 2})

	if err := acquireSupervisorLock(ctx, s.Store, city.CityKey, runID, now); err != nil {
		return nil, err
	}
	defer func() {
		if err := releaseSupervisorLock(context.WithoutCancel(ctx), s.Store, city.CityKey, runID); err != nil {
			slog.Warn("supervisor: release lock failed", "city", city.CityKey, "error", err)
		}
	}()

	state, err := s.Store.GetOrCreateSupervisorState(ctx, city.CityKey)
	if err != nil {
		return nil, err
	}
	watermark := time.Time{}
	if state.LastTriageAt != nil {
		watermark = *state.LastTriageAt
	}

	s.runAutoFix(ctx, city, report)

	pool, err := s.buildTriagePool(ctx, city.CityKey, watermark)
	if err != nil {
		slog.Warn("supervisor: triage pool build failed", "city", city.CityKey, "error", err)
	}
	report.TriagePoolSize = len(pool)

	s.validateAndPersist(ctx, city.CityKey, pool, meter, report)
	s.expireOldIssues(ctx, city.CityKey, now, report)

	locked, err := s.Store.IsLocked(ctx, city.CityKey, graph.LockScout, now)
	if err != nil {
		slog.Warn("supervisor: scout lock check failed", "city", city.CityKey, "error", err)
	}
	if locked {
		report.PenaltiesDeferred = true
		slog.Info("supervisor: deferring feedback writes", "city", city.CityKey)
	} else {
		s.applySourcePenalties(ctx, city.CityKey, report)
	}

	s.detectEchoStories(ctx, city.CityKey, report)

	state.LastTriageAt = &now
	if err := s.Store.UpdateSupervisorState(ctx, state); err != nil {
		slog.Warn("supervisor: watermark update failed", "city", city.CityKey, "error", err)
	}

	if s.Notify != nil {
		if err := s.Notify.Send(ctx, toNotifyReport(*report)); err != nil {
			slog.Warn("supervisor: notify failed", "city", city.CityKey, "error", err)
		}
	}

	return report, nil
}

func toNotifyReport(r Report) notify.Report {
	return notify.Report{
		City:               r.City,
		OrphanedEvidence:   r.OrphanedEvidenceDeleted,
		EmptySignals:       r.EmptySignalsDeleted,
		ActorsMerged:       r.ActorsMerged,
		FakeCoordsCleared:  r.FakeCoordsCleared,
		TriagePoolSize:     r.TriagePoolSize,
		LLMChecksPerformed: r.LLMChecksPerformed,
		IssuesCreated:      r.IssuesCreated,
		IssuesResolved:     r.IssuesResolved,
		IssuesExpired:      r.IssuesExpired,
		SourcesReset:       r.SourcesReset,
		EchoFlaggedStories: r.EchoFlaggedStories,
	}
}
