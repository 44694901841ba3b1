// Package store implements graph.Store against Postgres (with pgvector)
// and, for fast unit tests, in memory.
package store

import (
	"context"
	"time"

	"github.com/civic-scout/scout/pkg/graph"
)

// Store is the full set of typed operations the rest of the system uses
// to read and write the property graph (§4.1 plus the additional
// operations the weaver, scheduler, and supervisor need).
type Store interface {
	// Sources
	FindSourceByCanonicalKey(ctx context.Context, city, key string) (*graph.Source, error)
	UpsertSource(ctx context.Context, s *graph.Source) (*graph.Source, error)
	SetSourceActive(ctx context.Context, sourceID string, active bool) error
	SetSourceWeight(ctx context.Context, sourceID string, weight float64) error
	SetSourceQualityPenalty(ctx context.Context, sourceID string, penalty float64) error
	SetSourceSchedule(ctx context.Context, sourceID string, weight float64, nextDueAt time.Time) error
	RecordSourceRun(ctx context.Context, sourceID string, signalsProduced int, at time.Time) error
	ListActiveSources(ctx context.Context, city string) ([]*graph.Source, error)
	ListDueSources(ctx context.Context, city string, now time.Time) ([]*graph.Source, error)
	ListDiscoverySources(ctx context.Context, city string) ([]*graph.Source, error)

	// Signals
	CreateSignal(ctx context.Context, s *graph.Signal, ev *graph.Evidence) (string, error)
	GetSignal(ctx context.Context, id string) (*graph.Signal, error)
	AddEvidence(ctx context.Context, signalID string, ev *graph.Evidence) error
	ListEvidenceForSignal(ctx context.Context, signalID string) ([]*graph.Evidence, error)
	FindSignalsByEvidence(ctx context.Context, url string, contentHash uint64) ([]string, error)
	RefreshSignal(ctx context.Context, signalID string, at time.Time) error
	Corroborate(ctx context.Context, signalID string, newEvidenceEntityDomain string) error
	UpdateSignalEmbedding(ctx context.Context, signalID string, embedding []float32) error
	MarkInvestigated(ctx context.Context, signalID string, at time.Time) error
	SetQualityPenalty(ctx context.Context, signalID string, penalty float64) error
	FindDuplicateByVector(ctx context.Context, variant graph.Variant, embedding []float32, k int, threshold float64) (*graph.DuplicateMatch, error)
	FindDuplicateByTitle(ctx context.Context, variant graph.Variant, normalizedTitle, url string) (string, error)
	ListSignalsByVariant(ctx context.Context, city string, variant graph.Variant) ([]*graph.Signal, error)
	ListUncorroborated(ctx context.Context, city string, variant graph.Variant, cooldown time.Duration, limit int) ([]*graph.Signal, error)
	ListEmbeddedSignals(ctx context.Context, city string) ([]*graph.Signal, error)
	ListUnrespondedTensions(ctx context.Context, city string) ([]*graph.Signal, error)
	ListTensionBriefs(ctx context.Context, city string) ([]graph.TensionBrief, error)
	ListSignalsSince(ctx context.Context, city string, since time.Time) ([]*graph.Signal, error)
	DeleteEmptySignals(ctx context.Context, city string) (int, error)

	// Edges
	LinkActor(ctx context.Context, signalID, actorID string) error
	LinkRespondsTo(ctx context.Context, responderID, tensionID string, matchStrength float64, explanation string) error
	ListResponders(ctx context.Context, tensionID string) ([]*graph.Signal, error)
	LinkContains(ctx context.Context, storyID, signalID string) error
	UpsertSimilarityEdge(ctx context.Context, aID, bID string, weight float64) error
	ListSimilarityEdgesInRange(ctx context.Context, city string, minWeight, maxWeight float64) ([]graph.SimilarityEdge, error)

	// Actors
	FindOrCreateActor(ctx context.Context, city, canonicalName string, domains, socialURLs []string) (*graph.Actor, error)
	MergeActors(ctx context.Context, keepID, dropID string) error
	ListUntrackedActors(ctx context.Context, city string) ([]*graph.Actor, error)
	ListActors(ctx context.Context, city string) ([]*graph.Actor, error)

	// Stories
	CreateStory(ctx context.Context, st *graph.Story) (string, error)
	GetStory(ctx context.Context, id string) (*graph.Story, error)
	ListStoriesForTension(ctx context.Context, tensionID string) ([]*graph.Story, error)
	UpdateStoryMetrics(ctx context.Context, storyID string, m graph.StoryMetrics) error
	UpdateStorySynthesis(ctx context.Context, storyID string, headline string, lede, narrative, category, arc, actionGuidance *string) error
	ArchiveStory(ctx context.Context, storyID string) error
	ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error)
	SetStoryEchoScore(ctx context.Context, storyID string, score float64) error

	// Cluster snapshots
	SnapshotCluster(ctx context.Context, storyID string, memberSignalIDs []string, heat float64, at time.Time) error
	ListSnapshots(ctx context.Context, storyID string, since time.Time) ([]*graph.ClusterSnapshot, error)

	// Validation issues
	CreateValidationIssue(ctx context.Context, iss *graph.ValidationIssue) (string, error)
	ListOpenIssues(ctx context.Context, city string, subjectKind graph.SubjectKind, since time.Time) ([]*graph.ValidationIssue, error)
	ExpireIssue(ctx context.Context, id string) error
	PurgeResolvedIssues(ctx context.Context, city string, cutoff time.Time) (int, error)

	// Maintenance
	ReapExpired(ctx context.Context, city string, now time.Time) (int, error)
	DeleteOrphanedEvidence(ctx context.Context, city string) (int, error)
	NullFakeCityCenterCoords(ctx context.Context, city string, centerLat, centerLng, epsilonDegrees float64) (int, error)

	// Locks
	AcquireLock(ctx context.Context, city string, kind graph.LockKind, runID string, now time.Time, ttl time.Duration) error
	ReleaseLock(ctx context.Context, city string, kind graph.LockKind, runID string) error
	IsLocked(ctx context.Context, city string, kind graph.LockKind, now time.Time) (bool, error)

	// Supervisor watermark
	GetOrCreateSupervisorState(ctx context.Context, city string) (*graph.SupervisorState, error)
	UpdateSupervisorState(ctx context.Context, st *graph.SupervisorState) error

	Close() error
}
