package supervisor

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

func testMeter(capCents int64) *budget.Meter {
	return budget.NewMeter(capCents, map[budget.Class]int{budget.ClassValidation: 2})
}

const testCity = "springfield"

func testProfile() config.CityProfile {
	return config.CityProfile{
		CityKey: testCity, DisplayName: "Springfield",
		CenterLat: 37.7749, CenterLng: -122.4194, RadiusKM: 20,
	}
}

type fakeValidator struct {
	verdict *llmprovider.ValidationVerdict
	err     error
	calls   int
}

func (f *fakeValidator) ValidateEvidence(ctx context.Context, signalSummary, evidenceExcerpt string) (*llmprovider.ValidationVerdict, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.verdict, nil
}

func seedLowConfidenceSignal(t *testing.T, mem *store.Memory, confidence float64, corroboration int) string {
	t.Helper()
	ctx := context.Background()
	sig := &graph.Signal{
		ID: ulid.Make().String(), City: testCity, Variant: graph.VariantNeed,
		Title: "Reported closure at 5th St shelter", Summary: "unverified social post",
		Confidence: confidence, CorroborationCount: corroboration,
		LastConfirmedActive: time.Now(),
	}
	_, err := mem.CreateSignal(ctx, sig, &graph.Evidence{
		ID: ulid.Make().String(), SignalID: sig.ID, SourceID: "src-1",
		URL: "https://example.com/a", RawExcerpt: "someone said the shelter closed",
	})
	require.NoError(t, err)
	return sig.ID
}

func TestRunAutoFixMergesDuplicateActors(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.FindOrCreateActor(ctx, testCity, "Acme Corp", nil, nil)
	require.NoError(t, err)
	_, err = mem.FindOrCreateActor(ctx, testCity, "ACME CORP ", nil, nil)
	require.NoError(t, err)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report := &Report{}
	s.runAutoFix(ctx, testProfile(), report)

	assert.Equal(t, 1, report.ActorsMerged)
	actors, err := mem.ListActors(ctx, testCity)
	require.NoError(t, err)
	assert.Len(t, actors, 1)
}

func TestBuildTriagePoolFindsMisclassificationCandidate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	sigID := seedLowConfidenceSignal(t, mem, 0.2, 0)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	pool, err := s.buildTriagePool(ctx, testCity, time.Time{})
	require.NoError(t, err)

	require.Len(t, pool, 1)
	assert.Equal(t, sigID, pool[0].subjectID)
	assert.Equal(t, graph.IssueContradictsEvidence, pool[0].category)
}

func TestBuildTriagePoolSkipsConfidentSignals(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedLowConfidenceSignal(t, mem, 0.9, 5)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	pool, err := s.buildTriagePool(ctx, testCity, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, pool)
}

func TestValidateAndPersistCreatesIssueOnRejectedEvidence(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedLowConfidenceSignal(t, mem, 0.1, 0)

	llm := &fakeValidator{verdict: &llmprovider.ValidationVerdict{Valid: false, Reason: "excerpt never confirms the closure"}}
	s := &Supervisor{Store: mem, LLM: llm}
	pool, err := s.buildTriagePool(ctx, testCity, time.Time{})
	require.NoError(t, err)

	report := &Report{}
	meter := testMeter(1000)
	s.validateAndPersist(ctx, testCity, pool, meter, report)

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, 1, report.IssuesCreated)
	assert.Equal(t, 1, report.LLMChecksPerformed)

	open, err := mem.ListOpenIssues(ctx, testCity, "", time.Time{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, graph.IssueContradictsEvidence, open[0].Category)
}

func TestValidateAndPersistSkipsWhenEvidenceHolds(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	seedLowConfidenceSignal(t, mem, 0.1, 0)

	llm := &fakeValidator{verdict: &llmprovider.ValidationVerdict{Valid: true}}
	s := &Supervisor{Store: mem, LLM: llm}
	pool, err := s.buildTriagePool(ctx, testCity, time.Time{})
	require.NoError(t, err)

	report := &Report{}
	s.validateAndPersist(ctx, testCity, pool, testMeter(1000), report)

	assert.Equal(t, 0, report.IssuesCreated)
	open, err := mem.ListOpenIssues(ctx, testCity, "", time.Time{})
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestValidateAndPersistDedupesAgainstOpenIssue(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	sigID := seedLowConfidenceSignal(t, mem, 0.1, 0)
	_, err := mem.CreateValidationIssue(ctx, &graph.ValidationIssue{
		ID: ulid.Make().String(), City: testCity,
		SubjectKind: graph.SubjectSignal, SubjectID: sigID,
		Category: graph.IssueContradictsEvidence, Detail: "already flagged",
	})
	require.NoError(t, err)

	llm := &fakeValidator{verdict: &llmprovider.ValidationVerdict{Valid: false, Reason: "x"}}
	s := &Supervisor{Store: mem, LLM: llm}
	pool, err := s.buildTriagePool(ctx, testCity, time.Time{})
	require.NoError(t, err)

	report := &Report{}
	s.validateAndPersist(ctx, testCity, pool, testMeter(1000), report)

	assert.Equal(t, 0, llm.calls, "already-open issue should be skipped before an LLM call is spent")
	assert.Equal(t, 0, report.IssuesCreated)
}

func TestExpireOldIssuesExpiresPastWindow(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	old := ulid.Make().String()
	_, err := mem.CreateValidationIssue(ctx, &graph.ValidationIssue{
		ID: old, City: testCity, SubjectKind: graph.SubjectSignal, SubjectID: "sig-1",
		Category: graph.IssueContradictsEvidence, Detail: "stale",
		CreatedAt: time.Now().Add(-31 * 24 * time.Hour),
	})
	require.NoError(t, err)
	fresh := ulid.Make().String()
	_, err = mem.CreateValidationIssue(ctx, &graph.ValidationIssue{
		ID: fresh, City: testCity, SubjectKind: graph.SubjectSignal, SubjectID: "sig-2",
		Category: graph.IssueContradictsEvidence, Detail: "fresh",
	})
	require.NoError(t, err)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report := &Report{}
	s.expireOldIssues(ctx, testCity, time.Now(), report)

	assert.Equal(t, 1, report.IssuesExpired)
	open, err := mem.ListOpenIssues(ctx, testCity, "", time.Time{})
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, fresh, open[0].ID)
}

func TestApplySourcePenaltiesPenalizesFlaggedSource(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	src, err := mem.UpsertSource(ctx, &graph.Source{
		ID: "src-1", City: testCity, CanonicalKey: "src-1", URL: "https://example.com", Active: true,
	})
	require.NoError(t, err)

	sigID := seedLowConfidenceSignal(t, mem, 0.1, 0)
	_, err = mem.CreateValidationIssue(ctx, &graph.ValidationIssue{
		ID: ulid.Make().String(), City: testCity,
		SubjectKind: graph.SubjectSignal, SubjectID: sigID,
		Category: graph.IssueContradictsEvidence, Detail: "flagged",
	})
	require.NoError(t, err)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report := &Report{}
	s.applySourcePenalties(ctx, testCity, report)

	sources, err := mem.ListActiveSources(ctx, testCity)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.NotNil(t, sources[0].QualityPenalty)
	assert.InDelta(t, 0.7, *sources[0].QualityPenalty, 0.001)

	_ = src
}

func TestApplySourcePenaltiesResetsWhenClean(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	_, err := mem.UpsertSource(ctx, &graph.Source{
		ID: "src-2", City: testCity, CanonicalKey: "src-2", URL: "https://example.com", Active: true,
	})
	require.NoError(t, err)
	require.NoError(t, mem.SetSourceQualityPenalty(ctx, "src-2", 0.4))

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report := &Report{}
	s.applySourcePenalties(ctx, testCity, report)

	assert.Equal(t, 1, report.SourcesReset)
	sources, err := mem.ListActiveSources(ctx, testCity)
	require.NoError(t, err)
	assert.Equal(t, 1.0, *sources[0].QualityPenalty)
}

func TestDetectEchoStoriesScoresLowDiversityStory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	storyID := ulid.Make().String()
	_, err := mem.CreateStory(ctx, &graph.Story{
		ID: storyID, City: testCity, TensionSignalID: ulid.Make().String(),
		Headline: "Overflow shelter crisis", SignalCount: 6, TypeDiversity: 1, EntityCount: 1,
		Status: graph.StoryStatusConfirmed,
	})
	require.NoError(t, err)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report := &Report{}
	s.detectEchoStories(ctx, testCity, report)

	assert.Equal(t, 1, report.EchoFlaggedStories)
	got, err := mem.GetStory(ctx, storyID)
	require.NoError(t, err)
	require.NotNil(t, got.EchoScore)
	assert.Greater(t, *got.EchoScore, 0.5)
}

func TestDetectEchoStoriesSkipsSmallStories(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	storyID := ulid.Make().String()
	_, err := mem.CreateStory(ctx, &graph.Story{
		ID: storyID, City: testCity, TensionSignalID: ulid.Make().String(),
		Headline: "Small cluster", SignalCount: 2, TypeDiversity: 1, EntityCount: 1,
	})
	require.NoError(t, err)

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report := &Report{}
	s.detectEchoStories(ctx, testCity, report)

	assert.Equal(t, 0, report.EchoFlaggedStories)
}

func TestRunAcquiresAndReleasesLock(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}

	report, err := s.Run(ctx, testProfile())
	require.NoError(t, err)
	assert.Equal(t, testCity, report.City)

	locked, err := mem.IsLocked(ctx, testCity, graph.LockSupervisor, time.Now())
	require.NoError(t, err)
	assert.False(t, locked, "lock must be released on exit")
}

func TestRunDefersPenaltiesWhileScoutLockHeld(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	require.NoError(t, mem.AcquireLock(ctx, testCity, graph.LockScout, "scout-run-1", time.Now(), time.Hour))

	s := &Supervisor{Store: mem, LLM: &fakeValidator{}}
	report, err := s.Run(ctx, testProfile())
	require.NoError(t, err)
	assert.True(t, report.PenaltiesDeferred)
}
