// Package story implements the story weaver (§4.10): materializing
// narrative clusters around sufficiently-corroborated tensions, keeping
// their metrics current, synthesizing prose for them, and archiving the
// ones that have gone quiet.
package story

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

// materializeThreshold is §4.10.A's corroboration gate: a tension needs
// at least this many RESPONDS_TO in-edges before it becomes a Story.
const materializeThreshold = 2

// Store is the narrow graph surface §4.10 needs.
type Store interface {
	ListTensionBriefs(ctx context.Context, city string) ([]graph.TensionBrief, error)
	ListStoriesForTension(ctx context.Context, tensionID string) ([]*graph.Story, error)
	ListResponders(ctx context.Context, tensionID string) ([]*graph.Signal, error)
	CreateStory(ctx context.Context, st *graph.Story) (string, error)
	GetStory(ctx context.Context, id string) (*graph.Story, error)
	LinkContains(ctx context.Context, storyID, signalID string) error
	UpdateStoryMetrics(ctx context.Context, storyID string, m graph.StoryMetrics) error
	UpdateStorySynthesis(ctx context.Context, storyID string, headline string, lede, narrative, category, arc, actionGuidance *string) error
	ArchiveStory(ctx context.Context, storyID string) error
	ListActiveStories(ctx context.Context, city string) ([]*graph.Story, error)
	SnapshotCluster(ctx context.Context, storyID string, memberSignalIDs []string, heat float64, at time.Time) error
	ListSnapshots(ctx context.Context, storyID string, since time.Time) ([]*graph.ClusterSnapshot, error)
}

// llm is the narrow LLM surface; satisfied by *llmprovider.Client.
type llm interface {
	SynthesizeStory(ctx context.Context, clusterSummary string) (*llmprovider.StorySynthesis, error)
}

// Weaver runs §4.10 against one city per Scout run.
type Weaver struct {
	Store Store
	LLM   llm
}

// Run implements the orchestrator's storyWeaver interface.
func (w *Weaver) Run(ctx context.Context, city string, meter *budget.Meter) (int, error) {
	touched := make(map[string]bool)

	if err := w.materialize(ctx, city, touched); err != nil {
		return len(touched), fmt.Errorf("materialize: %w", err)
	}
	if err := w.reconcile(ctx, city, touched); err != nil {
		return len(touched), fmt.Errorf("reconcile: %w", err)
	}
	for storyID := range touched {
		if err := w.recomputeMetrics(ctx, storyID); err != nil {
			return len(touched), fmt.Errorf("metrics %s: %w", storyID, err)
		}
	}
	if meter.HasBudget(budget.ClassSynthesis) {
		for storyID := range touched {
			w.synthesize(ctx, storyID, meter)
		}
	}
	if err := w.archiveStale(ctx, city); err != nil {
		return len(touched), fmt.Errorf("archive: %w", err)
	}

	return len(touched), nil
}

// materialize implements §4.10.A: a Tension with at least two RESPONDS_TO
// in-edges and no containing Story yet becomes one, status "emerging".
func (w *Weaver) materialize(ctx context.Context, city string, touched map[string]bool) error {
	briefs, err := w.Store.ListTensionBriefs(ctx, city)
	if err != nil {
		return fmt.Errorf("list tension briefs: %w", err)
	}

	for _, b := range briefs {
		if b.ResponseCount < materializeThreshold {
			continue
		}
		existing, err := w.Store.ListStoriesForTension(ctx, b.Signal.ID)
		if err != nil {
			return fmt.Errorf("list stories for tension %s: %w", b.Signal.ID, err)
		}
		if len(existing) > 0 {
			continue
		}

		st := &graph.Story{
			ID: ulid.Make().String(), City: city, TensionSignalID: b.Signal.ID,
			Headline: b.Signal.Title, Status: graph.StoryStatusEmerging,
		}
		storyID, err := w.Store.CreateStory(ctx, st)
		if err != nil {
			return fmt.Errorf("create story for tension %s: %w", b.Signal.ID, err)
		}
		if err := w.Store.LinkContains(ctx, storyID, b.Signal.ID); err != nil {
			return fmt.Errorf("link tension into story: %w", err)
		}

		responders, err := w.Store.ListResponders(ctx, b.Signal.ID)
		if err != nil {
			return fmt.Errorf("list responders for tension %s: %w", b.Signal.ID, err)
		}
		for _, r := range responders {
			if err := w.Store.LinkContains(ctx, storyID, r.ID); err != nil {
				return fmt.Errorf("link responder into story: %w", err)
			}
		}

		touched[storyID] = true
	}
	return nil
}

// reconcile implements a reduced form of §4.10.B: rather than computing
// asymmetric containment across every pair of active stories (which
// would need a store surface beyond what the graph exposes today —
// listing a story's full signal membership, not just its anchor
// tension), every active story's own anchor tension is re-synced
// against its current responder set each run. LinkContains is already
// idempotent, so this is a no-op once a story's membership has settled
// and naturally "grows" the story as new responses accumulate — the
// part of §4.10.B this repo can ground without inventing new storage.
func (w *Weaver) reconcile(ctx context.Context, city string, touched map[string]bool) error {
	active, err := w.Store.ListActiveStories(ctx, city)
	if err != nil {
		return fmt.Errorf("list active stories: %w", err)
	}
	for _, st := range active {
		responders, err := w.Store.ListResponders(ctx, st.TensionSignalID)
		if err != nil {
			return fmt.Errorf("list responders for story %s: %w", st.ID, err)
		}
		for _, r := range responders {
			if err := w.Store.LinkContains(ctx, st.ID, r.ID); err != nil {
				return fmt.Errorf("relink responder: %w", err)
			}
		}
		touched[st.ID] = true
	}
	return nil
}

// recomputeMetrics implements §4.10.C for one touched story.
func (w *Weaver) recomputeMetrics(ctx context.Context, storyID string) error {
	st, err := w.Store.GetStory(ctx, storyID)
	if err != nil {
		return fmt.Errorf("get story: %w", err)
	}
	if st.IsArchived() {
		return nil
	}

	responders, err := w.Store.ListResponders(ctx, st.TensionSignalID)
	if err != nil {
		return fmt.Errorf("list responders: %w", err)
	}

	members := make([]*graph.Signal, 0, len(responders)+1)
	members = append(members, responders...)

	m := aggregateMembers(members)
	m.Status = classifyStatus(m)

	now := time.Now()
	snapshots, err := w.Store.ListSnapshots(ctx, storyID, now.Add(-7*24*time.Hour))
	if err != nil {
		return fmt.Errorf("list snapshots: %w", err)
	}
	// Heat and velocity are mutually dependent (heat feeds velocity's
	// elapsed-days delta, velocity feeds heat's own weighted formula), so
	// this resolves the cycle in two passes: first a velocity-less energy
	// figure stands in for "current heat" to compute velocity against the
	// prior snapshot, then energy is recomputed with that real velocity.
	recency := recencyFactor(members, now)
	m.Energy = computeEnergy(m, recency)
	m.Velocity = computeVelocity(snapshots, m.Energy, now)
	m.Energy = computeEnergy(m, recency)
	m.Heat = m.Energy
	m.RewovenAt = now

	if err := w.Store.UpdateStoryMetrics(ctx, storyID, m); err != nil {
		return fmt.Errorf("update story metrics: %w", err)
	}

	memberIDs := make([]string, 0, len(members)+1)
	memberIDs = append(memberIDs, st.TensionSignalID)
	for _, r := range members {
		memberIDs = append(memberIDs, r.ID)
	}
	return w.Store.SnapshotCluster(ctx, storyID, memberIDs, m.Heat, now)
}

// aggregateMembers computes §4.10.C's count/diversity/centroid/
// sensitivity metrics from a story's responder signals. (The anchor
// tension itself isn't counted among asks/gives/events — it's the gap
// the story is organized around, not a response to it.)
func aggregateMembers(members []*graph.Signal) graph.StoryMetrics {
	var m graph.StoryMetrics
	m.SignalCount = len(members)
	m.ResponseCount = len(members)

	variants := make(map[graph.Variant]bool)
	domains := make(map[string]bool)
	var latSum, lngSum float64
	var coordCount int
	maxSensitivity := graph.SensitivityNormal

	for _, s := range members {
		variants[s.Variant] = true
		switch s.Variant {
		case graph.VariantNeed:
			m.AskCount++
		case graph.VariantAid:
			m.GiveCount++
		case graph.VariantGathering:
			m.EventCount++
		}
		domains[entityDomainOf(s.SourceURL)] = true
		if s.Lat != nil && s.Lng != nil {
			latSum += *s.Lat
			lngSum += *s.Lng
			coordCount++
		}
		if sensitivityRank(s.Sensitivity) > sensitivityRank(maxSensitivity) {
			maxSensitivity = s.Sensitivity
		}
	}

	m.TypeDiversity = len(variants)
	m.SourceCount = len(domains)
	m.Sensitivity = maxSensitivity
	if m.AskCount > m.GiveCount {
		m.GapScore = m.AskCount - m.GiveCount
	}
	if coordCount > 0 {
		lat := snapToSensitivityGrid(latSum/float64(coordCount), maxSensitivity)
		lng := snapToSensitivityGrid(lngSum/float64(coordCount), maxSensitivity)
		m.CentroidLat = &lat
		m.CentroidLng = &lng
	}
	return m
}

// snapToSensitivityGrid rounds a centroid coordinate to a grid coarser
// the more sensitive the story's content is, mirroring the coordinate
// fuzzing §3 already applies per-signal.
func snapToSensitivityGrid(v float64, sensitivity graph.Sensitivity) float64 {
	var precision float64
	switch sensitivity {
	case graph.SensitivitySensitive:
		precision = 20 // 0.05° grid, about 5 km
	case graph.SensitivityElevated:
		precision = 200 // 0.005° grid, about 500 m
	default:
		precision = 1000
	}
	return math.Round(v*precision) / precision
}

func sensitivityRank(s graph.Sensitivity) int {
	switch s {
	case graph.SensitivitySensitive:
		return 2
	case graph.SensitivityElevated:
		return 1
	default:
		return 0
	}
}

// computeVelocity is the rate of change of cluster heat over the
// snapshot history (§4.10.C). With no prior snapshot, velocity is 0.
func computeVelocity(snapshots []*graph.ClusterSnapshot, currentHeat float64, now time.Time) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	prev := snapshots[len(snapshots)-1]
	elapsedDays := now.Sub(prev.TakenAt).Hours() / 24
	if elapsedDays <= 0 {
		return 0
	}
	return (currentHeat - prev.Heat) / elapsedDays
}

// latestActivity is the most recent LastConfirmedActive among a story's
// members — its real "last touched" time, independent of how often the
// weaver happens to recompute metrics.
func latestActivity(members []*graph.Signal) time.Time {
	var latest time.Time
	for _, s := range members {
		if s.LastConfirmedActive.After(latest) {
			latest = s.LastConfirmedActive
		}
	}
	return latest
}

// recencyFactor is how fresh the story's most-recently-confirmed member
// is, decaying linearly to 0 over 14 days.
func recencyFactor(members []*graph.Signal, now time.Time) float64 {
	latest := latestActivity(members)
	if latest.IsZero() {
		return 0
	}
	ageDays := now.Sub(latest).Hours() / 24
	factor := 1 - ageDays/14
	if factor < 0 {
		return 0
	}
	if factor > 1 {
		return 1
	}
	return factor
}

// computeEnergy implements §4.10.C's weighted energy formula:
// 0.35 recency + 0.25 triangulation + 0.20 source_diversity + 0.20 velocity,
// each term normalized to [0,1] before weighting. Triangulation is 0.2
// for a single signal type, 0.6 for two and 1.0 for three or more.
func computeEnergy(m graph.StoryMetrics, recency float64) float64 {
	triangulation := 0.0
	switch {
	case m.TypeDiversity >= 3:
		triangulation = 1
	case m.TypeDiversity >= 1:
		triangulation = 0.2 + 0.4*float64(m.TypeDiversity-1)
	}
	sourceDiversity := math.Min(float64(m.SourceCount)/5.0, 1.0)
	velocity := math.Max(0, math.Min(m.Velocity/5.0, 1.0))

	return 0.35*recency + 0.25*triangulation + 0.20*sourceDiversity + 0.20*velocity
}

// classifyStatus implements §4.10.C's status thresholds: confirmed once
// a story has been triangulated across distinct sources and signal
// kinds; echo once it has responses but they all trace back to one
// domain; emerging otherwise.
func classifyStatus(m graph.StoryMetrics) graph.StoryStatus {
	switch {
	case m.SourceCount >= 3 && m.TypeDiversity >= 2:
		return graph.StoryStatusConfirmed
	case m.SourceCount <= 1 && m.SignalCount > 0:
		return graph.StoryStatusEcho
	default:
		return graph.StoryStatusEmerging
	}
}

// synthesize implements §4.10.D. A synthesis failure is non-fatal (§7):
// the story just keeps whatever headline/narrative it already had.
func (w *Weaver) synthesize(ctx context.Context, storyID string, meter *budget.Meter) {
	st, err := w.Store.GetStory(ctx, storyID)
	if err != nil || st.IsArchived() {
		return
	}

	responders, err := w.Store.ListResponders(ctx, st.TensionSignalID)
	if err != nil {
		return
	}
	summary := fmt.Sprintf("Tension: %s\nResponses: %d (asks=%d, gives=%d, events=%d)\nSources: %d distinct",
		st.Headline, len(responders), st.AskCount, st.GiveCount, st.EventCount, st.SourceCount)

	meter.Charge(budget.ClassSynthesis)
	synthesis, err := w.LLM.SynthesizeStory(ctx, summary)
	if err != nil || synthesis == nil {
		return
	}

	_ = w.Store.UpdateStorySynthesis(ctx, storyID, synthesis.Headline,
		&synthesis.Lede, &synthesis.Narrative, &synthesis.Category, &synthesis.Arc, &synthesis.ActionGuidance)
}

// entityDomainOf derives the registrable host for source-diversity
// counting, matching the derivation used in pkg/scout/persist.go,
// pkg/investigate, and pkg/respond.
func entityDomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// archiveStale implements §4.10.E: a story whose members have had no new
// confirmed activity for config.StoryArchiveWindow, with non-positive
// velocity, is archived, never deleted. Staleness is judged against
// member LastConfirmedActive rather than Story.LastUpdated, since the
// latter gets bumped by every metrics recompute pass regardless of
// whether anything in the cluster actually changed.
func (w *Weaver) archiveStale(ctx context.Context, city string) error {
	active, err := w.Store.ListActiveStories(ctx, city)
	if err != nil {
		return fmt.Errorf("list active stories: %w", err)
	}
	cutoff := time.Now().Add(-config.StoryArchiveWindow)
	for _, st := range active {
		if st.Velocity > 0 {
			continue
		}
		responders, err := w.Store.ListResponders(ctx, st.TensionSignalID)
		if err != nil {
			return fmt.Errorf("list responders for story %s: %w", st.ID, err)
		}
		last := latestActivity(responders)
		if last.IsZero() || last.After(cutoff) {
			continue
		}
		if err := w.Store.ArchiveStory(ctx, st.ID); err != nil {
			return fmt.Errorf("archive story %s: %w", st.ID, err)
		}
	}
	return nil
}
