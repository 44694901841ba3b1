package story

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

const testCity = "springfield"

func testMeter(capCents int64) *budget.Meter {
	return budget.NewMeter(capCents, map[budget.Class]int{budget.ClassSynthesis: 1})
}

type fakeLLM struct {
	synthesis *llmprovider.StorySynthesis
	err       error
	calls     int
}

func (f *fakeLLM) SynthesizeStory(ctx context.Context, clusterSummary string) (*llmprovider.StorySynthesis, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.synthesis, nil
}

func seedTensionWithResponders(t *testing.T, mem *store.Memory, respondersCount int) string {
	t.Helper()
	return seedTensionWithRespondersActiveAt(t, mem, respondersCount, time.Now())
}

func seedTensionWithRespondersActiveAt(t *testing.T, mem *store.Memory, respondersCount int, activeAt time.Time) string {
	t.Helper()
	ctx := context.Background()

	tension := &graph.Signal{
		ID: ulid.Make().String(), City: testCity, Variant: graph.VariantTension,
		Title: "Shelter overflow at 4th St", WhatWouldHelp: strPtr("overnight cots"),
		LastConfirmedActive: time.Now(),
	}
	_, err := mem.CreateSignal(ctx, tension, &graph.Evidence{ID: ulid.Make().String(), SignalID: tension.ID, URL: "https://news.example.com/a"})
	require.NoError(t, err)

	variants := []graph.Variant{graph.VariantAid, graph.VariantGathering, graph.VariantNeed}
	for i := 0; i < respondersCount; i++ {
		v := variants[i%len(variants)]
		lat, lng := 37.77+float64(i)*0.001, -122.41+float64(i)*0.001
		r := &graph.Signal{
			ID: ulid.Make().String(), City: testCity, Variant: v,
			Title: "response", Lat: &lat, Lng: &lng,
			LastConfirmedActive: activeAt, Sensitivity: graph.SensitivityNormal,
		}
		sourceURL := "https://source" + string(rune('a'+i)) + ".example.com/x"
		_, err := mem.CreateSignal(ctx, r, &graph.Evidence{ID: ulid.Make().String(), SignalID: r.ID, URL: sourceURL})
		require.NoError(t, err)
		r.SourceURL = sourceURL
		require.NoError(t, mem.LinkRespondsTo(ctx, r.ID, tension.ID, 0.8, "matches gap"))
	}

	return tension.ID
}

func strPtr(s string) *string { return &s }

func TestRunMaterializesStoryOnceThresholdMet(t *testing.T) {
	mem := store.NewMemory()
	tensionID := seedTensionWithResponders(t, mem, 2)

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	touched, err := w.Run(context.Background(), testCity, testMeter(0))
	require.NoError(t, err)
	assert.Equal(t, 1, touched)

	stories, err := mem.ListStoriesForTension(context.Background(), tensionID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, graph.StoryStatusEmerging, stories[0].Status)
	assert.Equal(t, 2, stories[0].ResponseCount)
}

func TestRunDoesNotMaterializeBelowThreshold(t *testing.T) {
	mem := store.NewMemory()
	seedTensionWithResponders(t, mem, 1)

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	touched, err := w.Run(context.Background(), testCity, testMeter(0))
	require.NoError(t, err)
	assert.Equal(t, 0, touched)
}

func TestRunDoesNotDuplicateStoryOnSecondRun(t *testing.T) {
	mem := store.NewMemory()
	tensionID := seedTensionWithResponders(t, mem, 2)

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	_, err := w.Run(context.Background(), testCity, testMeter(0))
	require.NoError(t, err)
	_, err = w.Run(context.Background(), testCity, testMeter(0))
	require.NoError(t, err)

	stories, err := mem.ListStoriesForTension(context.Background(), tensionID)
	require.NoError(t, err)
	assert.Len(t, stories, 1)
}

func TestRunGrowsStoryWhenNewResponderLinked(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	tensionID := seedTensionWithResponders(t, mem, 2)

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	_, err := w.Run(ctx, testCity, testMeter(0))
	require.NoError(t, err)

	newResponder := &graph.Signal{
		ID: ulid.Make().String(), City: testCity, Variant: graph.VariantAid,
		Title: "late add", LastConfirmedActive: time.Now(),
	}
	_, err = mem.CreateSignal(ctx, newResponder, &graph.Evidence{ID: ulid.Make().String(), SignalID: newResponder.ID, URL: "https://newsource.example.com/z"})
	require.NoError(t, err)
	require.NoError(t, mem.LinkRespondsTo(ctx, newResponder.ID, tensionID, 0.9, "late match"))

	_, err = w.Run(ctx, testCity, testMeter(0))
	require.NoError(t, err)

	stories, err := mem.ListStoriesForTension(ctx, tensionID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Equal(t, 3, stories[0].ResponseCount)
}

func TestRunComputesMetricsAndCentroid(t *testing.T) {
	mem := store.NewMemory()
	seedTensionWithResponders(t, mem, 3)

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	_, err := w.Run(context.Background(), testCity, testMeter(0))
	require.NoError(t, err)

	active, err := mem.ListActiveStories(context.Background(), testCity)
	require.NoError(t, err)
	require.Len(t, active, 1)
	st := active[0]
	assert.Equal(t, 3, st.SourceCount)
	assert.GreaterOrEqual(t, st.TypeDiversity, 1)
	require.NotNil(t, st.CentroidLat)
	require.NotNil(t, st.CentroidLng)
	assert.Equal(t, graph.StoryStatusConfirmed, st.Status)
}

func TestRunSynthesizesWhenBudgetAvailable(t *testing.T) {
	mem := store.NewMemory()
	seedTensionWithResponders(t, mem, 2)

	llm := &fakeLLM{synthesis: &llmprovider.StorySynthesis{
		Headline: "Shelters strained as cold snap hits",
		Lede:     "Overnight shelters reached capacity this week.",
	}}
	w := &Weaver{Store: mem, LLM: llm}
	_, err := w.Run(context.Background(), testCity, testMeter(1000))
	require.NoError(t, err)

	assert.Equal(t, 1, llm.calls)
	active, err := mem.ListActiveStories(context.Background(), testCity)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Shelters strained as cold snap hits", active[0].Headline)
}

func TestRunSkipsSynthesisWhenBudgetExhausted(t *testing.T) {
	mem := store.NewMemory()
	seedTensionWithResponders(t, mem, 2)

	llm := &fakeLLM{synthesis: &llmprovider.StorySynthesis{Headline: "should not apply"}}
	w := &Weaver{Store: mem, LLM: llm}
	_, err := w.Run(context.Background(), testCity, testMeter(0))
	require.NoError(t, err)

	assert.Equal(t, 0, llm.calls)
}

func TestRunVelocityGoesPositiveAsEngagementGrows(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	tensionID := seedTensionWithResponders(t, mem, 2)

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	_, err := w.Run(ctx, testCity, testMeter(0))
	require.NoError(t, err)

	stories, err := mem.ListStoriesForTension(ctx, tensionID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.LessOrEqual(t, stories[0].Velocity, 0.0, "a single recompute pass has no prior snapshot to compare against")

	newVariants := []graph.Variant{graph.VariantNeed, graph.VariantAid, graph.VariantGathering}
	for i, v := range newVariants {
		responder := &graph.Signal{
			ID: ulid.Make().String(), City: testCity, Variant: v,
			Title: "more help arriving", LastConfirmedActive: time.Now(),
		}
		_, err = mem.CreateSignal(ctx, responder, &graph.Evidence{ID: ulid.Make().String(), SignalID: responder.ID, URL: "https://growing" + string(rune('a'+i)) + ".example.com/z"})
		require.NoError(t, err)
		require.NoError(t, mem.LinkRespondsTo(ctx, responder.ID, tensionID, 0.9, "growing engagement"))
	}

	_, err = w.Run(ctx, testCity, testMeter(0))
	require.NoError(t, err)

	stories, err = mem.ListStoriesForTension(ctx, tensionID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	assert.Greater(t, stories[0].Velocity, 0.0, "heat climbing across an increasingly-corroborated cluster must show positive velocity")
}

func TestRunArchivesStaleZeroVelocityStory(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	tensionID := seedTensionWithRespondersActiveAt(t, mem, 2, time.Now().Add(-45*24*time.Hour))

	w := &Weaver{Store: mem, LLM: &fakeLLM{}}
	_, err := w.Run(ctx, testCity, testMeter(0))
	require.NoError(t, err)

	stories, err := mem.ListStoriesForTension(ctx, tensionID)
	require.NoError(t, err)
	require.Len(t, stories, 1)
	storyID := stories[0].ID

	remaining, err := mem.ListActiveStories(ctx, testCity)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	archived, err := mem.GetStory(ctx, storyID)
	require.NoError(t, err)
	assert.True(t, archived.IsArchived())
}
