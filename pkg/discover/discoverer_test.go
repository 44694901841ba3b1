package discover

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

func testCity() config.CityProfile {
	return config.CityProfile{CityKey: "springfield", DisplayName: "Springfield"}
}

func testMeter(capCents int64) *budget.Meter {
	return budget.NewMeter(capCents, map[budget.Class]int{budget.ClassDiscovery: 10})
}

type fakeLLM struct {
	result *llmprovider.DiscoveryResult
	err    error
	calls  int
}

func (f *fakeLLM) DiscoverQueries(ctx context.Context, briefing string) (*llmprovider.DiscoveryResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func seedTension(t *testing.T, mem *store.Memory, city, title, whatWouldHelp string) {
	t.Helper()
	help := whatWouldHelp
	s := &graph.Signal{
		ID: "tension_" + title, City: city, Variant: graph.VariantTension,
		Title: title, Confidence: 0.8, WhatWouldHelp: &help,
	}
	_, err := mem.CreateSignal(context.Background(), s, nil)
	require.NoError(t, err)
}

func TestRunColdStartUsesMechanicalFallback(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	seedTension(t, mem, city.CityKey, "Overflowing dumpster", "more frequent pickup")

	llm := &fakeLLM{}
	d := &Discoverer{Store: mem, LLM: llm}

	created, err := d.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Equal(t, 0, llm.calls, "cold start should never reach the LLM")

	sources, err := mem.ListActiveSources(context.Background(), city.CityKey)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Equal(t, graph.SourceWebQuery, sources[0].SourceType)
	require.Contains(t, sources[0].GapContext, "Tension:")
}

func TestRunCallsLLMOnceWarmAndAffordable(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	for i := 0; i < 3; i++ {
		seedTension(t, mem, city.CityKey, "tension"+string(rune('a'+i)), "help"+string(rune('a'+i)))
	}
	_, err := mem.CreateStory(context.Background(), &graph.Story{ID: "story_1", City: city.CityKey})
	require.NoError(t, err)

	llm := &fakeLLM{result: &llmprovider.DiscoveryResult{Queries: []llmprovider.CuriosityQuery{
		{QueryText: "new shelter funding springfield", Reasoning: "no shelter coverage", GapType: "signal_type_imbalance"},
	}}}
	d := &Discoverer{Store: mem, LLM: llm}

	created, err := d.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 1, created)
	require.Equal(t, 1, llm.calls)

	sources, err := mem.ListActiveSources(context.Background(), city.CityKey)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	require.Contains(t, sources[0].GapContext, "Curiosity:")
}

func TestRunFallsBackWhenDiscoveryBudgetExhausted(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	for i := 0; i < 3; i++ {
		seedTension(t, mem, city.CityKey, "tension"+string(rune('a'+i)), "help"+string(rune('a'+i)))
	}
	_, err := mem.CreateStory(context.Background(), &graph.Story{ID: "story_1", City: city.CityKey})
	require.NoError(t, err)

	llm := &fakeLLM{result: &llmprovider.DiscoveryResult{Queries: []llmprovider.CuriosityQuery{
		{QueryText: "should never be used", Reasoning: "x", GapType: "y"},
	}}}
	d := &Discoverer{Store: mem, LLM: llm}

	created, err := d.Run(context.Background(), city, testMeter(0))
	require.NoError(t, err)
	require.Equal(t, 3, created, "exhausted discovery budget should fall through to the mechanical template")
	require.Equal(t, 0, llm.calls)
}

func TestRunSkipsEntirelyWithoutTensionsOrActors(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	_, err := mem.CreateStory(context.Background(), &graph.Story{ID: "story_1", City: city.CityKey})
	require.NoError(t, err)

	llm := &fakeLLM{}
	d := &Discoverer{Store: mem, LLM: llm}

	created, err := d.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 0, created)
	require.Equal(t, 0, llm.calls)
}

func TestRunDedupesAgainstExistingQueriesBySubstring(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	seedTension(t, mem, city.CityKey, "tension_a", "more frequent pickup")
	_, err := mem.UpsertSource(context.Background(), &graph.Source{
		ID: "src_existing", City: city.CityKey, CanonicalKey: "query:more frequent pickup springfield",
		SourceType: graph.SourceWebQuery, URL: "more frequent pickup springfield", Weight: 0.5, Active: true,
	})
	require.NoError(t, err)

	llm := &fakeLLM{}
	d := &Discoverer{Store: mem, LLM: llm}

	created, err := d.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 0, created)
}

func TestActorDerivedDiscoveryCreatesSourcesForUntrackedDomains(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	_, err := mem.CreateStory(context.Background(), &graph.Story{ID: "story_1", City: city.CityKey})
	require.NoError(t, err)
	_, err = mem.FindOrCreateActor(context.Background(), city.CityKey, "Springfield Housing Coalition",
		[]string{"shcoalition.org"}, []string{"https://instagram.com/shcoalition"})
	require.NoError(t, err)

	llm := &fakeLLM{}
	d := &Discoverer{Store: mem, LLM: llm}

	created, err := d.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 2, created)

	sources, err := mem.ListActiveSources(context.Background(), city.CityKey)
	require.NoError(t, err)
	require.Len(t, sources, 2)
	for _, s := range sources {
		require.Equal(t, "signal_reference", s.DiscoveryMethod)
		require.Contains(t, s.GapContext, "Actor: Springfield Housing Coalition")
	}
}

func TestInferSocialPlatformRecognizesSupportedDomains(t *testing.T) {
	platform, handle, ok := inferSocialPlatform("https://instagram.com/shcoalition/")
	require.True(t, ok)
	require.Equal(t, "instagram", platform)
	require.Equal(t, "shcoalition", handle)

	_, _, ok = inferSocialPlatform("https://example.com/shcoalition")
	require.False(t, ok)
}
