package respond

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/budget"
	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

func testCity() config.CityProfile {
	return config.CityProfile{CityKey: "springfield", DisplayName: "Springfield"}
}

func testMeter(capCents int64) *budget.Meter {
	return budget.NewMeter(capCents, map[budget.Class]int{
		budget.ClassWebSearch: 1, budget.ClassInvestigation: 1, budget.ClassEmbedding: 1,
	})
}

type fakeCaps struct {
	hits []fetch.Hit
}

func (f *fakeCaps) FetchURL(ctx context.Context, url string) (*fetch.RawPage, error) { return nil, nil }
func (f *fakeCaps) SearchWeb(ctx context.Context, query string) ([]fetch.Hit, error) {
	return f.hits, nil
}
func (f *fakeCaps) FetchSocial(ctx context.Context, platform, handle string, n int) ([]fetch.Post, error) {
	return nil, nil
}
func (f *fakeCaps) FetchRSS(ctx context.Context, url string) ([]fetch.Item, error) { return nil, nil }

type fakeLLM struct {
	result *llmprovider.DiscoveredResponseResult
	calls  int
}

func (f *fakeLLM) FindResponses(ctx context.Context, tensionWhatWouldHelp, hitText string) (*llmprovider.DiscoveredResponseResult, error) {
	f.calls++
	return f.result, nil
}

func seedTension(t *testing.T, mem *store.Memory, city, id string) *graph.Signal {
	t.Helper()
	help := "a warming shelter"
	s := &graph.Signal{ID: id, City: city, Variant: graph.VariantTension, Title: "Residents need shelter", WhatWouldHelp: &help}
	_, err := mem.CreateSignal(context.Background(), s, nil)
	require.NoError(t, err)
	return s
}

func TestRunLinksDiscoveredResponseToTension(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	tension := seedTension(t, mem, city.CityKey, "tension_1")

	caps := &fakeCaps{hits: []fetch.Hit{{URL: "https://aidnews.example/a", Title: "Church opens warming shelter", Snippet: "open nightly"}}}
	llm := &fakeLLM{result: &llmprovider.DiscoveredResponseResult{Responses: []llmprovider.DiscoveredResponse{
		{Variant: "aid", Title: "Church warming shelter", Summary: "nightly shelter", MatchStrength: 0.9, Explanation: "directly answers the need"},
	}}}
	finder := &Finder{Store: mem, Caps: caps, LLM: llm}

	stats, err := finder.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 1, stats.Attempted)
	require.Equal(t, 1, stats.Succeeded)

	aidSignals, err := mem.ListSignalsByVariant(context.Background(), city.CityKey, graph.VariantAid)
	require.NoError(t, err)
	require.Len(t, aidSignals, 1)

	briefs, err := mem.ListTensionBriefs(context.Background(), city.CityKey)
	require.NoError(t, err)
	var gotCount int
	for _, b := range briefs {
		if b.Signal.ID == tension.ID {
			gotCount = b.ResponseCount
		}
	}
	require.Equal(t, 1, gotCount)
}

func TestRunDropsMalformedVariant(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	seedTension(t, mem, city.CityKey, "tension_1")

	caps := &fakeCaps{hits: []fetch.Hit{{URL: "https://aidnews.example/a", Title: "x", Snippet: "y"}}}
	llm := &fakeLLM{result: &llmprovider.DiscoveredResponseResult{Responses: []llmprovider.DiscoveredResponse{
		{Variant: "tension", Title: "not a response", Summary: "bad", MatchStrength: 0.9},
	}}}
	finder := &Finder{Store: mem, Caps: caps, LLM: llm}

	stats, err := finder.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 0, stats.Succeeded)
}

func TestRunSkipsAlreadyRespondedTensions(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	seedTension(t, mem, city.CityKey, "tension_1")
	require.NoError(t, mem.LinkRespondsTo(context.Background(), "some_responder", "tension_1", 0.8, "already answered"))

	llm := &fakeLLM{}
	finder := &Finder{Store: mem, Caps: &fakeCaps{}, LLM: llm}

	stats, err := finder.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 0, stats.Attempted)
	require.Equal(t, 0, llm.calls)
}
