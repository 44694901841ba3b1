package investigate

import (
	"context"
	"testing"
	"time"

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
		budget.ClassWebSearch: 1, budget.ClassInvestigation: 1,
	})
}

type fakeCaps struct {
	hits map[string][]fetch.Hit
	err  error
}

func (f *fakeCaps) FetchURL(ctx context.Context, url string) (*fetch.RawPage, error) { return nil, nil }
func (f *fakeCaps) SearchWeb(ctx context.Context, query string) ([]fetch.Hit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.hits[query], nil
}
func (f *fakeCaps) FetchSocial(ctx context.Context, platform, handle string, n int) ([]fetch.Post, error) {
	return nil, nil
}
func (f *fakeCaps) FetchRSS(ctx context.Context, url string) ([]fetch.Item, error) { return nil, nil }

type fakeLLM struct {
	judgment *llmprovider.RelevanceJudgment
	err      error
	calls    int
}

func (f *fakeLLM) JudgeRelevance(ctx context.Context, targetSummary, hitText string) (*llmprovider.RelevanceJudgment, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.judgment, nil
}

func seedUninvestigated(t *testing.T, mem *store.Memory, city, id, title string) *graph.Signal {
	t.Helper()
	s := &graph.Signal{
		ID: id, City: city, Variant: graph.VariantTension, Title: title,
		Summary: "a problem", Confidence: 0.7, SourceURL: "https://origin-news.example/story",
	}
	_, err := mem.CreateSignal(context.Background(), s, &graph.Evidence{ID: "ev_" + id, URL: s.SourceURL})
	require.NoError(t, err)
	return s
}

func TestRunCorroboratesOnRelevantHit(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	s := seedUninvestigated(t, mem, city.CityKey, "sig_1", "Overflowing dumpster on Elm Street")

	caps := &fakeCaps{hits: map[string][]fetch.Hit{
		"Overflowing dumpster on Elm Street Springfield": {
			{URL: "https://othernews.example/a", Title: "Elm Street trash pileup", Snippet: "residents complain"},
		},
	}}
	llm := &fakeLLM{judgment: &llmprovider.RelevanceJudgment{Relevance: 0.9, Supports: true}}
	inv := &Investigator{Store: mem, Caps: caps, LLM: llm}

	stats, err := inv.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 1, stats.Attempted)
	require.Equal(t, 1, stats.Succeeded)
	require.Equal(t, 1, llm.calls)

	got, err := mem.GetSignal(context.Background(), s.ID)
	require.NoError(t, err)
	require.Equal(t, 1, got.CorroborationCount)
	require.NotNil(t, got.InvestigatedAt)
}

func TestRunSkipsSameDomainHits(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	seedUninvestigated(t, mem, city.CityKey, "sig_1", "Overflowing dumpster on Elm Street")

	caps := &fakeCaps{hits: map[string][]fetch.Hit{
		"Overflowing dumpster on Elm Street Springfield": {
			{URL: "https://origin-news.example/other-story", Title: "same outlet", Snippet: "x"},
		},
	}}
	llm := &fakeLLM{judgment: &llmprovider.RelevanceJudgment{Relevance: 0.95, Supports: true}}
	inv := &Investigator{Store: mem, Caps: caps, LLM: llm}

	stats, err := inv.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 0, stats.Succeeded)
	require.Equal(t, 0, llm.calls, "same-domain hits must never reach the relevance judge")
}

func TestRunAlwaysStampsInvestigatedAtEvenWithoutCorroboration(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	s := seedUninvestigated(t, mem, city.CityKey, "sig_1", "Overflowing dumpster on Elm Street")

	caps := &fakeCaps{}
	llm := &fakeLLM{}
	inv := &Investigator{Store: mem, Caps: caps, LLM: llm}

	_, err := inv.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)

	got, err := mem.GetSignal(context.Background(), s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InvestigatedAt)
}

func TestRunRespectsCooldown(t *testing.T) {
	mem := store.NewMemory()
	city := testCity()
	s := seedUninvestigated(t, mem, city.CityKey, "sig_1", "Overflowing dumpster on Elm Street")
	require.NoError(t, mem.MarkInvestigated(context.Background(), s.ID, time.Now()))

	llm := &fakeLLM{}
	inv := &Investigator{Store: mem, Caps: &fakeCaps{}, LLM: llm}

	stats, err := inv.Run(context.Background(), city, testMeter(1000))
	require.NoError(t, err)
	require.Equal(t, 0, stats.Attempted, "a just-investigated signal should not be selected again within the cooldown")
}

func TestStripSensitiveTermsRemovesEnforcementVocabulary(t *testing.T) {
	q := stripSensitiveTerms("tenant arrested after legal action springfield")
	require.NotContains(t, q, "arrested")
	require.NotContains(t, q, "legal action")
}
