package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
)

func newTestSignal(city string, variant graph.Variant, title, sourceURL string) *graph.Signal {
	return &graph.Signal{
		ID:        "sig_" + title,
		City:      city,
		Variant:   variant,
		Title:     title,
		SourceURL: sourceURL,
	}
}

func TestLayer1DropsExactWithinBatchDuplicate(t *testing.T) {
	mem := store.NewMemory()
	stack := NewStack(mem, NewBatchSet(), NewEmbeddingCache(), nil)

	d1, err := stack.Decide(context.Background(), graph.VariantNotice, "Water Main Break", "https://a.example.org/1", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeNew, d1.Outcome)

	d2, err := stack.Decide(context.Background(), graph.VariantNotice, "water main break", "https://a.example.org/2", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeDropExact, d2.Outcome)
}

func TestLayer2RefreshesSameURLMatch(t *testing.T) {
	mem := store.NewMemory()
	existing := newTestSignal("springfield", graph.VariantNotice, "Road Closure", "https://city.example.org/notice/1")
	_, err := mem.CreateSignal(context.Background(), existing, nil)
	require.NoError(t, err)

	stack := NewStack(mem, NewBatchSet(), NewEmbeddingCache(), nil)
	d, err := stack.Decide(context.Background(), graph.VariantNotice, "Road Closure", "https://city.example.org/notice/1", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeRefresh, d.Outcome)
	require.Equal(t, existing.ID, d.MatchedID)
}

func TestLayer2CorroboratesCrossURLExactTitle(t *testing.T) {
	mem := store.NewMemory()
	existing := newTestSignal("springfield", graph.VariantNotice, "Road Closure", "https://city.example.org/notice/1")
	_, err := mem.CreateSignal(context.Background(), existing, nil)
	require.NoError(t, err)

	stack := NewStack(mem, NewBatchSet(), NewEmbeddingCache(), nil)
	d, err := stack.Decide(context.Background(), graph.VariantNotice, "Road Closure", "https://othernews.example.org/a", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeCorroborate, d.Outcome)
	require.Equal(t, existing.ID, d.MatchedID)
}

func TestLayer2SameURLDifferentTitleIsNotAMatch(t *testing.T) {
	mem := store.NewMemory()
	existing := newTestSignal("springfield", graph.VariantNotice, "Road Closure", "https://city.example.org/notice/1")
	_, err := mem.CreateSignal(context.Background(), existing, nil)
	require.NoError(t, err)

	stack := NewStack(mem, NewBatchSet(), NewEmbeddingCache(), nil)
	d, err := stack.Decide(context.Background(), graph.VariantNotice, "Water Main Break", "https://city.example.org/notice/1", nil)
	require.NoError(t, err)
	require.Equal(t, OutcomeNew, d.Outcome, "same source_url alone must not refresh or corroborate an unrelated title")
}

func TestLayer3RefreshesSameEntityHighCosine(t *testing.T) {
	mem := store.NewMemory()
	stack := NewStack(mem, NewBatchSet(), NewEmbeddingCache(), nil)

	embA := []float32{1, 0, 0}
	stack.RememberEmbedding(graph.VariantTension, "sig_a", embA, "https://a.example.org/1")

	d, err := stack.Decide(context.Background(), graph.VariantTension, "A slightly different title", "https://a.example.org/2", []float32{0.99, 0.01, 0})
	require.NoError(t, err)
	require.Equal(t, OutcomeRefresh, d.Outcome)
}

func TestLayer3CorroboratesDifferentEntityVeryHighCosine(t *testing.T) {
	mem := store.NewMemory()
	stack := NewStack(mem, NewBatchSet(), NewEmbeddingCache(), nil)

	embA := []float32{1, 0, 0}
	stack.RememberEmbedding(graph.VariantTension, "sig_a", embA, "https://a.example.org/1")

	d, err := stack.Decide(context.Background(), graph.VariantTension, "A wholly different title", "https://otherdomain.example.org/9", []float32{0.999, 0.01, 0})
	require.NoError(t, err)
	require.Equal(t, OutcomeCorroborate, d.Outcome)
}
