package similarity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/graph/store"
)

func seedEmbedded(t *testing.T, mem *store.Memory, n int, city string) {
	t.Helper()
	for i := 0; i < n; i++ {
		s := &graph.Signal{
			ID:         "sig_" + string(rune('a'+i)),
			City:       city,
			Variant:    graph.VariantTension,
			Title:      "t",
			Confidence: 0.8,
			Embedding:  []float32{1, 0, 0},
		}
		_, err := mem.CreateSignal(context.Background(), s, nil)
		require.NoError(t, err)
		require.NoError(t, mem.UpdateSignalEmbedding(context.Background(), s.ID, s.Embedding))
	}
}

func TestBuildSkipsBelowMinimumSignalCount(t *testing.T) {
	mem := store.NewMemory()
	seedEmbedded(t, mem, 3, "springfield")

	b := NewBuilder(mem)
	report, err := b.Build(context.Background(), "springfield")
	require.NoError(t, err)
	require.True(t, report.Skipped)
	require.Equal(t, 0, report.EdgesWritten)
}

func TestBuildWritesEdgesAboveThreshold(t *testing.T) {
	mem := store.NewMemory()
	seedEmbedded(t, mem, 10, "springfield")

	b := NewBuilder(mem)
	report, err := b.Build(context.Background(), "springfield")
	require.NoError(t, err)
	require.False(t, report.Skipped)
	require.Greater(t, report.EdgesWritten, 0)
}
