// Package similarity builds SIMILAR_TO edges across a city's embedded
// signals (§4.11).
package similarity

import (
	"context"
	"fmt"
	"math"

	"github.com/civic-scout/scout/pkg/graph"
)

// minSignalsForBuild: skip entirely when fewer than this many signals
// have embeddings (§4.11).
const minSignalsForBuild = 10

// cosineThreshold is the threshold in cosine space the weighted
// formula is applied against (§4.11: "weight ≥ 0.65 · conf_min", a
// threshold on cosine, not on the resulting weight).
const cosineThreshold = 0.65

// edgeStore is the narrow store surface the builder needs.
type edgeStore interface {
	ListEmbeddedSignals(ctx context.Context, city string) ([]*graph.Signal, error)
	UpsertSimilarityEdge(ctx context.Context, aID, bID string, weight float64) error
}

// Builder runs §4.11 for one city.
type Builder struct {
	store edgeStore
}

// NewBuilder constructs a Builder.
func NewBuilder(store edgeStore) *Builder {
	return &Builder{store: store}
}

// Report summarizes one build pass.
type Report struct {
	SignalsConsidered int
	EdgesWritten      int
	Skipped           bool
}

// Build fetches every embedded signal for city in one batch and writes
// a SIMILAR_TO edge for every ordered pair whose cosine similarity
// clears the threshold, weighted by cosine · √(conf_a·conf_b).
func (b *Builder) Build(ctx context.Context, city string) (Report, error) {
	signals, err := b.store.ListEmbeddedSignals(ctx, city)
	if err != nil {
		return Report{}, fmt.Errorf("similarity: list embedded signals: %w", err)
	}
	if len(signals) < minSignalsForBuild {
		return Report{SignalsConsidered: len(signals), Skipped: true}, nil
	}

	written := 0
	for i := 0; i < len(signals); i++ {
		for j := i + 1; j < len(signals); j++ {
			a, c := signals[i], signals[j]
			cos := cosineSimilarity(a.Embedding, c.Embedding)
			if cos < cosineThreshold {
				continue
			}
			weight := cos * math.Sqrt(a.Confidence*c.Confidence)
			if err := b.store.UpsertSimilarityEdge(ctx, a.ID, c.ID, weight); err != nil {
				return Report{}, fmt.Errorf("similarity: upsert edge %s/%s: %w", a.ID, c.ID, err)
			}
			written++
		}
	}

	return Report{SignalsConsidered: len(signals), EdgesWritten: written}, nil
}

// cosineSimilarity computes cosine similarity over equal-length
// vectors; mismatched lengths or zero vectors yield 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
