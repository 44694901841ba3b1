package dedup

import (
	"context"
	"math"
	"net/url"
	"strings"
	"sync"

	"github.com/civic-scout/scout/pkg/graph"
)

// §4.5 layer 3 thresholds.
const (
	refreshCosineThreshold     = 0.85
	corroborateCosineThreshold = 0.92
)

// vectorStore is the narrow store surface layer 3 needs.
type vectorStore interface {
	FindDuplicateByVector(ctx context.Context, variant graph.Variant, embedding []float32, k int, threshold float64) (*graph.DuplicateMatch, error)
	GetSignal(ctx context.Context, id string) (*graph.Signal, error)
}

// EmbeddingCache holds embeddings produced earlier in the same run so
// that two near-duplicate posts fetched in the same batch deduplicate
// without waiting for the graph's vector index to settle (§4.5 layer 3).
// Safe for concurrent use.
type EmbeddingCache struct {
	mu      sync.Mutex
	entries map[graph.Variant][]cacheEntry
}

type cacheEntry struct {
	signalID     string
	embedding    []float32
	entityDomain string
}

// NewEmbeddingCache constructs an empty cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{entries: make(map[graph.Variant][]cacheEntry)}
}

// Put records a persisted signal's embedding for later in-batch lookups.
func (c *EmbeddingCache) Put(variant graph.Variant, signalID string, embedding []float32, entityDomain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[variant] = append(c.entries[variant], cacheEntry{signalID: signalID, embedding: embedding, entityDomain: entityDomain})
}

// nearest returns the highest-cosine entry of the same variant, or ok =
// false if the cache holds nothing for that variant yet.
func (c *EmbeddingCache) nearest(variant graph.Variant, embedding []float32) (cacheEntry, float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var best cacheEntry
	bestCosine := -1.0
	found := false
	for _, e := range c.entries[variant] {
		cos := cosineSimilarity(embedding, e.embedding)
		if cos > bestCosine {
			bestCosine = cos
			best = e
			found = true
		}
	}
	return best, bestCosine, found
}

// cosineSimilarity computes cosine similarity between two equal-length
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

// entityDomain derives the comparable "entity" behind a signal's source
// URL — the registrable host, stripped of a leading "www." — matching
// pkg/graph/store's own SQL derivation so in-memory and graph-backed
// dedup agree on what counts as "the same source".
func entityDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return strings.ToLower(rawURL)
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}

// layer3Decision is what vector similarity decided.
type layer3Decision int

const (
	layer3New layer3Decision = iota
	layer3RefreshOnly
	layer3Corroborate
)

// checkLayer3 implements §4.5 layer 3: consult the in-batch cache first,
// then the graph's vector index, applying the refresh/corroborate/new
// thresholds against whichever neighbor is closer.
func checkLayer3(ctx context.Context, st vectorStore, cache *EmbeddingCache, variant graph.Variant, embedding []float32, candidateSourceURL string) (layer3Decision, string, error) {
	candidateDomain := entityDomain(candidateSourceURL)

	var bestID string
	var bestCosine float64
	var bestSameSource bool
	haveMatch := false

	if entry, cosine, ok := cache.nearest(variant, embedding); ok {
		bestID, bestCosine = entry.signalID, cosine
		bestSameSource = entry.entityDomain == candidateDomain
		haveMatch = true
	}

	match, err := st.FindDuplicateByVector(ctx, variant, embedding, 5, refreshCosineThreshold)
	if err != nil {
		return layer3New, "", err
	}
	if match != nil && (!haveMatch || match.Cosine > bestCosine) {
		matchedSignal, err := st.GetSignal(ctx, match.ID)
		if err != nil {
			return layer3New, "", err
		}
		bestID = match.ID
		bestCosine = match.Cosine
		bestSameSource = entityDomain(matchedSignal.SourceURL) == candidateDomain
		haveMatch = true
	}

	if !haveMatch {
		return layer3New, "", nil
	}

	switch {
	case bestCosine >= corroborateCosineThreshold && !bestSameSource:
		return layer3Corroborate, bestID, nil
	case bestCosine >= refreshCosineThreshold && bestSameSource:
		return layer3RefreshOnly, bestID, nil
	default:
		return layer3New, "", nil
	}
}
