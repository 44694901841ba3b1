package dedup

import "github.com/civic-scout/scout/pkg/graph"

// batchKey is the layer-1 exact-match key: normalized title + variant.
type batchKey struct {
	title   string
	variant graph.Variant
}

// BatchSet is the within-batch exact-dedup set a single Scout run
// maintains across every candidate it persists (§4.5 layer 1). It is
// not safe for concurrent use — callers run persistence for one run
// sequentially per city.
type BatchSet struct {
	seen map[batchKey]bool
}

// NewBatchSet constructs an empty BatchSet.
func NewBatchSet() *BatchSet {
	return &BatchSet{seen: make(map[batchKey]bool)}
}

// SeenExact reports whether (normalizedTitle, variant) has already been
// recorded in this batch, and records it if not — the first call for a
// given key always returns false.
func (b *BatchSet) SeenExact(title string, variant graph.Variant) bool {
	key := batchKey{title: NormalizeTitle(title), variant: variant}
	if b.seen[key] {
		return true
	}
	b.seen[key] = true
	return false
}
