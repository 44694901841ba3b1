package dedup

import (
	"context"

	"github.com/civic-scout/scout/pkg/graph"
)

// titleStore is the narrow store surface layer 2 needs.
type titleStore interface {
	FindDuplicateByTitle(ctx context.Context, variant graph.Variant, normalizedTitle, url string) (string, error)
	GetSignal(ctx context.Context, id string) (*graph.Signal, error)
}

// layer2Result is what URL-scoped/global-title matching decided.
type layer2Result int

const (
	layer2None layer2Result = iota
	// layer2Refresh: same variant + same source_url + matching title —
	// treat as a refresh, no corroboration.
	layer2Refresh
	// layer2Corroborate: same variant + exact global title match from a
	// different URL — corroborate.
	layer2Corroborate
)

// checkLayer2 implements §4.5 layer 2. FindDuplicateByTitle tries a
// same-source_url + prefix-matching-title match first (refresh), then
// falls back to a global exact-title match (corroborate); the
// distinction between the two then comes down to whether the matched
// signal's own source_url equals the candidate's.
func checkLayer2(ctx context.Context, st titleStore, variant graph.Variant, title, sourceURL string) (layer2Result, string, error) {
	normalized := NormalizeTitle(title)

	id, err := st.FindDuplicateByTitle(ctx, variant, normalized, sourceURL)
	if err != nil {
		return layer2None, "", err
	}
	if id == "" {
		return layer2None, "", nil
	}

	matched, err := st.GetSignal(ctx, id)
	if err != nil {
		return layer2None, "", err
	}

	if sourceURL != "" && matched.SourceURL == sourceURL {
		return layer2Refresh, id, nil
	}
	return layer2Corroborate, id, nil
}
