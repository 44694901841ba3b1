package extract

import "github.com/civic-scout/scout/pkg/graph"

// validVariants is the closed set of signal variants the extractor is
// allowed to emit (§3). Anything else is almost certainly a
// hallucinated category and should be dropped rather than persisted.
var validVariants = map[graph.Variant]bool{
	graph.VariantGathering: true,
	graph.VariantAid:       true,
	graph.VariantNeed:      true,
	graph.VariantNotice:    true,
	graph.VariantTension:   true,
}

// ValidVariant reports whether v is one of the five signal variants.
func ValidVariant(v graph.Variant) bool {
	return validVariants[v]
}
