package config

import (
	"fmt"

	"dario.cat/mergo"
)

// MergeProfile overlays a non-zero-valued override profile onto a base
// profile, following the teacher's "user-defined overrides built-in"
// pattern in merge.go/loader.go but generalized to a single mergo.Merge
// call instead of one hand-rolled merge function per entity kind. Slices
// (CuratedSources, SeedQueries, ...) are replaced wholesale when the
// override sets them, matching mergo's default slice semantics.
func MergeProfile(base, override *CityProfile) (*CityProfile, error) {
	if base == nil {
		return nil, fmt.Errorf("merge profile: base profile is nil")
	}
	if override == nil {
		copy := *base
		return &copy, nil
	}

	merged := *base
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge profile %q: %w", base.CityKey, err)
	}
	return &merged, nil
}

// MergeBudget overlays non-zero override class costs onto a base budget,
// preserving any base class the override does not mention.
func MergeBudget(base, override BudgetConfig) BudgetConfig {
	merged := BudgetConfig{
		RunCents:      base.RunCents,
		ClassOverride: make(map[string]int, len(base.ClassOverride)),
	}
	for class, cost := range base.ClassOverride {
		merged.ClassOverride[class] = cost
	}
	if override.RunCents != 0 {
		merged.RunCents = override.RunCents
	}
	for class, cost := range override.ClassOverride {
		merged.ClassOverride[class] = cost
	}
	return merged
}
