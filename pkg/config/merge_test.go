package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeProfileOverridesNonZeroFields(t *testing.T) {
	base := validProfile()
	override := &CityProfile{RadiusKM: 40, SeedQueries: []string{"mutual aid"}}

	merged, err := MergeProfile(base, override)
	require.NoError(t, err)

	assert.Equal(t, base.CityKey, merged.CityKey, "unset override fields keep the base value")
	assert.Equal(t, 40.0, merged.RadiusKM, "non-zero override fields win")
	assert.Equal(t, []string{"mutual aid"}, merged.SeedQueries)
}

func TestMergeProfileNilOverrideReturnsCopyOfBase(t *testing.T) {
	base := validProfile()
	merged, err := MergeProfile(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base.CityKey, merged.CityKey)
	assert.NotSame(t, base, merged)
}

func TestMergeBudgetPreservesUnmentionedClasses(t *testing.T) {
	base := BudgetConfig{RunCents: 2000, ClassOverride: map[string]int{"extraction": 2, "embedding": 1}}
	override := BudgetConfig{ClassOverride: map[string]int{"extraction": 5}}

	merged := MergeBudget(base, override)

	assert.Equal(t, int64(2000), merged.RunCents, "override run_cents of 0 does not clobber base")
	assert.Equal(t, 5, merged.ClassOverride["extraction"])
	assert.Equal(t, 1, merged.ClassOverride["embedding"], "base-only classes survive the merge")
}
