package budget

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasBudgetReflectsRemaining(t *testing.T) {
	m := NewMeter(10, map[Class]int{ClassExtraction: 4})
	require.True(t, m.HasBudget(ClassExtraction))
	m.Charge(ClassExtraction)
	m.Charge(ClassExtraction)
	assert.False(t, m.HasBudget(ClassExtraction), "8 spent + 4 cost exceeds a cap of 10")
}

func TestChargeIsASoftCapAndGoesNegative(t *testing.T) {
	m := NewMeter(5, map[Class]int{ClassEmbedding: 3})
	m.Charge(ClassEmbedding)
	remaining := m.Charge(ClassEmbedding)
	assert.Equal(t, int64(-1), remaining, "charging is permitted past the cap")
}

func TestSnapshotTracksPerClassTotals(t *testing.T) {
	m := NewMeter(100, map[Class]int{ClassExtraction: 2, ClassWebSearch: 5})
	m.Charge(ClassExtraction)
	m.Charge(ClassExtraction)
	m.Charge(ClassWebSearch)

	snap := m.Snapshot()
	assert.Equal(t, int64(9), snap.SpentCents)
	assert.Equal(t, int64(91), snap.RemainingCents)
	assert.Equal(t, int64(4), snap.PerClassTotals[ClassExtraction])
	assert.Equal(t, int64(5), snap.PerClassTotals[ClassWebSearch])
}

func TestUnknownClassDefaultsToOneCent(t *testing.T) {
	m := NewMeter(10, nil)
	remaining := m.Charge(Class("unlisted"))
	assert.Equal(t, int64(9), remaining)
}
