package extract

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/civic-scout/scout/pkg/llmprovider"
)

func TestScoreConfidenceRewardsCompletenessAndFreshness(t *testing.T) {
	lat, lng := 40.0, -74.0
	rich := llmprovider.ExtractedSignal{
		Variant:      "gathering",
		LocationName: "Downtown",
		Lat:          &lat,
		Lng:          &lng,
		StartsAt:     "2026-08-01T12:00:00Z",
		ActionURL:    "https://example.org/rsvp",
	}
	sparse := llmprovider.ExtractedSignal{Variant: "gathering"}

	now := time.Now()
	richScore := scoreConfidence(rich, now)
	sparseScore := scoreConfidence(sparse, now.Add(-60*24*time.Hour))

	assert.Greater(t, richScore, sparseScore)
	assert.LessOrEqual(t, richScore, 1.0)
	assert.GreaterOrEqual(t, sparseScore, 0.0)
}

func TestFreshnessScoreDecaysToZeroAtHorizon(t *testing.T) {
	assert.InDelta(t, 1.0, freshnessScore(time.Now()), 0.01)
	assert.InDelta(t, 0.0, freshnessScore(time.Now().Add(-31*24*time.Hour)), 0.01)
}
