package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApplyGeoFilterSnapsEchoedCityCenter(t *testing.T) {
	verdict := applyGeoFilter(40.7128, -74.0001, 40.7130, -74.0, 50, 0.02)
	assert.Equal(t, geoSnapNull, verdict)
}

func TestApplyGeoFilterRejectsOutsideRadius(t *testing.T) {
	verdict := applyGeoFilter(41.5, -74.0, 40.7128, -74.0060, 10, 0.02)
	assert.Equal(t, geoReject, verdict)
}

func TestApplyGeoFilterKeepsWithinRadius(t *testing.T) {
	verdict := applyGeoFilter(40.80, -74.01, 40.7128, -74.0060, 50, 0.02)
	assert.Equal(t, geoKeep, verdict)
}

func TestRecognizedLocationMatchesSubstring(t *testing.T) {
	assert.True(t, recognizedLocation("Downtown", []string{"downtown riverside"}))
	assert.True(t, recognizedLocation("", []string{"downtown"}))
	assert.False(t, recognizedLocation("Mars Colony", []string{"downtown", "riverside"}))
}
