package extract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civic-scout/scout/pkg/config"
	"github.com/civic-scout/scout/pkg/fetch"
	"github.com/civic-scout/scout/pkg/graph"
	"github.com/civic-scout/scout/pkg/llmprovider"
)

type fakeLLM struct {
	result *llmprovider.ExtractionResult
	err    error
}

func (f *fakeLLM) ExtractSignals(ctx context.Context, pageText string) (*llmprovider.ExtractionResult, error) {
	return f.result, f.err
}

func testCity() config.CityProfile {
	return config.CityProfile{
		CityKey:   "springfield",
		CenterLat: 40.0,
		CenterLng: -74.0,
		RadiusKM:  25,
		GeoTerms:  []string{"downtown", "riverside"},
	}
}

func TestExtractDropsHallucinatedVariant(t *testing.T) {
	llm := &fakeLLM{result: &llmprovider.ExtractionResult{Signals: []llmprovider.ExtractedSignal{
		{Variant: "festival", Title: "Not a real variant", Summary: "x", Sensitivity: "normal"},
	}}}
	e := NewExtractor(llm)
	out, err := e.Extract(context.Background(), &fetch.RawPage{Body: "x", FetchedAt: time.Now()}, "https://example.org/a", testCity())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExtractSnapsEchoedCityCenterCoordinates(t *testing.T) {
	lat, lng := 40.0001, -74.0001
	llm := &fakeLLM{result: &llmprovider.ExtractionResult{Signals: []llmprovider.ExtractedSignal{
		{Variant: "notice", Title: "Water main notice", Summary: "x", Sensitivity: "normal", Lat: &lat, Lng: &lng},
	}}}
	e := NewExtractor(llm)
	out, err := e.Extract(context.Background(), &fetch.RawPage{Body: "x", FetchedAt: time.Now()}, "https://example.org/a", testCity())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Lat)
	assert.Equal(t, graph.GeoPrecisionCity, out[0].GeoPrecision)
}

func TestExtractRejectsOutOfRadiusCoordinates(t *testing.T) {
	lat, lng := 55.0, -74.0
	llm := &fakeLLM{result: &llmprovider.ExtractionResult{Signals: []llmprovider.ExtractedSignal{
		{Variant: "gathering", Title: "Far away event", Summary: "x", Sensitivity: "normal", Lat: &lat, Lng: &lng},
	}}}
	e := NewExtractor(llm)
	out, err := e.Extract(context.Background(), &fetch.RawPage{Body: "x", FetchedAt: time.Now()}, "https://example.org/a", testCity())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestExtractNeverDefaultsUnknownStartsAtToNow(t *testing.T) {
	llm := &fakeLLM{result: &llmprovider.ExtractionResult{Signals: []llmprovider.ExtractedSignal{
		{Variant: "gathering", Title: "Community cleanup", Summary: "x", Sensitivity: "normal"},
	}}}
	e := NewExtractor(llm)
	out, err := e.Extract(context.Background(), &fetch.RawPage{Body: "x", FetchedAt: time.Now()}, "https://example.org/a", testCity())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].StartsAt)
}

func TestExtractWrapsLLMFailure(t *testing.T) {
	llm := &fakeLLM{err: assert.AnError}
	e := NewExtractor(llm)
	_, err := e.Extract(context.Background(), &fetch.RawPage{Body: "x", FetchedAt: time.Now()}, "https://example.org/a", testCity())
	assert.ErrorIs(t, err, ErrExtractionFailed)
}
