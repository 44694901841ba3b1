package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProfile() *CityProfile {
	return &CityProfile{
		CityKey:     "springfield",
		DisplayName: "Springfield",
		CenterLat:   39.78,
		CenterLng:   -89.65,
		RadiusKM:    25,
		GeoTerms:    []string{"Springfield", "Sangamon County"},
		CuratedSources: []CuratedSource{
			{URL: "https://example.org/feed", Kind: CuratedSourceStatic},
		},
		Budget: DefaultBudgetConfig(),
	}
}

func TestValidateAcceptsWellFormedProfile(t *testing.T) {
	require.NoError(t, Validate(validProfile()))
}

func TestValidateRejectsMissingRequiredFields(t *testing.T) {
	p := validProfile()
	p.CityKey = ""
	err := Validate(p)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestValidateRejectsOutOfRangeRadius(t *testing.T) {
	p := validProfile()
	p.RadiusKM = 0
	require.Error(t, Validate(p))
}

func TestValidateRejectsBadCuratedSourceKind(t *testing.T) {
	p := validProfile()
	p.CuratedSources = []CuratedSource{{URL: "https://example.org", Kind: "smoke-signal"}}
	require.Error(t, Validate(p))
}

func TestValidateRejectsZeroBudget(t *testing.T) {
	p := validProfile()
	p.Budget = BudgetConfig{}
	require.Error(t, Validate(p))
}

func TestValidateRejectsIncompleteEntityMapping(t *testing.T) {
	p := validProfile()
	p.EntityMappings = []EntityMapping{{Domain: "example.org"}}
	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "entity_mapping")
}
