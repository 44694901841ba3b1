package config

// CuratedSourceKind selects how a curated source is fetched.
type CuratedSourceKind string

// Curated source kinds.
const (
	CuratedSourceStatic   CuratedSourceKind = "static"
	CuratedSourceHeadless CuratedSourceKind = "headless"
)

// CuratedSource is a seed source immune to dead-source deactivation.
type CuratedSource struct {
	URL  string            `yaml:"url" validate:"required,url"`
	Kind CuratedSourceKind `yaml:"kind,omitempty" validate:"omitempty,oneof=static headless"`
}

// EntityMapping seeds an Actor from a known domain.
type EntityMapping struct {
	Domain   string `yaml:"domain" validate:"required"`
	Name     string `yaml:"name" validate:"required"`
	EntityID string `yaml:"entity_id,omitempty"`
}

// BudgetConfig is the per-run soft cost cap and named class overrides.
type BudgetConfig struct {
	RunCents      int64          `yaml:"run_cents" validate:"required,min=1"`
	ClassOverride map[string]int `yaml:"class_override_cents,omitempty"`
}

// CityProfile is the declarative configuration bundle for one city (§6).
type CityProfile struct {
	CityKey     string  `yaml:"city_key" validate:"required"`
	DisplayName string  `yaml:"display_name" validate:"required"`
	CenterLat   float64 `yaml:"center_lat" validate:"required,latitude"`
	CenterLng   float64 `yaml:"center_lng" validate:"required,longitude"`
	RadiusKM    float64 `yaml:"radius_km" validate:"required,gt=0"`

	GeoTerms []string `yaml:"geo_terms,omitempty"`

	CuratedSources []CuratedSource `yaml:"curated_sources,omitempty" validate:"dive"`

	SeedQueries       []string `yaml:"seed_queries,omitempty"`
	SeedHashtags      []string `yaml:"seed_hashtags,omitempty"`
	SeedSocialAccount []string `yaml:"seed_social_accounts,omitempty"`

	EntityMappings []EntityMapping `yaml:"entity_mappings,omitempty" validate:"dive"`

	Budget BudgetConfig `yaml:"budget" validate:"required"`
}

// GeoEpsilonDegrees is the tolerance used to snap-and-null echoed default
// coordinates (§4.4). Roughly 0.02 degrees, matching spec.md's ε.
const GeoEpsilonDegrees = 0.02
