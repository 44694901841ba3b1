package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testProfileYAML = `
city_key: springfield
display_name: Springfield
center_lat: 39.78
center_lng: -89.65
radius_km: 25
geo_terms: ["Springfield"]
curated_sources:
  - url: https://example.org/feed
    kind: static
seed_queries: ["mutual aid"]
budget:
  run_cents: 1500
`

func writeProfile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestInitializeLoadsAllProfilesInDirectory(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "springfield.yaml", testProfileYAML)

	reg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	defer reg.Close()

	profile, err := reg.Get("springfield")
	require.NoError(t, err)
	assert.Equal(t, "Springfield", profile.DisplayName)
	assert.Equal(t, int64(1500), profile.Budget.RunCents)
	assert.Equal(t, 2, profile.Budget.ClassOverride["extraction"], "unset classes fall back to system defaults")
}

func TestInitializeRejectsDuplicateCityKey(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "a.yaml", testProfileYAML)
	writeProfile(t, dir, "b.yaml", testProfileYAML)

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDuplicateCityKey)
}

func TestInitializeRejectsInvalidProfile(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "broken.yaml", "city_key: broken\n")

	_, err := Initialize(context.Background(), dir)
	require.Error(t, err)
}

func TestRegistryListIsSortedByCityKey(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "b.yaml", testProfileYAML)
	second := `
city_key: aardvark
display_name: Aardvark City
center_lat: 1
center_lng: 1
radius_km: 10
budget:
  run_cents: 1000
`
	writeProfile(t, dir, "a.yaml", second)

	reg, err := Initialize(context.Background(), dir)
	require.NoError(t, err)
	defer reg.Close()

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "aardvark", list[0].CityKey)
	assert.Equal(t, "springfield", list[1].CityKey)
}
