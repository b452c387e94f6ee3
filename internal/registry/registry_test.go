package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeRegistryFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "locations.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	reg, err := Load(Options{})
	require.NoError(t, err)
	require.Equal(t, 8, reg.Len())

	chicago, ok := reg.Lookup("Chicago")
	require.True(t, ok)
	require.Equal(t, "KXHIGHCHI", chicago.SeriesID)
	require.Equal(t, "America/Chicago", chicago.Timezone)
	require.NotEmpty(t, chicago.StationID)

	_, ok = reg.Lookup("Atlantis")
	require.False(t, ok)
}

func TestLoadDerivesWeatherID(t *testing.T) {
	path := writeRegistryFile(t, `[
		{"name": "Chicago", "latitude": 41.7868, "longitude": -87.7522,
		 "series_id": "KXHIGHCHI", "station_id": "MDW", "timezone": "America/Chicago"}
	]`)

	reg, err := Load(Options{Path: path})
	require.NoError(t, err)

	e, ok := reg.Lookup("Chicago")
	require.True(t, ok)
	require.Equal(t, e.IdentityHash(), e.WeatherID)
}

func TestLoadKeepsExplicitWeatherID(t *testing.T) {
	path := writeRegistryFile(t, `[
		{"name": "Chicago", "latitude": 41.7868, "longitude": -87.7522,
		 "series_id": "KXHIGHCHI", "station_id": "MDW", "timezone": "America/Chicago",
		 "weather_id": "fixed-id"}
	]`)

	reg, err := Load(Options{Path: path})
	require.NoError(t, err)

	e, _ := reg.Lookup("Chicago")
	require.Equal(t, "fixed-id", e.WeatherID)
}

func TestIdentityHashStability(t *testing.T) {
	a := LocationEntry{Name: "Chicago", Latitude: 41.7868, Longitude: -87.7522,
		SeriesID: "KXHIGHCHI", StationID: "MDW", Timezone: "America/Chicago"}
	b := a
	require.Equal(t, a.IdentityHash(), b.IdentityHash())

	b.StationID = "ORD"
	require.NotEqual(t, a.IdentityHash(), b.IdentityHash())
}

func TestLoadRejectsInvalidTimezone(t *testing.T) {
	path := writeRegistryFile(t, `[
		{"name": "Chicago", "latitude": 41.7868, "longitude": -87.7522,
		 "series_id": "KXHIGHCHI", "station_id": "MDW", "timezone": "America/Nowhere"}
	]`)

	_, err := Load(Options{Path: path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid timezone")
}

func TestLoadRejectsDuplicateNames(t *testing.T) {
	path := writeRegistryFile(t, `[
		{"name": "Chicago", "latitude": 41.7868, "longitude": -87.7522,
		 "series_id": "KXHIGHCHI", "station_id": "MDW", "timezone": "America/Chicago"},
		{"name": "Chicago", "latitude": 41.9, "longitude": -87.6,
		 "series_id": "KXHIGHCHI2", "station_id": "ORD", "timezone": "America/Chicago"}
	]`)

	_, err := Load(Options{Path: path})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsMissingFields(t *testing.T) {
	path := writeRegistryFile(t, `[
		{"name": "Chicago", "latitude": 41.7868, "longitude": -87.7522,
		 "series_id": "", "station_id": "MDW", "timezone": "America/Chicago"}
	]`)

	_, err := Load(Options{Path: path})
	require.Error(t, err)
}

func TestLoadRejectsEmptyRegistry(t *testing.T) {
	path := writeRegistryFile(t, `[]`)
	_, err := Load(Options{Path: path})
	require.Error(t, err)
}

func TestZoneResolution(t *testing.T) {
	e := LocationEntry{Name: "Denver", Timezone: "America/Denver"}
	zone, err := e.Zone()
	require.NoError(t, err)
	require.Equal(t, "America/Denver", zone.String())
}
