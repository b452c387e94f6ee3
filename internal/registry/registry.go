package registry

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelvins/geocoder"
)

//go:embed locations.json
var defaultLocations []byte

// LocationEntry is one immutable dimension row of the location registry.
// SeriesID links the location to its market series; StationID is the
// provider station/gauge code used by the observation scraper.
type LocationEntry struct {
	Name      string  `json:"name" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	SeriesID  string  `json:"series_id" validate:"required"`
	StationID string  `json:"station_id" validate:"required"`
	Timezone  string  `json:"timezone" validate:"required"`
	WeatherID string  `json:"weather_id"`
}

// IdentityHash derives a stable content hash of the entry's identity fields.
func (e LocationEntry) IdentityHash() string {
	h := sha256.Sum256([]byte(fmt.Sprintf(
		"%s|%.6f|%.6f|%s|%s|%s",
		e.Name, e.Latitude, e.Longitude, e.SeriesID, e.StationID, e.Timezone,
	)))
	return hex.EncodeToString(h[:])
}

// Zone resolves the entry's IANA timezone.
func (e LocationEntry) Zone() (*time.Location, error) {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		return nil, fmt.Errorf("location %q has invalid timezone %q: %w", e.Name, e.Timezone, err)
	}
	return loc, nil
}

// Registry holds the location dimension, loaded once at startup.
// It is read-only after construction; all components share one instance.
type Registry struct {
	entries []LocationEntry
	byName  map[string]LocationEntry
}

// Options controls registry loading.
type Options struct {
	// Path to a JSON file with []LocationEntry. Empty means the embedded
	// default registry.
	Path string

	// GeocoderAPIKey enables coordinate backfill for entries that ship
	// without coordinates. Entries with coordinates are never touched.
	GeocoderAPIKey string
}

// Load reads, validates and freezes the location registry.
func Load(opts Options) (*Registry, error) {
	raw := defaultLocations
	if opts.Path != "" {
		b, err := os.ReadFile(opts.Path)
		if err != nil {
			return nil, fmt.Errorf("read registry file: %w", err)
		}
		raw = b
	}

	var entries []LocationEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("registry is empty")
	}

	validate := validator.New()
	byName := make(map[string]LocationEntry, len(entries))
	for i := range entries {
		e := &entries[i]

		if e.Latitude == 0 && e.Longitude == 0 && opts.GeocoderAPIKey != "" {
			if err := backfillCoordinates(e, opts.GeocoderAPIKey); err != nil {
				return nil, fmt.Errorf("geocode %q: %w", e.Name, err)
			}
		}

		if err := validate.Struct(e); err != nil {
			return nil, fmt.Errorf("invalid registry entry %q: %w", e.Name, err)
		}
		if _, err := e.Zone(); err != nil {
			return nil, err
		}
		if e.WeatherID == "" {
			e.WeatherID = e.IdentityHash()
		}
		if _, dup := byName[e.Name]; dup {
			return nil, fmt.Errorf("duplicate registry entry %q", e.Name)
		}
		byName[e.Name] = *e
	}

	return &Registry{entries: entries, byName: byName}, nil
}

func backfillCoordinates(e *LocationEntry, apiKey string) error {
	geocoder.ApiKey = apiKey
	loc, err := geocoder.Geocoding(geocoder.Address{City: e.Name})
	if err != nil {
		return err
	}
	e.Latitude = loc.Latitude
	e.Longitude = loc.Longitude
	return nil
}

// Entries returns the registry rows in load order. Callers must not mutate
// the returned slice.
func (r *Registry) Entries() []LocationEntry {
	return r.entries
}

// Lookup finds a location by name.
func (r *Registry) Lookup(name string) (LocationEntry, bool) {
	e, ok := r.byName[name]
	return e, ok
}

// Len reports the number of registered locations.
func (r *Registry) Len() int {
	return len(r.entries)
}
