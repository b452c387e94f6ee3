package staging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/wx"
)

// DimLocationFile is the fixed, extension-stable name of the location
// dimension table. Unlike fact files it is fully replaced on every run,
// since it represents current configuration rather than an event log.
const DimLocationFile = "dim_location.parquet"

// observationRow is the staged columnar schema for observations.
type observationRow struct {
	Location       string    `parquet:"location"`
	StationID      string    `parquet:"station_id"`
	ValidTimeUTC   time.Time `parquet:"valid_time_utc"`
	AsOfTimeUTC    time.Time `parquet:"as_of_time_utc"`
	TemperatureC   *float64  `parquet:"temperature_c"`
	QualityFlag    string    `parquet:"quality_flag"`
	Provider       string    `parquet:"provider"`
	ProvenanceHash string    `parquet:"provenance_hash"`
	RawPayload     string    `parquet:"raw_payload"`
}

// forecastRow is the staged columnar schema for forecasts.
type forecastRow struct {
	Location       string    `parquet:"location"`
	Provider       string    `parquet:"provider"`
	IssueTimeUTC   time.Time `parquet:"issue_time_utc"`
	ValidTimeUTC   time.Time `parquet:"valid_time_utc"`
	LeadHours      int32     `parquet:"lead_hours"`
	TemperatureC   *float64  `parquet:"temperature_c"`
	ModelRun       string    `parquet:"model_run"`
	ModelName      string    `parquet:"model_name"`
	AsOfTimeUTC    time.Time `parquet:"as_of_time_utc"`
	ProvenanceHash string    `parquet:"provenance_hash"`
	RawPayload     string    `parquet:"raw_payload"`
}

// locationRow is the dimension-table schema.
type locationRow struct {
	Name      string  `parquet:"name"`
	Latitude  float64 `parquet:"latitude"`
	Longitude float64 `parquet:"longitude"`
	SeriesID  string  `parquet:"series_id"`
	StationID string  `parquet:"station_id"`
	Timezone  string  `parquet:"timezone"`
	WeatherID string  `parquet:"weather_id"`
}

// Writer stages normalized records as immutable parquet files under a root
// directory, one file per (provider, dataset, location, run timestamp) key.
type Writer struct {
	root string
}

func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// WriteForecasts stages one batch of forecast records. Re-running with the
// same key is a no-op: an existing file is never overwritten. The returned
// bool reports whether a file was created.
func (w *Writer) WriteForecasts(provider, dataset string, loc registry.LocationEntry, runTS time.Time, recs []wx.ForecastRecord) (string, bool, error) {
	rows := make([]forecastRow, len(recs))
	for i, r := range recs {
		rows[i] = forecastRow{
			Location:       r.Location,
			Provider:       r.Provider,
			IssueTimeUTC:   r.IssueTimeUTC,
			ValidTimeUTC:   r.ValidTimeUTC,
			LeadHours:      int32(r.LeadHours),
			TemperatureC:   r.TemperatureC,
			ModelRun:       r.ModelRun,
			ModelName:      r.ModelName,
			AsOfTimeUTC:    r.AsOfTimeUTC,
			ProvenanceHash: r.ProvenanceHash,
			RawPayload:     r.RawPayload,
		}
	}
	return writeFactFile(w.root, provider, dataset, loc.Name, runTS, rows)
}

// WriteObservations stages one batch of observation records with the same
// idempotency contract as WriteForecasts.
func (w *Writer) WriteObservations(provider, dataset string, loc registry.LocationEntry, runTS time.Time, recs []wx.ObservationRecord) (string, bool, error) {
	rows := make([]observationRow, len(recs))
	for i, r := range recs {
		rows[i] = observationRow{
			Location:       r.Location,
			StationID:      r.StationID,
			ValidTimeUTC:   r.ValidTimeUTC,
			AsOfTimeUTC:    r.AsOfTimeUTC,
			TemperatureC:   r.TemperatureC,
			QualityFlag:    r.QualityFlag,
			Provider:       r.Provider,
			ProvenanceHash: r.ProvenanceHash,
			RawPayload:     r.RawPayload,
		}
	}
	return writeFactFile(w.root, provider, dataset, loc.Name, runTS, rows)
}

// WriteLocationDimension fully replaces the location dimension table.
func (w *Writer) WriteLocationDimension(entries []registry.LocationEntry) (string, error) {
	rows := make([]locationRow, len(entries))
	for i, e := range entries {
		rows[i] = locationRow{
			Name:      e.Name,
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			SeriesID:  e.SeriesID,
			StationID: e.StationID,
			Timezone:  e.Timezone,
			WeatherID: e.WeatherID,
		}
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(w.root, DimLocationFile)
	if err := writeParquet(path, rows); err != nil {
		return "", err
	}
	return path, nil
}

func writeFactFile[T any](root, provider, dataset, location string, runTS time.Time, rows []T) (string, bool, error) {
	dir := filepath.Join(root, provider+"_"+dataset)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}

	name := fmt.Sprintf("%s_%s_%s_%s.parquet", provider, dataset, Slug(location), EncodeRunTimestamp(runTS))
	path := filepath.Join(dir, name)

	// Idempotent re-run safety: the first write wins.
	if _, err := os.Stat(path); err == nil {
		return path, false, nil
	} else if !os.IsNotExist(err) {
		return "", false, err
	}

	if err := writeParquet(path, rows); err != nil {
		return "", false, err
	}
	return path, true, nil
}

// writeParquet writes rows atomically via a .tmp intermediate file so a
// crashed run never leaves a half-written parquet behind.
func writeParquet[T any](path string, rows []T) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	pw := parquet.NewGenericWriter[T](f)
	if _, err := pw.Write(rows); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := pw.Close(); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a location name to its filesystem-safe form.
func Slug(name string) string {
	s := slugPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	return strings.Trim(s, "_")
}

// EncodeRunTimestamp renders a run timestamp in its filesystem-safe form:
// colons become hyphens-then-underscores, a positive offset sign becomes a
// literal token, and the calendar-date hyphens are preserved for
// readability (e.g. 2025-11-03T22_26_40.645330_plus_05_00).
func EncodeRunTimestamp(t time.Time) string {
	s := t.Format("2006-01-02T15:04:05.000000Z07:00")
	s = strings.ReplaceAll(s, ":", "-")
	s = strings.ReplaceAll(s, "+", "_plus_")
	s = strings.ReplaceAll(s, "-", "_")
	// restore the two calendar-date hyphens
	s = strings.Replace(s, "_", "-", 2)
	return s
}
