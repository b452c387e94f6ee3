package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/wx"
)

func chicagoEntry() registry.LocationEntry {
	return registry.LocationEntry{
		Name:      "Chicago",
		Latitude:  41.7868,
		Longitude: -87.7522,
		SeriesID:  "KXHIGHCHI",
		StationID: "MDW",
		Timezone:  "America/Chicago",
	}
}

func TestFahrenheitToCelsius(t *testing.T) {
	require.InDelta(t, 0.0, FahrenheitToCelsius(32), 1e-9)
	require.InDelta(t, 100.0, FahrenheitToCelsius(212), 1e-9)
	require.InDelta(t, -40.0, FahrenheitToCelsius(-40), 1e-9)
}

func TestAccuWeatherForecastRejectsNonList(t *testing.T) {
	_, err := AccuWeatherForecast([]byte(`{"Key":"348308"}`), chicagoEntry(), time.Now())
	var respErr *wx.ResponseError
	require.ErrorAs(t, err, &respErr)
}

func TestAccuWeatherForecastMissingTemperature(t *testing.T) {
	raw := []byte(`[{"DateTime":"2025-01-15T14:00:00-06:00","Temperature":{"Value":null,"Unit":"F"}}]`)
	records, err := AccuWeatherForecast(raw, chicagoEntry(), time.Date(2025, 1, 15, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Nil(t, records[0].TemperatureC)
}

// Identical raw payloads hash identically, independent of parsed fields.
func TestProvenanceHashStability(t *testing.T) {
	raw := []byte(`[{"DateTime":"2025-01-15T14:00:00-06:00","Temperature":{"Value":30.0,"Unit":"F"}}]`)
	a, err := AccuWeatherForecast(raw, chicagoEntry(), time.Date(2025, 1, 15, 18, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	b, err := AccuWeatherForecast(raw, chicagoEntry(), time.Date(2025, 1, 15, 19, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Equal(t, a[0].ProvenanceHash, b[0].ProvenanceHash)
}

// A table day greater than the fetch day belongs to the previous month.
func TestNWSObservationsMonthRollback(t *testing.T) {
	asOf := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC) // Feb 1st, 06:00 in Chicago
	rows := []NWSRow{
		{Date: "31", Time: "23:53", AirTempF: "30", Raw: "31|23:53|30"},
	}

	records, err := NWSObservations(rows, chicagoEntry(), asOf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	// Jan 31 23:53 CST = Feb 1 05:53 UTC
	require.Equal(t, time.Date(2025, 2, 1, 5, 53, 0, 0, time.UTC), records[0].ValidTimeUTC)
}

func TestNWSObservationsYearRollback(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := []NWSRow{
		{Date: "31", Time: "22:53", AirTempF: "28", Raw: "31|22:53|28"},
	}

	records, err := NWSObservations(rows, chicagoEntry(), asOf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	// Dec 31 22:53 CST = Jan 1 04:53 UTC
	require.Equal(t, time.Date(2026, 1, 1, 4, 53, 0, 0, time.UTC), records[0].ValidTimeUTC)
}

// Rows whose timestamp cannot be resolved are dropped, not raised. That
// includes a day-of-month that does not exist in the month it rolls back
// into (day 31 against an April anchor).
func TestNWSObservationsDropsBadRows(t *testing.T) {
	asOf := time.Date(2025, 5, 15, 20, 0, 0, 0, time.UTC)
	rows := []NWSRow{
		{Date: "nonsense", Time: "13:53", AirTempF: "32", Raw: "x"},
		{Date: "15", Time: "late", AirTempF: "32", Raw: "y"},
		{Date: "31", Time: "13:53", AirTempF: "32", Raw: "no Apr 31"},
		{Date: "15", Time: "13:53", AirTempF: "32", Raw: "z"},
	}

	records, err := NWSObservations(rows, chicagoEntry(), asOf)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "z", records[0].RawPayload)
}
