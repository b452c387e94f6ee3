package normalize

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kalder/weather-staging/internal/registry"
	"github.com/kalder/weather-staging/internal/wx"
)

// Model identifiers for the AccuWeather hourly feed. The feed has no model
// run instant of its own, so records carry the fetch time as issue time.
const (
	accuWeatherModelName = "accuweather_12h"
	accuWeatherModelRun  = "1001"
)

// FahrenheitToCelsius applies the unit inversion for providers reporting °F.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32.0) * 5.0 / 9.0
}

// AccuWeatherForecast maps the hourly forecast payload (a JSON array of
// hourly entries) to canonical forecast records, converting Fahrenheit
// values and retaining each entry's raw JSON for audit.
func AccuWeatherForecast(raw []byte, loc registry.LocationEntry, asOf time.Time) ([]wx.ForecastRecord, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, &wx.ResponseError{
			Provider: "accuweather",
			Reason:   "hourly forecast payload is not a list",
			Excerpt:  wx.Excerpt(raw),
		}
	}

	issue := ToUTC(asOf)
	records := make([]wx.ForecastRecord, 0, len(entries))
	for _, entryRaw := range entries {
		var entry struct {
			DateTime    string `json:"DateTime"`
			Temperature struct {
				Value *float64 `json:"Value"`
				Unit  string   `json:"Unit"`
			} `json:"Temperature"`
		}
		if err := json.Unmarshal(entryRaw, &entry); err != nil {
			return nil, &wx.ResponseError{
				Provider: "accuweather",
				Reason:   "unexpected hourly entry shape",
				Excerpt:  wx.Excerpt(entryRaw),
			}
		}

		valid, err := ParseZoned(entry.DateTime)
		if err != nil {
			return nil, &wx.ResponseError{
				Provider: "accuweather",
				Reason:   "unparseable forecast timestamp",
				Excerpt:  wx.Excerpt(entryRaw),
			}
		}

		temp := entry.Temperature.Value
		if temp != nil && strings.EqualFold(entry.Temperature.Unit, "F") {
			temp = wx.Float64(FahrenheitToCelsius(*temp))
		}

		records = append(records, wx.ForecastRecord{
			Location:       loc.Name,
			Provider:       "accuweather",
			IssueTimeUTC:   issue,
			ValidTimeUTC:   valid,
			LeadHours:      wx.LeadHoursBetween(issue, valid),
			TemperatureC:   temp,
			ModelRun:       accuWeatherModelRun,
			ModelName:      accuWeatherModelName,
			AsOfTimeUTC:    issue,
			ProvenanceHash: wx.ProvenanceHash(entryRaw),
			RawPayload:     string(entryRaw),
		})
	}
	return records, nil
}

// openMeteoModelResponse is one per-model object from the batched call.
// Timestamps are epoch seconds; the hourly series is reconstructed from
// (time, time_end, interval) as a half-open range of fixed-width buckets.
type openMeteoModelResponse struct {
	Model   int64 `json:"model"`
	Current struct {
		Time          int64    `json:"time"`
		Temperature2m *float64 `json:"temperature_2m"`
	} `json:"current"`
	Hourly struct {
		Time          int64      `json:"time"`
		TimeEnd       int64      `json:"time_end"`
		Interval      int64      `json:"interval"`
		Temperature2m []*float64 `json:"temperature_2m"`
	} `json:"hourly"`
}

// OpenMeteoForecast maps the batched multi-model payload to canonical
// records. The payload must contain exactly one response per requested
// model; response i is paired with models[i].
func OpenMeteoForecast(raw []byte, models []string, loc registry.LocationEntry, asOf time.Time) ([]wx.ForecastRecord, error) {
	var rawModels []json.RawMessage
	if err := json.Unmarshal(raw, &rawModels); err != nil {
		return nil, &wx.ResponseError{
			Provider: "openmeteo",
			Reason:   "batched payload is not a list",
			Excerpt:  wx.Excerpt(raw),
		}
	}
	if len(rawModels) != len(models) {
		return nil, &wx.ResponseError{
			Provider: "openmeteo",
			Reason:   "requested " + strconv.Itoa(len(models)) + " models, got " + strconv.Itoa(len(rawModels)) + " responses",
		}
	}

	asOf = ToUTC(asOf)
	var records []wx.ForecastRecord
	for i, modelRaw := range rawModels {
		var resp openMeteoModelResponse
		if err := json.Unmarshal(modelRaw, &resp); err != nil {
			return nil, &wx.ResponseError{
				Provider: "openmeteo",
				Reason:   "unexpected model response shape for " + models[i],
				Excerpt:  wx.Excerpt(modelRaw),
			}
		}
		if resp.Current.Time <= 0 {
			return nil, &wx.ResponseError{
				Provider: "openmeteo",
				Reason:   "missing model run instant for " + models[i],
			}
		}
		if resp.Hourly.Interval <= 0 {
			return nil, &wx.ResponseError{
				Provider: "openmeteo",
				Reason:   "non-positive hourly interval for " + models[i],
			}
		}

		buckets := (resp.Hourly.TimeEnd - resp.Hourly.Time) / resp.Hourly.Interval
		if buckets < 0 || int(buckets) != len(resp.Hourly.Temperature2m) {
			return nil, &wx.ResponseError{
				Provider: "openmeteo",
				Reason: "hourly series for " + models[i] + " has " +
					strconv.Itoa(len(resp.Hourly.Temperature2m)) + " values for " +
					strconv.FormatInt(buckets, 10) + " buckets",
			}
		}

		issue := FromEpochSeconds(resp.Current.Time)
		modelRun := models[i]
		if resp.Model != 0 {
			modelRun = strconv.FormatInt(resp.Model, 10)
		}
		hash := wx.ProvenanceHash(modelRaw)

		for b := int64(0); b < buckets; b++ {
			valid := FromEpochSeconds(resp.Hourly.Time + b*resp.Hourly.Interval)
			records = append(records, wx.ForecastRecord{
				Location:       loc.Name,
				Provider:       "openmeteo",
				IssueTimeUTC:   issue,
				ValidTimeUTC:   valid,
				LeadHours:      wx.LeadHoursBetween(issue, valid),
				TemperatureC:   resp.Hourly.Temperature2m[b],
				ModelRun:       modelRun,
				ModelName:      models[i],
				AsOfTimeUTC:    asOf,
				ProvenanceHash: hash,
				RawPayload:     string(modelRaw),
			})
		}
	}
	return records, nil
}

// NWSRow is one data row selected from the station observation table.
type NWSRow struct {
	Date       string // day of month
	Time       string // station-local wall clock, "15:04"
	Wind       string
	Weather    string
	AirTempF   string
	SixHourMax string
	Raw        string
}

// NWSObservations maps scraped table rows to canonical observation records.
// The table carries only a day-of-month and a local wall-clock time, both
// naive; they are anchored against the fetch time in the station's zone (a
// day greater than today's rolls back one month) and normalized to UTC.
// Rows whose timestamp cannot be resolved are dropped.
func NWSObservations(rows []NWSRow, loc registry.LocationEntry, asOf time.Time) ([]wx.ObservationRecord, error) {
	zone, err := loc.Zone()
	if err != nil {
		return nil, &wx.ConfigError{Reason: err.Error()}
	}

	anchor := ToZone(asOf, zone)
	records := make([]wx.ObservationRecord, 0, len(rows))
	for _, row := range rows {
		day, err := strconv.Atoi(strings.TrimSpace(row.Date))
		if err != nil || day < 1 || day > 31 {
			continue
		}

		year, month := anchor.Year(), anchor.Month()
		if day > anchor.Day() {
			// observation from the previous month
			month--
			if month < time.January {
				month = time.December
				year--
			}
		}
		valid, err := ParseNaive(
			fmt.Sprintf("%04d-%02d-%02d %s", year, month, day, strings.TrimSpace(row.Time)),
			"2006-01-02 15:04", zone)
		if err != nil {
			continue
		}

		var temp *float64
		quality := "ok"
		if f, err := strconv.ParseFloat(strings.TrimSpace(row.AirTempF), 64); err == nil {
			temp = wx.Float64(FahrenheitToCelsius(f))
		} else {
			quality = "missing_temperature"
		}

		records = append(records, wx.ObservationRecord{
			Location:       loc.Name,
			StationID:      loc.StationID,
			ValidTimeUTC:   valid,
			AsOfTimeUTC:    ToUTC(asOf),
			TemperatureC:   temp,
			QualityFlag:    quality,
			Provider:       "nws",
			ProvenanceHash: wx.ProvenanceHash([]byte(row.Raw)),
			RawPayload:     row.Raw,
		})
	}
	return records, nil
}
