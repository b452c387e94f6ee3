package filter

import (
	"fmt"
	"strconv"

	"github.com/kalder/weather-staging/internal/wx"
)

// Exclusions is the injectable business-exclusion rule: locations or model
// identifiers whose forecasts are known to be non-predictive and are dropped
// before staging. Empty exclusions drop nothing.
type Exclusions struct {
	Locations []string
	Models    []string
}

func (e Exclusions) excludesLocation(name string) bool {
	for _, l := range e.Locations {
		if l == name {
			return true
		}
	}
	return false
}

func (e Exclusions) excludesModel(rec wx.ForecastRecord) bool {
	for _, m := range e.Models {
		if m == rec.ModelName || m == rec.ModelRun {
			return true
		}
	}
	return false
}

// Stats counts the records each pass dropped. Drops are validation-level
// outcomes: counted, never raised.
type Stats struct {
	NonCausal  int
	Duplicates int
	Excluded   int
}

// Causal drops forecasts whose valid time does not strictly follow the
// issue time. The input is not mutated.
func Causal(in []wx.ForecastRecord) []wx.ForecastRecord {
	out := make([]wx.ForecastRecord, 0, len(in))
	for _, rec := range in {
		if rec.ValidTimeUTC.After(rec.IssueTimeUTC) {
			out = append(out, rec)
		}
	}
	return out
}

// Dedup collapses duplicate forecasts, keeping the first occurrence per
// group and preserving the original ordering.
func Dedup(in []wx.ForecastRecord) []wx.ForecastRecord {
	seen := make(map[string]struct{}, len(in))
	out := make([]wx.ForecastRecord, 0, len(in))
	for _, rec := range in {
		key := dedupKey(rec)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func dedupKey(rec wx.ForecastRecord) string {
	temp := "nan"
	if rec.TemperatureC != nil {
		temp = strconv.FormatFloat(*rec.TemperatureC, 'f', -1, 64)
	}
	return fmt.Sprintf("%d|%s|%s|%d|%s|%s|%s",
		rec.ValidTimeUTC.UnixNano(),
		temp,
		rec.Location,
		rec.IssueTimeUTC.UnixNano(),
		rec.ModelRun,
		rec.ModelName,
		rec.CalendarDate(),
	)
}

// Exclude drops records without a temperature value and records matching the
// configured exclusion rule.
func Exclude(in []wx.ForecastRecord, ex Exclusions) []wx.ForecastRecord {
	out := make([]wx.ForecastRecord, 0, len(in))
	for _, rec := range in {
		if rec.TemperatureC == nil {
			continue
		}
		if ex.excludesLocation(rec.Location) || ex.excludesModel(rec) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

// Forecasts runs the fixed pipeline order: causality filter, duplicate
// collapse, exclusion filter. Each pass is a pure function over its input;
// the returned stats report how many records each pass removed.
func Forecasts(in []wx.ForecastRecord, ex Exclusions) ([]wx.ForecastRecord, Stats) {
	var stats Stats

	causal := Causal(in)
	stats.NonCausal = len(in) - len(causal)

	deduped := Dedup(causal)
	stats.Duplicates = len(causal) - len(deduped)

	kept := Exclude(deduped, ex)
	stats.Excluded = len(deduped) - len(kept)

	return kept, stats
}
