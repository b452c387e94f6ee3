package wx

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"time"
)

// ObservationRecord is the canonical shape of one reported observation.
// ValidTimeUTC is always a UTC-normalized instant. Observations may be
// reported with delay, so AsOfTimeUTC can precede or follow ValidTimeUTC.
type ObservationRecord struct {
	Location       string
	StationID      string
	ValidTimeUTC   time.Time
	AsOfTimeUTC    time.Time
	TemperatureC   *float64
	QualityFlag    string
	Provider       string
	ProvenanceHash string
	RawPayload     string
}

// ForecastRecord is the canonical shape of one forecast row. A retained
// record satisfies ValidTimeUTC > IssueTimeUTC; within one staged batch no
// two records share (Location, ModelRun, ValidTimeUTC, IssueTimeUTC).
type ForecastRecord struct {
	Location       string
	Provider       string
	IssueTimeUTC   time.Time
	ValidTimeUTC   time.Time
	LeadHours      int
	TemperatureC   *float64
	ModelRun       string
	ModelName      string
	AsOfTimeUTC    time.Time
	ProvenanceHash string
	RawPayload     string
}

// CalendarDate is the UTC calendar day the forecast describes, one of the
// duplicate-collapse grouping keys.
func (r ForecastRecord) CalendarDate() string {
	return r.ValidTimeUTC.UTC().Format("2006-01-02")
}

// LeadHoursBetween rounds the issue-to-valid horizon to whole hours.
func LeadHoursBetween(issue, valid time.Time) int {
	return int(math.Round(valid.Sub(issue).Hours()))
}

// ProvenanceHash derives a content hash of a raw payload, used for
// exact-duplicate detection independent of parsed fields.
func ProvenanceHash(raw []byte) string {
	h := sha256.Sum256(raw)
	return hex.EncodeToString(h[:])
}

// Float64 returns a pointer to v, for optional record fields.
func Float64(v float64) *float64 {
	return &v
}
