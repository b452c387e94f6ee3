package normalize

import (
	"fmt"
	"time"
)

// ToUTC converts a zone-aware instant to UTC. All records produced in one
// fetch cycle carry instants normalized through here, so their UTC values
// are directly comparable.
func ToUTC(t time.Time) time.Time {
	return t.UTC()
}

// ToZone converts a UTC instant back to a given zone. Round-trip guarantee:
// ToZone(ToUTC(t), t.Location()) reproduces t's wall-clock value exactly.
func ToZone(t time.Time, zone *time.Location) time.Time {
	return t.In(zone)
}

// ParseZoned parses a timestamp that carries its own offset (RFC 3339) and
// normalizes it to UTC.
func ParseZoned(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse zoned timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// ParseNaive interprets a wall-clock value without offset information in the
// given zone and normalizes it to UTC.
func ParseNaive(value, layout string, zone *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(layout, value, zone)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse naive timestamp %q: %w", value, err)
	}
	return t.UTC(), nil
}

// FromEpochSeconds converts a provider epoch-seconds value to a UTC instant.
func FromEpochSeconds(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
