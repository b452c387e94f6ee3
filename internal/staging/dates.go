package staging

import (
	"fmt"
	"strings"
	"time"
)

// Supported date formats for staged-file discovery.
var dateFormatLayouts = map[string]string{
	"YYYY-MM-DD": "2006-01-02",
	"YYYYMMDD":   "20060102",
	"YYMMMDD":    "06Jan02", // rendered uppercase, e.g. 25SEP23
}

func parseDate(value, format string) (time.Time, error) {
	layout, ok := dateFormatLayouts[format]
	if !ok {
		return time.Time{}, fmt.Errorf("unsupported date format %q", format)
	}

	candidate := value
	if format == "YYMMMDD" && len(value) == 7 {
		// accept 25SEP23, 25sep23 or 25Sep23
		candidate = value[:2] + strings.ToUpper(value[2:3]) + strings.ToLower(value[3:5]) + value[5:]
	}

	t, err := time.Parse(layout, candidate)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q with format %q: %w", value, format, err)
	}
	return t, nil
}

func formatDate(t time.Time, format string) (string, error) {
	layout, ok := dateFormatLayouts[format]
	if !ok {
		return "", fmt.Errorf("unsupported date format %q", format)
	}
	s := t.Format(layout)
	if format == "YYMMMDD" {
		s = strings.ToUpper(s)
	}
	return s, nil
}

// EnumerateDateRange returns every calendar date from start through end
// inclusive, formatted in the start date's format. An empty end date means
// today; a start after end yields an empty sequence. endFormat defaults to
// startFormat.
func EnumerateDateRange(startDate, startFormat, endDate, endFormat string) ([]string, error) {
	start, err := parseDate(startDate, startFormat)
	if err != nil {
		return nil, err
	}

	var end time.Time
	if endDate == "" {
		now := time.Now()
		end = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	} else {
		fmtEnd := endFormat
		if fmtEnd == "" {
			fmtEnd = startFormat
		}
		end, err = parseDate(endDate, fmtEnd)
		if err != nil {
			return nil, err
		}
	}

	if start.After(end) {
		return []string{}, nil
	}

	days := int(end.Sub(start).Hours()/24) + 1
	out := make([]string, 0, days)
	for i := 0; i < days; i++ {
		s, err := formatDate(start.AddDate(0, 0, i), startFormat)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// BuildFileStemCandidates builds the full prefix+date+suffix permutation of
// staged-file stems, ignoring extensions. Nil or empty suffixes are treated
// as a single empty suffix.
func BuildFileStemCandidates(prefixes, dates, suffixes []string) ([]string, error) {
	if len(prefixes) == 0 {
		return nil, fmt.Errorf("prefixes must contain at least one prefix")
	}
	if len(dates) == 0 {
		return []string{}, nil
	}
	if len(suffixes) == 0 {
		suffixes = []string{""}
	}

	out := make([]string, 0, len(prefixes)*len(dates)*len(suffixes))
	for _, p := range prefixes {
		for _, d := range dates {
			for _, s := range suffixes {
				out = append(out, p+d+s)
			}
		}
	}
	return out, nil
}
