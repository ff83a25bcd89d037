package domain

import (
	"strings"
	"time"

	"liquidity-history-service/internal/logging"
)

const dateLayout = "2006-01-02"

var log = logging.Component("domain")

// DateRange holds optional bounds. A nil bound is open-ended.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// IsOpen reports whether neither bound is set.
func (r DateRange) IsOpen() bool {
	return r.Start == nil && r.End == nil
}

// ParseDateRange parses "YYYY-MM-DD,YYYY-MM-DD". Either side may be blank.
// A single date covers that whole day. Malformed sides become open bounds;
// nil is returned only when the text holds no non-blank part at all.
func ParseDateRange(text string) *DateRange {
	parts := strings.Split(text, ",")
	if len(parts) > 2 {
		log.Warn("date range has extra parts, ignoring them", "date_range", text)
		parts = parts[:2]
	}

	usable := 0
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			usable++
		}
	}
	if usable == 0 {
		return nil
	}

	if len(parts) == 1 {
		day, ok := parseDay(parts[0])
		if !ok {
			return &DateRange{}
		}
		start := startOfDay(day)
		end := endOfDay(day)
		return &DateRange{Start: &start, End: &end}
	}

	var r DateRange
	if day, ok := parseDay(parts[0]); ok {
		start := startOfDay(day)
		r.Start = &start
	}
	if day, ok := parseDay(parts[1]); ok {
		end := endOfDay(day)
		r.End = &end
	}
	return &r
}

func parseDay(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	day, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		log.Warn("invalid date in range, leaving bound open", "value", s, "error", err)
		return time.Time{}, false
	}
	return day, true
}

func startOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 0, time.UTC)
}
