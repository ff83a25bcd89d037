package domain

import (
	"testing"
	"time"
)

func TestInterval_IsValid(t *testing.T) {
	for _, in := range []Interval{IntervalHour, IntervalDay, IntervalWeek, IntervalMonth} {
		if !in.IsValid() {
			t.Fatalf("%q should be valid", in)
		}
	}
	for _, in := range []Interval{"", "minute", "year", "Day"} {
		if in.IsValid() {
			t.Fatalf("%q should be invalid", in)
		}
	}
}

func TestInterval_BucketKeyParts(t *testing.T) {
	tests := []struct {
		interval Interval
		want     []string
	}{
		{IntervalHour, []string{"year", "month", "day", "hour"}},
		{IntervalDay, []string{"year", "month", "day"}},
		{IntervalWeek, []string{"year", "week"}},
		{IntervalMonth, []string{"year", "month"}},
	}

	for _, tc := range tests {
		spec := tc.interval.BucketKey()
		if spec.Field != FieldStartTime {
			t.Fatalf("%s: expected key drawn from start_time, got %s", tc.interval, spec.Field)
		}
		if len(spec.Parts) != len(tc.want) {
			t.Fatalf("%s: expected %d parts, got %d", tc.interval, len(tc.want), len(spec.Parts))
		}
		for i, p := range spec.Parts {
			if p.Name != tc.want[i] {
				t.Fatalf("%s: part %d expected %s, got %s", tc.interval, i, tc.want[i], p.Name)
			}
		}
	}
}

func TestGroupKeySpec_KeyOf(t *testing.T) {
	ts := time.Date(2023, time.March, 14, 15, 30, 0, 0, time.UTC)

	hour := IntervalHour.BucketKey().KeyOf(ts)
	if hour != (BucketKey{Year: 2023, Month: 3, Day: 14, Hour: 15}) {
		t.Fatalf("unexpected hour key: %+v", hour)
	}

	month := IntervalMonth.BucketKey().KeyOf(ts)
	if month != (BucketKey{Year: 2023, Month: 3}) {
		t.Fatalf("unexpected month key: %+v", month)
	}
}

func TestGroupKeySpec_ISOWeekCrossesYear(t *testing.T) {
	// 2021-01-01 is a Friday in ISO week 53 of 2020.
	ts := time.Date(2021, time.January, 1, 12, 0, 0, 0, time.UTC)
	got := IntervalWeek.BucketKey().KeyOf(ts)
	if got != (BucketKey{Year: 2020, Week: 53}) {
		t.Fatalf("expected 2020-W53, got %+v", got)
	}
}

func TestGroupKeySpec_KeyOfUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	// 01:00 local on the 2nd is 22:00 UTC on the 1st.
	ts := time.Date(2023, time.January, 2, 1, 0, 0, 0, loc)
	got := IntervalDay.BucketKey().KeyOf(ts)
	if got.Day != 1 {
		t.Fatalf("expected UTC day 1, got %+v", got)
	}
}
