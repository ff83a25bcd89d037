package domain

import "time"

// Interval is a calendar bucket selector.
type Interval string

const (
	IntervalHour  Interval = "hour"
	IntervalDay   Interval = "day"
	IntervalWeek  Interval = "week"
	IntervalMonth Interval = "month"
)

// DatePart is a calendar component extracted from a datetime in UTC.
type DatePart int

const (
	PartYear DatePart = iota
	PartISOWeekYear
	PartMonth
	PartDayOfMonth
	PartHour
	PartISOWeek
)

// KeyPart names one component of a bucket key.
type KeyPart struct {
	Name string // "year", "month", "day", "hour" or "week"
	Part DatePart
}

// GroupKeySpec is the ordered set of components a bucket is keyed by.
type GroupKeySpec struct {
	Field string // datetime field the components are drawn from
	Parts []KeyPart
}

// IsValid reports whether the interval is one of hour, day, week or month.
func (i Interval) IsValid() bool {
	switch i {
	case IntervalHour, IntervalDay, IntervalWeek, IntervalMonth:
		return true
	}
	return false
}

// BucketKey returns the grouping key for the interval, drawn from start_time.
// Week buckets use the ISO week and ISO week-year.
func (i Interval) BucketKey() GroupKeySpec {
	spec := GroupKeySpec{Field: FieldStartTime}
	switch i {
	case IntervalHour:
		spec.Parts = []KeyPart{
			{Name: "year", Part: PartYear},
			{Name: "month", Part: PartMonth},
			{Name: "day", Part: PartDayOfMonth},
			{Name: "hour", Part: PartHour},
		}
	case IntervalDay:
		spec.Parts = []KeyPart{
			{Name: "year", Part: PartYear},
			{Name: "month", Part: PartMonth},
			{Name: "day", Part: PartDayOfMonth},
		}
	case IntervalWeek:
		spec.Parts = []KeyPart{
			{Name: "year", Part: PartISOWeekYear},
			{Name: "week", Part: PartISOWeek},
		}
	case IntervalMonth:
		spec.Parts = []KeyPart{
			{Name: "year", Part: PartYear},
			{Name: "month", Part: PartMonth},
		}
	}
	return spec
}

// KeyOf computes the bucket key of a datetime for this spec.
func (s GroupKeySpec) KeyOf(t time.Time) BucketKey {
	t = t.UTC()
	var k BucketKey
	for _, p := range s.Parts {
		v := p.Part.Extract(t)
		switch p.Name {
		case "year":
			k.Year = v
		case "month":
			k.Month = v
		case "day":
			k.Day = v
		case "hour":
			k.Hour = v
		case "week":
			k.Week = v
		}
	}
	return k
}

// Extract returns the component value of t.
func (p DatePart) Extract(t time.Time) int {
	switch p {
	case PartYear:
		return t.Year()
	case PartISOWeekYear:
		y, _ := t.ISOWeek()
		return y
	case PartMonth:
		return int(t.Month())
	case PartDayOfMonth:
		return t.Day()
	case PartHour:
		return t.Hour()
	case PartISOWeek:
		_, w := t.ISOWeek()
		return w
	}
	return 0
}
