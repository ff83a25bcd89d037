package domain

import (
	"fmt"
	"strings"
	"time"
)

type StageKind int

const (
	StageMatch StageKind = iota
	StageGroup
	StageSort
	StageSkip
	StageLimit
)

func (k StageKind) String() string {
	switch k {
	case StageMatch:
		return "match"
	case StageGroup:
		return "group"
	case StageSort:
		return "sort"
	case StageSkip:
		return "skip"
	case StageLimit:
		return "limit"
	}
	return fmt.Sprintf("stage(%d)", int(k))
}

// MatchSpec filters Field to [Gte, Lte]; a nil bound is not applied.
type MatchSpec struct {
	Field string
	Gte   *time.Time
	Lte   *time.Time
}

// GroupSpec buckets rows by Key and averages the listed numeric fields.
// Stores also emit the bucket window as min(start_time) and max(end_time).
type GroupSpec struct {
	Key      GroupKeySpec
	Averages []string
}

type SortSpec struct {
	Field      string
	Descending bool
}

// Stage is one step of an aggregation pipeline. Exactly one of the
// kind-specific fields is meaningful, selected by Kind.
type Stage struct {
	Kind  StageKind
	Match *MatchSpec
	Group *GroupSpec
	Sort  *SortSpec
	Skip  int64
	Limit int64
}

func MatchStage(field string, r DateRange) Stage {
	return Stage{Kind: StageMatch, Match: &MatchSpec{Field: field, Gte: r.Start, Lte: r.End}}
}

func GroupStage(key GroupKeySpec, averages []string) Stage {
	return Stage{Kind: StageGroup, Group: &GroupSpec{Key: key, Averages: averages}}
}

func SortStage(field string, descending bool) Stage {
	return Stage{Kind: StageSort, Sort: &SortSpec{Field: field, Descending: descending}}
}

func SkipStage(n int64) Stage {
	return Stage{Kind: StageSkip, Skip: n}
}

func LimitStage(n int64) Stage {
	return Stage{Kind: StageLimit, Limit: n}
}

// Pipeline is an ordered list of stages: match, group, sort, skip, limit.
type Pipeline []Stage

// Grouped reports whether the pipeline contains a group stage.
func (p Pipeline) Grouped() bool {
	for _, s := range p {
		if s.Kind == StageGroup {
			return true
		}
	}
	return false
}

// Kinds lists the stage kinds in order.
func (p Pipeline) Kinds() []StageKind {
	kinds := make([]StageKind, len(p))
	for i, s := range p {
		kinds[i] = s.Kind
	}
	return kinds
}

func (p Pipeline) String() string {
	parts := make([]string, 0, len(p))
	for _, s := range p {
		switch s.Kind {
		case StageMatch:
			parts = append(parts, fmt.Sprintf("match(%s in [%s, %s])", s.Match.Field, fmtBound(s.Match.Gte), fmtBound(s.Match.Lte)))
		case StageGroup:
			names := make([]string, len(s.Group.Key.Parts))
			for i, kp := range s.Group.Key.Parts {
				names[i] = kp.Name
			}
			parts = append(parts, fmt.Sprintf("group(%s)", strings.Join(names, ",")))
		case StageSort:
			dir := "asc"
			if s.Sort.Descending {
				dir = "desc"
			}
			parts = append(parts, fmt.Sprintf("sort(%s %s)", s.Sort.Field, dir))
		case StageSkip:
			parts = append(parts, fmt.Sprintf("skip(%d)", s.Skip))
		case StageLimit:
			parts = append(parts, fmt.Sprintf("limit(%d)", s.Limit))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func fmtBound(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

// QueryParams are the raw, request scoped query inputs. Empty strings and
// nil pointers mean the parameter was not supplied.
type QueryParams struct {
	DateRange string
	Interval  string
	SortBy    string
	Order     string
	Limit     *int64
	Page      *int64
}

// AppliedFilters reports what a query actually applied after fail-open
// normalization, so dropped parameters are visible to the caller.
type AppliedFilters struct {
	FastPath bool
	Start    *time.Time
	End      *time.Time
	Interval string
	SortBy   string
	Order    string
	Page     int64
	Limit    int64
	Skip     int64
	Warnings []string
}

// Warn records a normalization warning.
func (a *AppliedFilters) Warn(format string, args ...any) {
	a.Warnings = append(a.Warnings, fmt.Sprintf(format, args...))
}
