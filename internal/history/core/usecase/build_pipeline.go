package usecase

import (
	"math"
	"strings"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/logging"
)

const (
	// DefaultLimit applies when a filtered/sorted/bucketed query sets no limit.
	DefaultLimit int64 = 24
	// MaxLimit caps every generated $limit, including the unfiltered fast path.
	MaxLimit int64 = 400
)

var log = logging.Component("usecase")

// PipelineBuilder turns untyped query parameters into an ordered pipeline.
// Invalid parameters are dropped (fail-open) and reported in AppliedFilters.
type PipelineBuilder struct {
	timeField    string
	defaultLimit int64
	maxLimit     int64
}

type BuilderOption func(*PipelineBuilder)

// WithTimeField sets the datetime field range filters apply to.
func WithTimeField(field string) BuilderOption {
	return func(b *PipelineBuilder) {
		if field != "" {
			b.timeField = field
		}
	}
}

func WithDefaultLimit(n int64) BuilderOption {
	return func(b *PipelineBuilder) {
		if n > 0 {
			b.defaultLimit = n
		}
	}
}

func WithMaxLimit(n int64) BuilderOption {
	return func(b *PipelineBuilder) {
		if n > 0 {
			b.maxLimit = n
		}
	}
}

func NewPipelineBuilder(opts ...BuilderOption) *PipelineBuilder {
	b := &PipelineBuilder{
		timeField:    domain.FieldStartTime,
		defaultLimit: DefaultLimit,
		maxLimit:     MaxLimit,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.defaultLimit > b.maxLimit {
		b.defaultLimit = b.maxLimit
	}
	return b
}

// Build composes match, group, sort, skip and limit stages, in that order.
//
// With no filter, bucketing, sort or page beyond the first, the result is a
// single capped $limit stage.
func (b *PipelineBuilder) Build(p domain.QueryParams) (domain.Pipeline, domain.AppliedFilters) {
	var applied domain.AppliedFilters

	match, hasMatch := b.matchStage(p.DateRange, &applied)
	group, hasGroup := b.groupStage(p.Interval, &applied)
	sort, hasSort := b.sortStage(p.SortBy, p.Order, &applied)

	page := int64(1)
	if p.Page != nil {
		page = *p.Page
		if page < 1 {
			applied.Warn("page %d raised to 1", page)
			page = 1
		}
	}

	if !hasMatch && !hasGroup && !hasSort && page == 1 {
		limit := b.maxLimit
		if p.Limit != nil {
			limit = b.clampLimit(*p.Limit, &applied)
		}
		applied.FastPath = true
		applied.Page = 1
		applied.Limit = limit
		return domain.Pipeline{domain.LimitStage(limit)}, applied
	}

	var pipeline domain.Pipeline
	if hasMatch {
		pipeline = append(pipeline, match)
	}
	if hasGroup {
		pipeline = append(pipeline, group)
	}
	if hasSort {
		pipeline = append(pipeline, sort)
	}

	limit := b.defaultLimit
	if p.Limit != nil {
		limit = b.clampLimit(*p.Limit, &applied)
	}
	if page-1 > math.MaxInt64/limit {
		maxPage := math.MaxInt64/limit + 1
		applied.Warn("page %d lowered to %d", page, maxPage)
		page = maxPage
	}
	skip := (page - 1) * limit

	applied.Page = page
	applied.Limit = limit
	applied.Skip = skip

	pipeline = append(pipeline, domain.SkipStage(skip), domain.LimitStage(limit))
	return pipeline, applied
}

func (b *PipelineBuilder) matchStage(raw string, applied *domain.AppliedFilters) (domain.Stage, bool) {
	if strings.TrimSpace(raw) == "" {
		return domain.Stage{}, false
	}
	r := domain.ParseDateRange(raw)
	if r == nil || r.IsOpen() {
		applied.Warn("dateRange %q has no usable date, no range filter applied", raw)
		return domain.Stage{}, false
	}
	if parts := strings.Split(raw, ","); len(parts) >= 2 {
		if strings.TrimSpace(parts[0]) != "" && r.Start == nil {
			applied.Warn("dateRange start %q is not a YYYY-MM-DD date; lower bound left open", parts[0])
		}
		if strings.TrimSpace(parts[1]) != "" && r.End == nil {
			applied.Warn("dateRange end %q is not a YYYY-MM-DD date; upper bound left open", parts[1])
		}
	}
	applied.Start = r.Start
	applied.End = r.End
	return domain.MatchStage(b.timeField, *r), true
}

func (b *PipelineBuilder) groupStage(raw string, applied *domain.AppliedFilters) (domain.Stage, bool) {
	if raw == "" {
		return domain.Stage{}, false
	}
	interval := domain.Interval(strings.ToLower(strings.TrimSpace(raw)))
	if !interval.IsValid() {
		log.Warn("invalid interval value, bucketing skipped", "interval", raw)
		applied.Warn("interval %q is not one of hour, day, week, month; no bucketing applied", raw)
		return domain.Stage{}, false
	}
	applied.Interval = string(interval)
	return domain.GroupStage(interval.BucketKey(), domain.NumericFields), true
}

func (b *PipelineBuilder) sortStage(sortBy, order string, applied *domain.AppliedFilters) (domain.Stage, bool) {
	if sortBy == "" {
		if order != "" {
			applied.Warn("order %q ignored without sortBy", order)
		}
		return domain.Stage{}, false
	}
	field, ok := domain.ResolveField(strings.TrimSpace(sortBy))
	if !ok {
		log.Warn("sort field not allowed, sort skipped", "sort_by", sortBy)
		applied.Warn("sortBy %q is not a known field; no sort applied", sortBy)
		return domain.Stage{}, false
	}
	desc := strings.EqualFold(strings.TrimSpace(order), "desc")
	applied.SortBy = field
	applied.Order = "asc"
	if desc {
		applied.Order = "desc"
	}
	return domain.SortStage(field, desc), true
}

func (b *PipelineBuilder) clampLimit(n int64, applied *domain.AppliedFilters) int64 {
	if n < 1 {
		applied.Warn("limit %d raised to 1", n)
		return 1
	}
	if n > b.maxLimit {
		applied.Warn("limit %d capped at %d", n, b.maxLimit)
		return b.maxLimit
	}
	return n
}
