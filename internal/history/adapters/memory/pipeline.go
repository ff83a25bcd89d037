package memory

import (
	"errors"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"liquidity-history-service/internal/history/core/domain"
)

var (
	errGroupedPipeline   = errors.New("memory: grouped pipeline passed to QueryRecords")
	errUngroupedPipeline = errors.New("memory: pipeline without group stage passed to QueryBuckets")
)

func matchRecords(rows []domain.DepthRecord, m *domain.MatchSpec) []domain.DepthRecord {
	out := rows[:0]
	for _, r := range rows {
		t, ok := r.TimeValue(m.Field)
		if !ok {
			continue
		}
		if inRange(t, m) {
			out = append(out, r)
		}
	}
	return out
}

// window applies skip then an optional limit (limit < 0 means none). A
// negative skip counts as zero.
func window[T any](rows []T, skip, limit int64) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= int64(len(rows)) {
		return rows[:0]
	}
	rows = rows[skip:]
	if limit >= 0 && limit < int64(len(rows)) {
		rows = rows[:limit]
	}
	return rows
}

// sortRecords orders by a stored field. Numeric fields hold text and compare
// as strings, the same as a document store would.
func sortRecords(rows []domain.DepthRecord, s *domain.SortSpec) {
	less := func(a, b domain.DepthRecord) int {
		if domain.IsTimeField(s.Field) {
			ta, _ := a.TimeValue(s.Field)
			tb, _ := b.TimeValue(s.Field)
			return ta.Compare(tb)
		}
		va, _ := a.NumericValue(s.Field)
		vb, _ := b.NumericValue(s.Field)
		return strings.Compare(va, vb)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := less(rows[i], rows[j])
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
}

// sortBuckets orders by the bucket window for time fields and by the mean
// otherwise; a missing mean sorts before every number.
func sortBuckets(buckets []domain.DepthBucket, s *domain.SortSpec) {
	cmp := func(a, b domain.DepthBucket) int {
		switch s.Field {
		case domain.FieldStartTime:
			return a.StartTime.Compare(b.StartTime)
		case domain.FieldEndTime:
			return a.EndTime.Compare(b.EndTime)
		}
		va, vb := a.Average(s.Field), b.Average(s.Field)
		switch {
		case va == nil && vb == nil:
			return 0
		case va == nil:
			return -1
		case vb == nil:
			return 1
		case *va < *vb:
			return -1
		case *va > *vb:
			return 1
		}
		return 0
	}
	sort.SliceStable(buckets, func(i, j int) bool {
		c := cmp(buckets[i], buckets[j])
		if s.Descending {
			return c > 0
		}
		return c < 0
	})
}

type accumulator struct {
	bucket domain.DepthBucket
	sums   map[string]decimal.Decimal
	counts map[string]int64
}

// groupRecords buckets rows by the key spec and averages the numeric fields.
// Values that do not parse as numbers are left out of the mean. Buckets come
// back in order of first appearance.
func groupRecords(rows []domain.DepthRecord, g *domain.GroupSpec) []domain.DepthBucket {
	var order []domain.BucketKey
	acc := make(map[domain.BucketKey]*accumulator)

	for _, r := range rows {
		t, ok := r.TimeValue(g.Key.Field)
		if !ok {
			continue
		}
		k := g.Key.KeyOf(t)

		a, ok := acc[k]
		if !ok {
			a = &accumulator{
				bucket: domain.DepthBucket{Key: k, StartTime: r.StartTime, EndTime: r.EndTime},
				sums:   make(map[string]decimal.Decimal, len(g.Averages)),
				counts: make(map[string]int64, len(g.Averages)),
			}
			acc[k] = a
			order = append(order, k)
		}
		if r.StartTime.Before(a.bucket.StartTime) {
			a.bucket.StartTime = r.StartTime
		}
		if r.EndTime.After(a.bucket.EndTime) {
			a.bucket.EndTime = r.EndTime
		}

		for _, f := range g.Averages {
			raw, _ := r.NumericValue(f)
			d, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				continue
			}
			a.sums[f] = a.sums[f].Add(d)
			a.counts[f]++
		}
	}

	out := make([]domain.DepthBucket, 0, len(order))
	for _, k := range order {
		a := acc[k]
		a.bucket.Averages = make(map[string]*float64, len(g.Averages))
		for _, f := range g.Averages {
			n := a.counts[f]
			if n == 0 {
				a.bucket.Averages[f] = nil
				continue
			}
			mean := a.sums[f].Div(decimal.NewFromInt(n)).InexactFloat64()
			a.bucket.Averages[f] = &mean
		}
		a.bucket.StartTime = a.bucket.StartTime.UTC()
		a.bucket.EndTime = a.bucket.EndTime.UTC()
		out = append(out, a.bucket)
	}
	return out
}
