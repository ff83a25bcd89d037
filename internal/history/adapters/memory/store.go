// Package memory is an in-process history store. It interprets pipelines
// directly and backs tests and local runs without a database.
package memory

import (
	"context"
	"sync"
	"time"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/ports"
)

type recordKey struct {
	start int64
	end   int64
}

func keyOf(r domain.DepthRecord) recordKey {
	return recordKey{start: r.StartTime.Unix(), end: r.EndTime.Unix()}
}

// Store keeps records in insertion order, which is the natural order an
// unsorted query returns.
type Store struct {
	mu         sync.RWMutex
	records    []domain.DepthRecord
	index      map[recordKey]int
	watermarks map[string]int64
}

var _ ports.HistoryStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		index:      make(map[recordKey]int),
		watermarks: make(map[string]int64),
	}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (s *Store) UpsertDepth(ctx context.Context, r domain.DepthRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	k := keyOf(r)
	if i, ok := s.index[k]; ok {
		s.records[i] = r
		return false, nil
	}
	s.index[k] = len(s.records)
	s.records = append(s.records, r)
	return true, nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) LoadWatermark(ctx context.Context, stream string) (int64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ts, ok := s.watermarks[stream]
	return ts, ok, nil
}

func (s *Store) SaveWatermark(ctx context.Context, stream string, ts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watermarks[stream] = ts
	return nil
}

func (s *Store) QueryRecords(ctx context.Context, p domain.Pipeline) ([]domain.DepthRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Grouped() {
		return nil, errGroupedPipeline
	}

	s.mu.RLock()
	rows := make([]domain.DepthRecord, len(s.records))
	copy(rows, s.records)
	s.mu.RUnlock()

	for _, st := range p {
		switch st.Kind {
		case domain.StageMatch:
			rows = matchRecords(rows, st.Match)
		case domain.StageSort:
			sortRecords(rows, st.Sort)
		case domain.StageSkip:
			rows = window(rows, st.Skip, -1)
		case domain.StageLimit:
			rows = window(rows, 0, st.Limit)
		}
	}
	return rows, nil
}

func (s *Store) QueryBuckets(ctx context.Context, p domain.Pipeline) ([]domain.DepthBucket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rows := make([]domain.DepthRecord, len(s.records))
	copy(rows, s.records)
	s.mu.RUnlock()

	var buckets []domain.DepthBucket
	grouped := false

	for _, st := range p {
		switch st.Kind {
		case domain.StageMatch:
			rows = matchRecords(rows, st.Match)
		case domain.StageGroup:
			buckets = groupRecords(rows, st.Group)
			grouped = true
		case domain.StageSort:
			if grouped {
				sortBuckets(buckets, st.Sort)
			} else {
				sortRecords(rows, st.Sort)
			}
		case domain.StageSkip:
			if grouped {
				buckets = window(buckets, st.Skip, -1)
			} else {
				rows = window(rows, st.Skip, -1)
			}
		case domain.StageLimit:
			if grouped {
				buckets = window(buckets, 0, st.Limit)
			} else {
				rows = window(rows, 0, st.Limit)
			}
		}
	}
	if !grouped {
		return nil, errUngroupedPipeline
	}
	return buckets, nil
}

func inRange(t time.Time, m *domain.MatchSpec) bool {
	if m.Gte != nil && t.Before(*m.Gte) {
		return false
	}
	if m.Lte != nil && t.After(*m.Lte) {
		return false
	}
	return true
}
