package memory

import (
	"context"
	"math"
	"testing"
	"time"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/usecase"
)

func hourRecord(start int64, depth string) domain.DepthRecord {
	return domain.DepthRecord{
		StartTime:  time.Unix(start, 0).UTC(),
		EndTime:    time.Unix(start+3600, 0).UTC(),
		AssetDepth: depth,
		RuneDepth:  depth,
		Units:      "1",
	}
}

func seed(t *testing.T, s *Store, recs ...domain.DepthRecord) {
	t.Helper()
	for _, r := range recs {
		if _, err := s.UpsertDepth(context.Background(), r); err != nil {
			t.Fatalf("seed upsert: %v", err)
		}
	}
}

func int64p(v int64) *int64 { return &v }

// ------------------------------------------------------------
// UPSERT
// ------------------------------------------------------------

func TestStore_UpsertIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	created, err := s.UpsertDepth(ctx, hourRecord(1647910800, "10"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true on first upsert")
	}

	created, err = s.UpsertDepth(ctx, hourRecord(1647910800, "20"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected created=false on second upsert")
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", s.Len())
	}

	recs, err := s.QueryRecords(ctx, domain.Pipeline{domain.LimitStage(10)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if recs[0].AssetDepth != "20" {
		t.Fatalf("expected latest values to win, got %q", recs[0].AssetDepth)
	}
}

func TestStore_Watermark(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if _, found, _ := s.LoadWatermark(ctx, "depth_history"); found {
		t.Fatalf("expected no watermark on a fresh store")
	}
	if err := s.SaveWatermark(ctx, "depth_history", 1647914400); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ts, found, err := s.LoadWatermark(ctx, "depth_history")
	if err != nil || !found || ts != 1647914400 {
		t.Fatalf("unexpected watermark: ts=%d found=%v err=%v", ts, found, err)
	}
}

// ------------------------------------------------------------
// RECORD QUERIES
// ------------------------------------------------------------

func TestStore_QueryRecords_MatchSortPage(t *testing.T) {
	s := NewStore()
	base := time.Date(2022, 3, 22, 0, 0, 0, 0, time.UTC).Unix()
	for i := int64(0); i < 48; i++ {
		seed(t, s, hourRecord(base+i*3600, "1"))
	}

	b := usecase.NewPipelineBuilder()
	pipeline, _ := b.Build(domain.QueryParams{
		DateRange: "2022-03-23",
		SortBy:    "startTime",
		Order:     "desc",
		Limit:     int64p(5),
		Page:      int64p(2),
	})

	recs, err := s.QueryRecords(context.Background(), pipeline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 5 {
		t.Fatalf("expected 5 records, got %d", len(recs))
	}
	// 2022-03-23 has hours 0..23; descending page 2 of 5 starts at hour 18.
	want := time.Date(2022, 3, 23, 18, 0, 0, 0, time.UTC)
	if !recs[0].StartTime.Equal(want) {
		t.Fatalf("expected first start %s, got %s", want, recs[0].StartTime)
	}
	for i := 1; i < len(recs); i++ {
		if !recs[i].StartTime.Before(recs[i-1].StartTime) {
			t.Fatalf("records not in descending order at %d", i)
		}
	}
}

func TestStore_QueryRecords_FastPathReturnsInsertionOrder(t *testing.T) {
	s := NewStore()
	seed(t, s, hourRecord(7200, "1"), hourRecord(0, "1"), hourRecord(3600, "1"))

	recs, err := s.QueryRecords(context.Background(), domain.Pipeline{domain.LimitStage(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 || recs[0].StartTime.Unix() != 7200 || recs[1].StartTime.Unix() != 0 {
		t.Fatalf("unexpected records: %+v", recs)
	}
}

func TestStore_QueryRecords_HugePageIsEmpty(t *testing.T) {
	s := NewStore()
	seed(t, s, hourRecord(0, "1"), hourRecord(3600, "1"))

	p, _ := usecase.NewPipelineBuilder().Build(domain.QueryParams{
		SortBy: "start_time",
		Page:   int64p(math.MaxInt64),
		Limit:  int64p(400),
	})
	recs, err := s.QueryRecords(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 0 {
		t.Fatalf("expected no records past the end, got %d", len(recs))
	}
}

func TestStore_QueryRecords_NegativeSkipCountsAsZero(t *testing.T) {
	s := NewStore()
	seed(t, s, hourRecord(0, "1"), hourRecord(3600, "1"))

	recs, err := s.QueryRecords(context.Background(), domain.Pipeline{domain.SkipStage(-432), domain.LimitStage(400)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected both records, got %d", len(recs))
	}
}

func TestStore_QueryRecords_RejectsGroupedPipeline(t *testing.T) {
	s := NewStore()
	p := domain.Pipeline{domain.GroupStage(domain.IntervalDay.BucketKey(), domain.NumericFields)}
	if _, err := s.QueryRecords(context.Background(), p); err == nil {
		t.Fatalf("expected error for grouped pipeline")
	}
}

// ------------------------------------------------------------
// BUCKET QUERIES
// ------------------------------------------------------------

func TestStore_QueryBuckets_DailyMeans(t *testing.T) {
	s := NewStore()
	day1 := time.Date(2022, 3, 22, 0, 0, 0, 0, time.UTC).Unix()
	day2 := time.Date(2022, 3, 23, 0, 0, 0, 0, time.UTC).Unix()
	seed(t, s,
		hourRecord(day1, "10"),
		hourRecord(day1+3600, "20"),
		hourRecord(day1+7200, "not-a-number"),
		hourRecord(day2, "100"),
	)

	b := usecase.NewPipelineBuilder()
	pipeline, _ := b.Build(domain.QueryParams{Interval: "day", SortBy: "start_time"})

	buckets, err := s.QueryBuckets(context.Background(), pipeline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}

	first := buckets[0]
	if first.Key != (domain.BucketKey{Year: 2022, Month: 3, Day: 22}) {
		t.Fatalf("unexpected key: %+v", first.Key)
	}
	avg := first.Average(domain.FieldAssetDepth)
	if avg == nil || *avg != 15 {
		t.Fatalf("expected mean 15, got %v", avg)
	}
	if first.StartTime.Unix() != day1 || first.EndTime.Unix() != day1+3*3600 {
		t.Fatalf("unexpected window: %s - %s", first.StartTime, first.EndTime)
	}
	if avg := first.Average(domain.FieldLuvi); avg != nil {
		t.Fatalf("expected nil mean for empty field, got %v", *avg)
	}

	if avg := buckets[1].Average(domain.FieldRuneDepth); avg == nil || *avg != 100 {
		t.Fatalf("expected mean 100 for second bucket, got %v", avg)
	}
}

func TestStore_QueryBuckets_ISOWeek(t *testing.T) {
	s := NewStore()
	// 2021-01-03 is a Sunday in ISO week 53 of 2020; 2021-01-04 opens week 1.
	seed(t, s,
		hourRecord(time.Date(2021, 1, 3, 12, 0, 0, 0, time.UTC).Unix(), "2"),
		hourRecord(time.Date(2021, 1, 4, 12, 0, 0, 0, time.UTC).Unix(), "4"),
	)

	p := domain.Pipeline{
		domain.GroupStage(domain.IntervalWeek.BucketKey(), domain.NumericFields),
		domain.SortStage(domain.FieldStartTime, false),
		domain.SkipStage(0),
		domain.LimitStage(10),
	}
	buckets, err := s.QueryBuckets(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 2 {
		t.Fatalf("expected 2 buckets, got %d", len(buckets))
	}
	if buckets[0].Key != (domain.BucketKey{Year: 2020, Week: 53}) {
		t.Fatalf("unexpected first key: %+v", buckets[0].Key)
	}
	if buckets[1].Key != (domain.BucketKey{Year: 2021, Week: 1}) {
		t.Fatalf("unexpected second key: %+v", buckets[1].Key)
	}
}

func TestStore_QueryBuckets_SortByMeanDescending(t *testing.T) {
	s := NewStore()
	seed(t, s,
		hourRecord(time.Date(2022, 1, 10, 0, 0, 0, 0, time.UTC).Unix(), "5"),
		hourRecord(time.Date(2022, 2, 10, 0, 0, 0, 0, time.UTC).Unix(), "50"),
		hourRecord(time.Date(2022, 3, 10, 0, 0, 0, 0, time.UTC).Unix(), "9"),
	)

	b := usecase.NewPipelineBuilder()
	pipeline, _ := b.Build(domain.QueryParams{Interval: "month", SortBy: "assetDepth", Order: "desc"})

	buckets, err := s.QueryBuckets(context.Background(), pipeline)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := []int{buckets[0].Key.Month, buckets[1].Key.Month, buckets[2].Key.Month}
	want := []int{2, 3, 1}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected month order %v, got %v", want, got)
		}
	}
}
