package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"liquidity-history-service/internal/history/core/domain"
)

// fakeResult implements sql.Result for tests.
type fakeResult struct {
	rowsAffected int64
}

func (f *fakeResult) LastInsertId() (int64, error) {
	return 0, errors.New("not implemented")
}

func (f *fakeResult) RowsAffected() (int64, error) {
	return f.rowsAffected, nil
}

// fakeRowScanner implements RowScanner for tests.
type fakeRowScanner struct {
	rows [][]any
	i    int
	err  error
}

func (f *fakeRowScanner) Next() bool {
	if f.i >= len(f.rows) {
		return false
	}
	f.i++
	return true
}

func (f *fakeRowScanner) Scan(dest ...any) error {
	row := f.rows[f.i-1]
	if len(dest) != len(row) {
		return errors.New("dest length mismatch")
	}
	for i := range dest {
		switch d := dest[i].(type) {
		case *int:
			v, ok := row[i].(int)
			if !ok {
				return errors.New("type assertion to int failed")
			}
			*d = v
		case *int64:
			v, ok := row[i].(int64)
			if !ok {
				return errors.New("type assertion to int64 failed")
			}
			*d = v
		case *bool:
			v, ok := row[i].(bool)
			if !ok {
				return errors.New("type assertion to bool failed")
			}
			*d = v
		case *string:
			v, ok := row[i].(string)
			if !ok {
				return errors.New("type assertion to string failed")
			}
			*d = v
		case *time.Time:
			v, ok := row[i].(time.Time)
			if !ok {
				return errors.New("type assertion to time.Time failed")
			}
			*d = v
		case *sql.NullFloat64:
			if err := d.Scan(row[i]); err != nil {
				return err
			}
		default:
			return errors.New("unsupported dest type")
		}
	}
	return nil
}

func (f *fakeRowScanner) Err() error {
	return f.err
}

func (f *fakeRowScanner) Close() error {
	return nil
}

// fakeDB implements DB for tests.
type fakeDB struct {
	QueryFn   func(ctx context.Context, query string, args ...any) (RowScanner, error)
	ExecFn    func(ctx context.Context, query string, args ...any) (sql.Result, error)
	lastQuery string
	lastArgs  []any
	execs     []string
}

func (f *fakeDB) QueryContext(ctx context.Context, query string, args ...any) (RowScanner, error) {
	f.lastQuery = query
	f.lastArgs = args
	if f.QueryFn != nil {
		return f.QueryFn(ctx, query, args...)
	}
	return &fakeRowScanner{}, nil
}

func (f *fakeDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	f.execs = append(f.execs, query)
	f.lastArgs = args
	if f.ExecFn != nil {
		return f.ExecFn(ctx, query, args...)
	}
	return &fakeResult{rowsAffected: 1}, nil
}

type countingSkips struct {
	n int
}

func (c *countingSkips) RowSkipped(store string) { c.n++ }

func recordRow(start time.Time, depth string) []any {
	row := []any{start, start.Add(time.Hour), depth}
	for i := 0; i < len(domain.NumericFields)-1; i++ {
		row = append(row, "")
	}
	return row
}

// ------------------------------------------------------------
// UPSERT
// ------------------------------------------------------------

func TestHistoryRepository_UpsertDepth_Created(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			if !strings.Contains(query, "INSERT INTO depth_history") {
				t.Fatalf("unexpected query: %s", query)
			}
			if !strings.Contains(query, "ON CONFLICT (start_time, end_time) DO UPDATE") {
				t.Fatalf("expected upsert on natural key: %s", query)
			}
			return &fakeRowScanner{rows: [][]any{{true}}}, nil
		},
	}
	repo := NewHistoryRepository(db)

	created, err := repo.UpsertDepth(context.Background(), domain.DepthRecord{
		StartTime:  time.Unix(1647910800, 0),
		EndTime:    time.Unix(1647914400, 0),
		AssetDepth: "42",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Fatalf("expected created=true")
	}
	if len(db.lastArgs) != 12 {
		t.Fatalf("expected 12 args, got %d", len(db.lastArgs))
	}
	if db.lastArgs[2] != "42" {
		t.Fatalf("expected asset_depth arg 42, got %v", db.lastArgs[2])
	}
}

func TestHistoryRepository_UpsertDepth_Updated(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: [][]any{{false}}}, nil
		},
	}
	repo := NewHistoryRepository(db)

	created, err := repo.UpsertDepth(context.Background(), domain.DepthRecord{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Fatalf("expected created=false for an existing key")
	}
}

func TestHistoryRepository_UpsertDepth_Error(t *testing.T) {
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return nil, errors.New("db error")
		},
	}
	repo := NewHistoryRepository(db)

	created, err := repo.UpsertDepth(context.Background(), domain.DepthRecord{})
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if created {
		t.Fatalf("expected created=false on error")
	}
}

// ------------------------------------------------------------
// WATERMARK + SCHEMA
// ------------------------------------------------------------

func TestHistoryRepository_Watermark(t *testing.T) {
	db := &fakeDB{}
	repo := NewHistoryRepository(db)

	_, found, err := repo.LoadWatermark(context.Background(), "depth_history")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Fatalf("expected no watermark")
	}

	db.QueryFn = func(ctx context.Context, query string, args ...any) (RowScanner, error) {
		return &fakeRowScanner{rows: [][]any{{int64(1647914400)}}}, nil
	}
	ts, found, err := repo.LoadWatermark(context.Background(), "depth_history")
	if err != nil || !found || ts != 1647914400 {
		t.Fatalf("unexpected watermark: ts=%d found=%v err=%v", ts, found, err)
	}

	if err := repo.SaveWatermark(context.Background(), "depth_history", 1647918000); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(db.execs[0], "INSERT INTO ingestion_state") {
		t.Fatalf("unexpected exec: %s", db.execs[0])
	}
	if db.lastArgs[0] != "depth_history" || db.lastArgs[1] != int64(1647918000) {
		t.Fatalf("unexpected args: %v", db.lastArgs)
	}
}

func TestHistoryRepository_EnsureIndexes(t *testing.T) {
	db := &fakeDB{}
	repo := NewHistoryRepository(db)

	if err := repo.EnsureIndexes(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(db.execs) != len(schemaStatements) {
		t.Fatalf("expected %d statements, got %d", len(schemaStatements), len(db.execs))
	}
	if !strings.Contains(db.execs[1], "UNIQUE INDEX") {
		t.Fatalf("expected unique index statement, got %s", db.execs[1])
	}
}

// ------------------------------------------------------------
// QUERIES
// ------------------------------------------------------------

func TestHistoryRepository_QueryRecords_SkipsBadRows(t *testing.T) {
	start := time.Date(2022, 3, 22, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			return &fakeRowScanner{rows: [][]any{
				recordRow(start, "10"),
				{"broken"},
				recordRow(start.Add(time.Hour), "20"),
			}}, nil
		},
	}
	skips := &countingSkips{}
	repo := NewHistoryRepository(db).WithSkipRecorder(skips)

	recs, err := repo.QueryRecords(context.Background(), domain.Pipeline{domain.LimitStage(400)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	if recs[1].AssetDepth != "20" {
		t.Fatalf("unexpected second record: %+v", recs[1])
	}
	if skips.n != 1 {
		t.Fatalf("expected 1 skipped row, got %d", skips.n)
	}
}

func TestHistoryRepository_QueryBuckets(t *testing.T) {
	start := time.Date(2022, 3, 22, 0, 0, 0, 0, time.UTC)
	db := &fakeDB{
		QueryFn: func(ctx context.Context, query string, args ...any) (RowScanner, error) {
			row := []any{2022, 3, 22, 0, 0, start, start.Add(24 * time.Hour), 15.5}
			for i := 1; i < len(domain.NumericFields); i++ {
				row = append(row, nil)
			}
			return &fakeRowScanner{rows: [][]any{row}}, nil
		},
	}
	repo := NewHistoryRepository(db)

	p := domain.Pipeline{
		domain.GroupStage(domain.IntervalDay.BucketKey(), domain.NumericFields),
		domain.SkipStage(0),
		domain.LimitStage(24),
	}
	buckets, err := repo.QueryBuckets(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buckets) != 1 {
		t.Fatalf("expected 1 bucket, got %d", len(buckets))
	}
	b := buckets[0]
	if b.Key != (domain.BucketKey{Year: 2022, Month: 3, Day: 22}) {
		t.Fatalf("unexpected key: %+v", b.Key)
	}
	if avg := b.Average(domain.FieldAssetDepth); avg == nil || *avg != 15.5 {
		t.Fatalf("expected asset_depth mean 15.5, got %v", avg)
	}
	if avg := b.Average(domain.FieldUnits); avg != nil {
		t.Fatalf("expected nil units mean, got %v", *avg)
	}
	if !strings.Contains(db.lastQuery, "GROUP BY") {
		t.Fatalf("expected grouped query: %s", db.lastQuery)
	}
}

func TestHistoryRepository_QueryRecords_RejectsGroupedPipeline(t *testing.T) {
	repo := NewHistoryRepository(&fakeDB{})
	p := domain.Pipeline{domain.GroupStage(domain.IntervalDay.BucketKey(), domain.NumericFields)}
	if _, err := repo.QueryRecords(context.Background(), p); err == nil {
		t.Fatalf("expected error for grouped pipeline")
	}
}
