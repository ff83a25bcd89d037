package mongodb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/usecase"
)

// fakeCursor replays documents through a real bson round trip.
type fakeCursor struct {
	docs   []any
	pos    int
	err    error
	closed bool
}

func (c *fakeCursor) Next(ctx context.Context) bool {
	if c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *fakeCursor) Decode(v any) error {
	raw, err := bson.Marshal(c.docs[c.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

func (c *fakeCursor) Err() error { return c.err }

func (c *fakeCursor) Close(ctx context.Context) error {
	c.closed = true
	return nil
}

type upsertCall struct {
	filter any
	update any
}

type fakeCollection struct {
	docs       []any
	aggErr     error
	upsertRes  UpdateResult
	upsertErr  error
	findDoc    any
	lastPipe   mongo.Pipeline
	upserts    []upsertCall
	indexName  string
	indexKeys  bson.D
	lastCursor *fakeCursor
}

func (f *fakeCollection) Aggregate(ctx context.Context, pipeline mongo.Pipeline) (Cursor, error) {
	f.lastPipe = pipeline
	if f.aggErr != nil {
		return nil, f.aggErr
	}
	f.lastCursor = &fakeCursor{docs: f.docs}
	return f.lastCursor, nil
}

func (f *fakeCollection) Upsert(ctx context.Context, filter, update any) (UpdateResult, error) {
	f.upserts = append(f.upserts, upsertCall{filter: filter, update: update})
	return f.upsertRes, f.upsertErr
}

func (f *fakeCollection) FindOne(ctx context.Context, filter any, v any) (bool, error) {
	if f.findDoc == nil {
		return false, nil
	}
	raw, err := bson.Marshal(f.findDoc)
	if err != nil {
		return false, err
	}
	return true, bson.Unmarshal(raw, v)
}

func (f *fakeCollection) CreateUniqueIndex(ctx context.Context, name string, keys bson.D) error {
	f.indexName = name
	f.indexKeys = keys
	return nil
}

type countingSkips struct {
	n     int
	store string
}

func (c *countingSkips) RowSkipped(store string) {
	c.n++
	c.store = store
}

func storedDepth(start int64, depth string) bson.M {
	return bson.M{
		"start_time":  time.Unix(start, 0).UTC(),
		"end_time":    time.Unix(start+3600, 0).UTC(),
		"asset_depth": depth,
		"rune_depth":  "7",
	}
}

// ------------------------------------------------------------
// QUERIES
// ------------------------------------------------------------

func TestStore_QueryRecords_DecodesAndSkipsBadRows(t *testing.T) {
	depths := &fakeCollection{docs: []any{
		storedDepth(1647910800, "100"),
		bson.M{"start_time": "not a date", "end_time": 5},
		storedDepth(1647914400, "200"),
	}}
	skips := &countingSkips{}
	s := NewStore(depths, &fakeCollection{}).WithSkipRecorder(skips)

	recs, err := s.QueryRecords(context.Background(), domain.Pipeline{domain.LimitStage(400)})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "100", recs[0].AssetDepth)
	require.Equal(t, "7", recs[0].RuneDepth)
	require.Equal(t, int64(1647914400), recs[1].StartTime.Unix())
	require.Equal(t, 1, skips.n)
	require.Equal(t, "mongo", skips.store)
	require.True(t, depths.lastCursor.closed)
}

func TestStore_QueryRecords_AggregateError(t *testing.T) {
	depths := &fakeCollection{aggErr: errors.New("connection reset")}
	s := NewStore(depths, &fakeCollection{})

	_, err := s.QueryRecords(context.Background(), domain.Pipeline{domain.LimitStage(1)})
	require.Error(t, err)
}

func TestStore_QueryBuckets_DecodesAverages(t *testing.T) {
	depths := &fakeCollection{docs: []any{
		bson.M{
			"_id":         bson.M{"year": int32(2022), "month": int32(3), "day": int32(22)},
			"start_time":  time.Date(2022, 3, 22, 0, 0, 0, 0, time.UTC),
			"end_time":    time.Date(2022, 3, 23, 0, 0, 0, 0, time.UTC),
			"asset_depth": 15.5,
			"luvi":        nil,
		},
	}}
	s := NewStore(depths, &fakeCollection{})

	b := usecase.NewPipelineBuilder()
	pipeline, _ := b.Build(domain.QueryParams{Interval: "day"})

	buckets, err := s.QueryBuckets(context.Background(), pipeline)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, domain.BucketKey{Year: 2022, Month: 3, Day: 22}, buckets[0].Key)
	require.NotNil(t, buckets[0].Average(domain.FieldAssetDepth))
	require.InDelta(t, 15.5, *buckets[0].Average(domain.FieldAssetDepth), 1e-9)
	require.Nil(t, buckets[0].Average(domain.FieldLuvi))
	require.Nil(t, buckets[0].Average(domain.FieldUnits))
	require.Len(t, buckets[0].Averages, len(domain.NumericFields))
}

// ------------------------------------------------------------
// WRITES
// ------------------------------------------------------------

func TestStore_UpsertDepth(t *testing.T) {
	depths := &fakeCollection{upsertRes: UpdateResult{Upserted: 1}}
	s := NewStore(depths, &fakeCollection{})

	rec := domain.DepthRecord{
		StartTime:  time.Unix(1647910800, 0),
		EndTime:    time.Unix(1647914400, 0),
		AssetDepth: "123",
	}
	created, err := s.UpsertDepth(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)

	depths.upsertRes = UpdateResult{Matched: 1}
	created, err = s.UpsertDepth(context.Background(), rec)
	require.NoError(t, err)
	require.False(t, created)

	filter := depths.upserts[0].filter.(bson.D)
	require.Equal(t, domain.FieldStartTime, filter[0].Key)
	require.Equal(t, time.Unix(1647910800, 0).UTC(), filter[0].Value)
	require.Equal(t, domain.FieldEndTime, filter[1].Key)
}

func TestStore_UpsertDepth_Error(t *testing.T) {
	depths := &fakeCollection{upsertErr: errors.New("write concern")}
	s := NewStore(depths, &fakeCollection{})

	created, err := s.UpsertDepth(context.Background(), domain.DepthRecord{})
	require.Error(t, err)
	require.False(t, created)
}

func TestStore_EnsureIndexes(t *testing.T) {
	depths := &fakeCollection{}
	s := NewStore(depths, &fakeCollection{})

	require.NoError(t, s.EnsureIndexes(context.Background()))
	require.Equal(t, uniqueIndexName, depths.indexName)
	require.Equal(t, bson.D{{Key: "start_time", Value: 1}, {Key: "end_time", Value: 1}}, depths.indexKeys)
}

func TestStore_Watermark(t *testing.T) {
	state := &fakeCollection{}
	s := NewStore(&fakeCollection{}, state)

	_, found, err := s.LoadWatermark(context.Background(), "depth_history")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, s.SaveWatermark(context.Background(), "depth_history", 1647914400))
	require.Len(t, state.upserts, 1)
	require.Equal(t, bson.D{{Key: "_id", Value: "depth_history"}}, state.upserts[0].filter)

	state.findDoc = bson.M{"_id": "depth_history", "watermark": int64(1647914400)}
	ts, found, err := s.LoadWatermark(context.Background(), "depth_history")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, int64(1647914400), ts)
}
