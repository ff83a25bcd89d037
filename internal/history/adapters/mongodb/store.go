// Package mongodb stores depth history in MongoDB and runs query pipelines
// as native aggregations.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/ports"
	"liquidity-history-service/internal/logging"
)

const (
	storeName = "mongo"

	// StateCollection holds one watermark document per ingestion stream.
	StateCollection = "ingestion_state"

	uniqueIndexName = "start_time_end_time_unique"
)

var log = logging.Component("store.mongo")

type depthDocument struct {
	StartTime      time.Time `bson:"start_time"`
	EndTime        time.Time `bson:"end_time"`
	AssetDepth     string    `bson:"asset_depth"`
	AssetPrice     string    `bson:"asset_price"`
	AssetPriceUSD  string    `bson:"asset_price_usd"`
	LiquidityUnits string    `bson:"liquidity_units"`
	Luvi           string    `bson:"luvi"`
	MembersCount   string    `bson:"members_count"`
	RuneDepth      string    `bson:"rune_depth"`
	SynthSupply    string    `bson:"synth_supply"`
	SynthUnits     string    `bson:"synth_units"`
	Units          string    `bson:"units"`
}

func toDocument(r domain.DepthRecord) depthDocument {
	return depthDocument{
		StartTime:      r.StartTime.UTC(),
		EndTime:        r.EndTime.UTC(),
		AssetDepth:     r.AssetDepth,
		AssetPrice:     r.AssetPrice,
		AssetPriceUSD:  r.AssetPriceUSD,
		LiquidityUnits: r.LiquidityUnits,
		Luvi:           r.Luvi,
		MembersCount:   r.MembersCount,
		RuneDepth:      r.RuneDepth,
		SynthSupply:    r.SynthSupply,
		SynthUnits:     r.SynthUnits,
		Units:          r.Units,
	}
}

func (d depthDocument) record() domain.DepthRecord {
	return domain.DepthRecord{
		StartTime:      d.StartTime.UTC(),
		EndTime:        d.EndTime.UTC(),
		AssetDepth:     d.AssetDepth,
		AssetPrice:     d.AssetPrice,
		AssetPriceUSD:  d.AssetPriceUSD,
		LiquidityUnits: d.LiquidityUnits,
		Luvi:           d.Luvi,
		MembersCount:   d.MembersCount,
		RuneDepth:      d.RuneDepth,
		SynthSupply:    d.SynthSupply,
		SynthUnits:     d.SynthUnits,
		Units:          d.Units,
	}
}

type bucketID struct {
	Year  int `bson:"year"`
	Month int `bson:"month"`
	Day   int `bson:"day"`
	Hour  int `bson:"hour"`
	Week  int `bson:"week"`
}

type bucketDocument struct {
	ID        bucketID  `bson:"_id"`
	StartTime time.Time `bson:"start_time"`
	EndTime   time.Time `bson:"end_time"`
	Averages  bson.M    `bson:",inline"`
}

type stateDocument struct {
	Stream    string    `bson:"_id"`
	Watermark int64     `bson:"watermark"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type Store struct {
	depths Collection
	state  Collection
	skips  ports.SkipRecorder
	now    func() time.Time
}

var _ ports.HistoryStore = (*Store)(nil)

func NewStore(depths, state Collection) *Store {
	return &Store{depths: depths, state: state, now: time.Now}
}

// NewStoreFromDatabase binds the store to collection and the ingestion
// state collection of db.
func NewStoreFromDatabase(db *mongo.Database, collection string) *Store {
	return NewStore(NewCollection(db.Collection(collection)), NewCollection(db.Collection(StateCollection)))
}

// WithSkipRecorder counts rows dropped while decoding query results.
func (s *Store) WithSkipRecorder(r ports.SkipRecorder) *Store {
	s.skips = r
	return s
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	keys := bson.D{
		{Key: domain.FieldStartTime, Value: 1},
		{Key: domain.FieldEndTime, Value: 1},
	}
	if err := s.depths.CreateUniqueIndex(ctx, uniqueIndexName, keys); err != nil {
		return fmt.Errorf("create %s index: %w", uniqueIndexName, err)
	}
	return nil
}

func (s *Store) UpsertDepth(ctx context.Context, r domain.DepthRecord) (bool, error) {
	doc := toDocument(r)
	filter := bson.D{
		{Key: domain.FieldStartTime, Value: doc.StartTime},
		{Key: domain.FieldEndTime, Value: doc.EndTime},
	}
	res, err := s.depths.Upsert(ctx, filter, bson.D{{Key: "$set", Value: doc}})
	if err != nil {
		return false, err
	}
	return res.Upserted > 0, nil
}

func (s *Store) LoadWatermark(ctx context.Context, stream string) (int64, bool, error) {
	var doc stateDocument
	found, err := s.state.FindOne(ctx, bson.D{{Key: "_id", Value: stream}}, &doc)
	if err != nil {
		return 0, false, fmt.Errorf("load watermark %s: %w", stream, err)
	}
	return doc.Watermark, found, nil
}

func (s *Store) SaveWatermark(ctx context.Context, stream string, ts int64) error {
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "watermark", Value: ts},
		{Key: "updated_at", Value: s.now().UTC()},
	}}}
	if _, err := s.state.Upsert(ctx, bson.D{{Key: "_id", Value: stream}}, update); err != nil {
		return fmt.Errorf("save watermark %s: %w", stream, err)
	}
	return nil
}

func (s *Store) QueryRecords(ctx context.Context, p domain.Pipeline) ([]domain.DepthRecord, error) {
	cur, err := s.depths.Aggregate(ctx, toMongoPipeline(p))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []domain.DepthRecord
	for cur.Next(ctx) {
		var doc depthDocument
		if err := cur.Decode(&doc); err != nil {
			s.skip("record", err)
			continue
		}
		out = append(out, doc.record())
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) QueryBuckets(ctx context.Context, p domain.Pipeline) ([]domain.DepthBucket, error) {
	cur, err := s.depths.Aggregate(ctx, toMongoPipeline(p))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	averaged := averagedFields(p)

	var out []domain.DepthBucket
	for cur.Next(ctx) {
		var doc bucketDocument
		if err := cur.Decode(&doc); err != nil {
			s.skip("bucket", err)
			continue
		}
		b := domain.DepthBucket{
			Key: domain.BucketKey{
				Year:  doc.ID.Year,
				Month: doc.ID.Month,
				Day:   doc.ID.Day,
				Hour:  doc.ID.Hour,
				Week:  doc.ID.Week,
			},
			StartTime: doc.StartTime.UTC(),
			EndTime:   doc.EndTime.UTC(),
			Averages:  make(map[string]*float64, len(averaged)),
		}
		for _, f := range averaged {
			b.Averages[f] = toFloat(doc.Averages[f])
		}
		out = append(out, b)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) skip(kind string, err error) {
	log.Warn("skipping undecodable row", "kind", kind, "error", err)
	if s.skips != nil {
		s.skips.RowSkipped(storeName)
	}
}

func averagedFields(p domain.Pipeline) []string {
	for _, st := range p {
		if st.Kind == domain.StageGroup {
			return st.Group.Averages
		}
	}
	return nil
}

func toFloat(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}
