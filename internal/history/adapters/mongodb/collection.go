package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"liquidity-history-service/internal/history/core/domain"
)

type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// UpdateResult carries the counters of an upserting update.
type UpdateResult struct {
	Matched  int64
	Upserted int64
}

// Collection is the subset of a mongo collection the store needs.
type Collection interface {
	Aggregate(ctx context.Context, pipeline mongo.Pipeline) (Cursor, error)
	Upsert(ctx context.Context, filter, update any) (UpdateResult, error)
	// FindOne decodes the first match into v; found is false when nothing matched.
	FindOne(ctx context.Context, filter any, v any) (found bool, err error)
	CreateUniqueIndex(ctx context.Context, name string, keys bson.D) error
}

type driverCollection struct {
	coll *mongo.Collection
}

func NewCollection(coll *mongo.Collection) Collection {
	return &driverCollection{coll: coll}
}

func (c *driverCollection) Aggregate(ctx context.Context, pipeline mongo.Pipeline) (Cursor, error) {
	cur, err := c.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func (c *driverCollection) Upsert(ctx context.Context, filter, update any) (UpdateResult, error) {
	res, err := c.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return UpdateResult{}, err
	}
	return UpdateResult{Matched: res.MatchedCount, Upserted: res.UpsertedCount}, nil
}

func (c *driverCollection) FindOne(ctx context.Context, filter any, v any) (bool, error) {
	err := c.coll.FindOne(ctx, filter).Decode(v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *driverCollection) CreateUniqueIndex(ctx context.Context, name string, keys bson.D) error {
	_, err := c.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    keys,
		Options: options.Index().SetName(name).SetUnique(true),
	})
	return err
}

// Connect opens a client and pings the primary.
func Connect(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: connect mongo: %v", domain.ErrStoreUnavailable, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("%w: ping mongo: %v", domain.ErrStoreUnavailable, err)
	}
	return client, nil
}
