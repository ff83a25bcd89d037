// Package rediscache caches query results in front of a history store.
package rediscache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"liquidity-history-service/internal/history/core/domain"
	"liquidity-history-service/internal/history/core/ports"
	"liquidity-history-service/internal/logging"
)

const (
	DefaultTTL = 5 * time.Minute

	keyPrefix     = "depths:"
	generationKey = keyPrefix + "generation"
)

var log = logging.Component("cache.redis")

// CachedStore serves repeated pipelines from redis. Writes pass through to
// the wrapped store; every saved watermark bumps a generation counter so
// entries cached before the write are no longer read. Redis failures fall
// back to the wrapped store.
type CachedStore struct {
	inner  ports.HistoryStore
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
}

var _ ports.HistoryStore = (*CachedStore)(nil)

func NewCachedStore(inner ports.HistoryStore, client *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &CachedStore{inner: inner, client: client, ttl: ttl}
}

// NewClient builds a client from a redis:// URL, falling back to a plain address.
func NewClient(rawURL string) *redis.Client {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		opts = &redis.Options{Addr: rawURL}
	}
	return redis.NewClient(opts)
}

// Ping verifies connectivity to Redis with a short timeout.
func Ping(ctx context.Context, client *redis.Client) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	if err := client.Ping(timeoutCtx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (c *CachedStore) QueryRecords(ctx context.Context, p domain.Pipeline) ([]domain.DepthRecord, error) {
	var out []domain.DepthRecord
	err := c.cached(ctx, "records", p, &out, func(ctx context.Context) (any, error) {
		return c.inner.QueryRecords(ctx, p)
	})
	return out, err
}

func (c *CachedStore) QueryBuckets(ctx context.Context, p domain.Pipeline) ([]domain.DepthBucket, error) {
	var out []domain.DepthBucket
	err := c.cached(ctx, "buckets", p, &out, func(ctx context.Context) (any, error) {
		return c.inner.QueryBuckets(ctx, p)
	})
	return out, err
}

func (c *CachedStore) UpsertDepth(ctx context.Context, r domain.DepthRecord) (bool, error) {
	return c.inner.UpsertDepth(ctx, r)
}

func (c *CachedStore) EnsureIndexes(ctx context.Context) error {
	return c.inner.EnsureIndexes(ctx)
}

func (c *CachedStore) LoadWatermark(ctx context.Context, stream string) (int64, bool, error) {
	return c.inner.LoadWatermark(ctx, stream)
}

func (c *CachedStore) SaveWatermark(ctx context.Context, stream string, ts int64) error {
	if err := c.inner.SaveWatermark(ctx, stream, ts); err != nil {
		return err
	}
	if err := c.client.Incr(ctx, generationKey).Err(); err != nil {
		log.Warn("bumping cache generation failed", "error", err)
	}
	return nil
}

// cached decodes a hit into dest, or runs load once per key across
// concurrent callers and stores its result. The shared load is detached from
// the caller that started it; each caller still stops waiting when its own
// ctx is done.
func (c *CachedStore) cached(ctx context.Context, kind string, p domain.Pipeline, dest any, load func(ctx context.Context) (any, error)) error {
	key := c.key(ctx, kind, p)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if jerr := json.Unmarshal(data, dest); jerr == nil {
			return nil
		}
		log.Warn("dropping undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		log.Warn("cache read failed", "key", key, "error", err)
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		res, err := load(loadCtx)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(res)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(loadCtx, key, encoded, c.ttl).Err(); err != nil {
			log.Warn("cache write failed", "key", key, "error", err)
		}
		return encoded, nil
	})

	select {
	case <-ctx.Done():
		return ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return r.Err
		}
		return json.Unmarshal(r.Val.([]byte), dest)
	}
}

func (c *CachedStore) key(ctx context.Context, kind string, p domain.Pipeline) string {
	gen, err := c.client.Get(ctx, generationKey).Result()
	if err != nil {
		gen = "0"
	}
	sum := sha256.Sum256([]byte(p.String()))
	return strings.Join([]string{keyPrefix + gen, kind, hex.EncodeToString(sum[:])}, ":")
}
