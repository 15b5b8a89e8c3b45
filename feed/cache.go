package feed

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var ErrCacheMiss = errors.New("cache miss")

// TTL is the staleness bound for a cached feed page.
const TTL = 60 * time.Second

// Cache stores materialized feed pages keyed by page number. It never computes
// pages itself; the Service owns population. Implementations must treat the
// cache as disposable: any error is recoverable by reading the store directly.
type Cache interface {
	Get(ctx context.Context, page int) ([]Entry, error)
	Put(ctx context.Context, page int, entries []Entry) error
	Invalidate(ctx context.Context, page int) error
	InvalidateAll(ctx context.Context) error
}

type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{Client: client, TTL: TTL}
}

func (rc *RedisCache) key(page int) string {
	return "feed:" + strconv.Itoa(page)
}

func (rc *RedisCache) Get(ctx context.Context, page int) ([]Entry, error) {
	res, err := rc.Client.Get(ctx, rc.key(page)).Result()
	if err == redis.Nil {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(res), &entries); err != nil {
		return nil, ErrCacheMiss
	}
	return entries, nil
}

func (rc *RedisCache) Put(ctx context.Context, page int, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return err
	}
	return rc.Client.Set(ctx, rc.key(page), string(raw), rc.TTL).Err()
}

func (rc *RedisCache) Invalidate(ctx context.Context, page int) error {
	return rc.Client.Del(ctx, rc.key(page)).Err()
}

func (rc *RedisCache) InvalidateAll(ctx context.Context) error {
	keys, err := rc.Client.Keys(ctx, "feed:*").Result()
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return rc.Client.Del(ctx, keys...).Err()
}
