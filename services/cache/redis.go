package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/timetable"
)

const keyPrefix = "ratiba:catalog:"

// RedisCache shares catalogs between API instances through Redis.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

var _ timetable.CatalogCache = (*RedisCache)(nil)

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient connects to the configured Redis server. It returns a nil client when no address is configured.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	if conf.Redis.Addr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

func key(schoolID string) string {
	return keyPrefix + schoolID
}

func (c *RedisCache) Get(ctx context.Context, schoolID string) (timetable.Catalog, bool, error) {
	data, err := c.client.Get(ctx, key(schoolID)).Bytes()
	if err == redis.Nil {
		return timetable.Catalog{}, false, nil
	}
	if err != nil {
		return timetable.Catalog{}, false, errors.Wrap(err, "getting catalog")
	}

	var cat timetable.Catalog
	if err = json.Unmarshal(data, &cat); err != nil {
		return timetable.Catalog{}, false, errors.Wrap(err, "decoding catalog")
	}
	return cat, true, nil
}

func (c *RedisCache) Set(ctx context.Context, catalog timetable.Catalog) error {
	data, err := json.Marshal(catalog)
	if err != nil {
		return errors.Wrap(err, "encoding catalog")
	}
	return errors.Wrap(c.client.Set(ctx, key(catalog.SchoolID), data, c.ttl).Err(), "setting catalog")
}

func (c *RedisCache) Invalidate(ctx context.Context, schoolID string) error {
	return errors.Wrap(c.client.Del(ctx, key(schoolID)).Err(), "deleting catalog")
}
