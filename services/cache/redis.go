package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/youknow/checklist/core"
)

const scanCount = 100

type redisCache struct {
	rc  redis.UniversalClient
	ttl time.Duration
}

var _ core.Cache = (*redisCache)(nil)

// NewRedisClient connects to the redis server of conf.Cache.
func NewRedisClient(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Cache.Address,
		Password: conf.Cache.Password,
		DB:       conf.Cache.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return client, nil
}

// NewRedisCache stores JSON encoded values in redis, expiring after ttl (never when 0).
func NewRedisCache(rc redis.UniversalClient, ttl time.Duration) core.Cache {
	return &redisCache{rc: rc, ttl: ttl}
}

func (c *redisCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.rc.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, errors.Wrapf(err, "getting %q", key)
	}
	if err = json.Unmarshal(data, dest); err != nil {
		return false, errors.Wrapf(err, "decoding %q", key)
	}
	return true, nil
}

func (c *redisCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %q", key)
	}
	return errors.Wrapf(c.rc.Set(ctx, key, data, c.ttl).Err(), "setting %q", key)
}

func (c *redisCache) DeletePrefix(ctx context.Context, prefix string) error {
	var cursor uint64
	for {
		keys, next, err := c.rc.Scan(ctx, cursor, prefix+"*", scanCount).Result()
		if err != nil {
			return errors.Wrapf(err, "scanning %q", prefix)
		}
		if len(keys) > 0 {
			if err = c.rc.Del(ctx, keys...).Err(); err != nil {
				return errors.Wrapf(err, "deleting %q keys", prefix)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}
