package cachesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/escolar/core"
	"github.com/trezcool/escolar/core/dashboard"
	"github.com/trezcool/escolar/core/stats"
)

const (
	metricsPrefix = "escolar:metrics:"
	metricsIndex  = "escolar:metrics-keys"
)

// RedisCache stores institution metrics as JSON strings expiring after a TTL.
// Every key is tracked in a set so the whole cache can be invalidated at once.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ dashboard.Cache = (*RedisCache)(nil)

func NewRedisClient(conf *core.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Address,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
}

func NewRedisCache(client redis.UniversalClient, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func (c *RedisCache) GetMetrics(ctx context.Context, key string) (stats.InstitutionMetrics, error) {
	var metrics stats.InstitutionMetrics

	data, err := c.client.Get(ctx, metricsPrefix+key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return metrics, dashboard.ErrCacheMiss
		}
		return metrics, errors.Wrap(err, "redis GET")
	}
	if err := json.Unmarshal(data, &metrics); err != nil {
		return metrics, errors.Wrap(err, "decoding cached metrics")
	}
	return metrics, nil
}

func (c *RedisCache) SetMetrics(ctx context.Context, key string, metrics stats.InstitutionMetrics) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return errors.Wrap(err, "encoding metrics")
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, metricsPrefix+key, data, c.ttl)
		pipe.SAdd(ctx, metricsIndex, metricsPrefix+key)
		return nil
	})
	return errors.Wrap(err, "redis SET")
}

func (c *RedisCache) InvalidateMetrics(ctx context.Context) error {
	keys, err := c.client.SMembers(ctx, metricsIndex).Result()
	if err != nil {
		return errors.Wrap(err, "redis SMEMBERS")
	}
	keys = append(keys, metricsIndex)
	return errors.Wrap(c.client.Del(ctx, keys...).Err(), "redis DEL")
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
