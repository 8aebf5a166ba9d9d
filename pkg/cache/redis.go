package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache 多实例共享的 L2. prefix 里带上网络名, mainnet/testnet 共用一个 Redis 也不会串.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

// jitter 最多加 10%, 多个实例同时写的 key 不会同一刻过期
func jitter(ttl time.Duration) time.Duration {
	if ttl < 10*time.Second {
		return ttl
	}
	return ttl + time.Duration(rand.Int64N(int64(ttl/10)))
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return c.client.Set(ctx, c.prefix+key, raw, jitter(ttl)).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, target interface{}) error {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrMiss
	case err != nil:
		return err
	}
	if err := json.Unmarshal(raw, target); err != nil {
		// 结构体改过字段, 旧值当作 miss
		_ = c.client.Del(ctx, c.prefix+key).Err()
		return ErrMiss
	}
	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.prefix+key).Err()
}
