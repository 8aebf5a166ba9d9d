package cache

import (
	"context"
	"encoding/json"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache 进程内缓存, 没有 Redis 时整个服务只用它
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(defaultExpiration, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{c: gocache.New(defaultExpiration, cleanupInterval)}
}

// Set 存 JSON, 读出来的是副本, 调用方改了也不会污染缓存.
// ttl <= 0 时用构造时的默认过期时间.
func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	m.c.Set(key, raw, ttl)
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, target interface{}) error {
	val, ok := m.c.Get(key)
	if !ok {
		return ErrMiss
	}
	raw, ok := val.([]byte)
	if !ok {
		m.c.Delete(key)
		return ErrMiss
	}
	return json.Unmarshal(raw, target)
}

func (m *MemoryCache) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

// Len 当前未过期的条目数
func (m *MemoryCache) Len() int {
	return m.c.ItemCount()
}
