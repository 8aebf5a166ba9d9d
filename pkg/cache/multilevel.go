package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deposit-core/pkg/logger"
)

// MultiLevelCache L1 进程内 + L2 Redis.
// 多个实例共享 L2, L1 的 TTL 不超过 localTTL, 所以实例之间最多差 localTTL 的旧数据.
type MultiLevelCache struct {
	local    Cache
	remote   Cache
	localTTL time.Duration
}

// NewMultiLevelCache localTTL <= 0 时取 30s
func NewMultiLevelCache(local, remote Cache, localTTL time.Duration) *MultiLevelCache {
	if localTTL <= 0 {
		localTTL = 30 * time.Second
	}
	return &MultiLevelCache{local: local, remote: remote, localTTL: localTTL}
}

func (m *MultiLevelCache) l1TTL(ttl time.Duration) time.Duration {
	if ttl > 0 && ttl < m.localTTL {
		return ttl
	}
	return m.localTTL
}

func (m *MultiLevelCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	// 先写 L2, 失败就不写 L1, 避免只有本实例看得到
	if err := m.remote.Set(ctx, key, value, ttl); err != nil {
		return err
	}
	if err := m.local.Set(ctx, key, value, m.l1TTL(ttl)); err != nil {
		logger.Warn("L1 cache set failed", zap.String("key", key), zap.Error(err))
	}
	return nil
}

func (m *MultiLevelCache) Get(ctx context.Context, key string, target interface{}) error {
	if err := m.local.Get(ctx, key, target); err == nil {
		return nil
	}

	err := m.remote.Get(ctx, key, target)
	switch {
	case err == nil:
		_ = m.local.Set(ctx, key, target, m.localTTL)
		return nil
	case err != ErrMiss:
		// Redis 挂了按 miss 处理, 上层会回源
		logger.Warn("L2 cache get failed", zap.String("key", key), zap.Error(err))
	}
	return ErrMiss
}

func (m *MultiLevelCache) Delete(ctx context.Context, key string) error {
	_ = m.local.Delete(ctx, key)
	return m.remote.Delete(ctx, key)
}
