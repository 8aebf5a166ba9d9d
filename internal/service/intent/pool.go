package intent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deposit-core/pkg/cache"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/styx"
)

type PoolClient interface {
	GetPoolStatus(ctx context.Context, poolID string) (*styx.PoolStatus, error)
}

// CachedPool 池子状态短时间缓存, 表单每次校验都会读
type CachedPool struct {
	client PoolClient
	poolID string
	cache  cache.Cache
	ttl    time.Duration
}

func NewCachedPool(client PoolClient, poolID string, c cache.Cache, ttl time.Duration) *CachedPool {
	return &CachedPool{client: client, poolID: poolID, cache: c, ttl: ttl}
}

func (p *CachedPool) key() string {
	if p.poolID == "" {
		return "pool:status:default"
	}
	return "pool:status:" + p.poolID
}

func (p *CachedPool) PoolStatus(ctx context.Context) (*styx.PoolStatus, error) {
	return cache.Load(ctx, p.cache, p.key(), p.ttl, func(ctx context.Context) (*styx.PoolStatus, error) {
		return p.client.GetPoolStatus(ctx, p.poolID)
	})
}

// Refresh fetches the pool status and overwrites the cached copy.
func (p *CachedPool) Refresh(ctx context.Context) (*styx.PoolStatus, error) {
	status, err := p.client.GetPoolStatus(ctx, p.poolID)
	if err != nil {
		return nil, err
	}
	if p.cache != nil && p.ttl > 0 {
		if err := p.cache.Set(ctx, p.key(), status, p.ttl); err != nil {
			logger.Warn("cache pool status failed", zap.Error(err))
		}
	}
	return status, nil
}
