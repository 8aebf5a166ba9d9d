package cache

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"deposit-core/pkg/monitor"
)

// ErrMiss is returned by Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Cache 定义通用缓存接口 (fee tiers / pool status / balances 快照)
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Get 把命中的值 Unmarshal 到 target; 不存在返回 ErrMiss
	Get(ctx context.Context, key string, target interface{}) error
	Delete(ctx context.Context, key string) error
}

var loads singleflight.Group

// Load 读穿透: 命中直接返回, 未命中时同一个 key 只有一个调用方去 fetch, 其余等结果.
// c 为 nil 时每次都 fetch. 写缓存失败不影响返回值.
func Load[T any](ctx context.Context, c Cache, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, error) {
	var v T
	if c != nil {
		if err := c.Get(ctx, key, &v); err == nil {
			monitor.RecordCacheLookup(family(key), true)
			return v, nil
		}
		monitor.RecordCacheLookup(family(key), false)
	}

	res, err, _ := loads.Do(key, func() (interface{}, error) {
		fresh, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if c != nil && ttl > 0 {
			_ = c.Set(ctx, key, fresh, ttl)
		}
		return fresh, nil
	})
	if err != nil {
		return v, err
	}
	return res.(T), nil
}

// family 取 key 的第一段 ("fees:estimates" -> "fees"), 用作指标 label
func family(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}

// Forget 让下一次 Load 一定走 fetch (cron 预热用)
func Forget(ctx context.Context, c Cache, key string) error {
	loads.Forget(key)
	if c == nil {
		return nil
	}
	return c.Delete(ctx, key)
}
