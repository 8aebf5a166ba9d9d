package lock

import (
	"context"
	"errors"
	"time"
)

// ErrHeld Do 拿不到锁时返回
var ErrHeld = errors.New("lock held elsewhere")

// DistributedLock 同一个 key 同时只有一个持有者, ttl 到期自动释放
type DistributedLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// AttemptKey 同一个 Stacks 地址同时只允许一笔存款在确认
func AttemptKey(stacksAddress string) string {
	return "deposit:attempt:" + stacksAddress
}

// JobKey 多实例部署时定时任务只跑一份
func JobKey(job string) string {
	return "cron:" + job
}

// Do 拿到锁后执行 fn, 结束后释放. 释放用 WithoutCancel, ctx 超时也能解锁.
func Do(ctx context.Context, l DistributedLock, key string, ttl time.Duration, fn func(ctx context.Context) error) error {
	ok, err := l.Acquire(ctx, key, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrHeld
	}
	defer l.Release(context.WithoutCancel(ctx), key)
	return fn(ctx)
}
