package service

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/utils/lock"
)

type BalanceRefresher interface {
	Refresh(ctx context.Context)
}

type FeeWarmer interface {
	Invalidate(ctx context.Context) error
	Estimates(ctx context.Context) (model.FeeEstimates, bool)
}

type PoolWarmer interface {
	Refresh(ctx context.Context) (*styx.PoolStatus, error)
}

// CronService 定时刷新余额 / 预热手续费和流动性缓存
type CronService struct {
	cron   *cron.Cron
	locker lock.DistributedLock

	balanceSpec string
	balances    BalanceRefresher
	fees        FeeWarmer
	pool        PoolWarmer
}

// NewCronService balanceSpec 例如 "@every 60s"; fees / pool 可为 nil
func NewCronService(locker lock.DistributedLock, balanceSpec string, balances BalanceRefresher, fees FeeWarmer, pool PoolWarmer) *CronService {
	if balanceSpec == "" {
		balanceSpec = "@every 60s"
	}
	return &CronService{
		cron:        cron.New(),
		locker:      locker,
		balanceSpec: balanceSpec,
		balances:    balances,
		fees:        fees,
		pool:        pool,
	}
}

func (s *CronService) Start() error {
	if _, err := s.cron.AddFunc(s.balanceSpec, s.RefreshBalances); err != nil {
		return err
	}
	if s.fees != nil {
		if _, err := s.cron.AddFunc("@every 30s", s.WarmFees); err != nil {
			return err
		}
	}
	if s.pool != nil {
		if _, err := s.cron.AddFunc("@every 1m", s.WarmPool); err != nil {
			return err
		}
	}
	s.cron.Start()
	logger.Info("cron service started", zap.String("balance_refresh", s.balanceSpec))
	return nil
}

func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	logger.Info("cron service stopped")
}

// RefreshBalances 余额是每个实例自己的会话, 不加锁
func (s *CronService) RefreshBalances() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.balances.Refresh(ctx)
}

// WarmFees 共享缓存, 多实例只需要一个执行
func (s *CronService) WarmFees() {
	s.withLock(lock.JobKey("warm_fees"), 10*time.Second, func(ctx context.Context) {
		if err := s.fees.Invalidate(ctx); err != nil {
			logger.Debug("fee cache invalidate failed", zap.Error(err))
		}
		est, fallback := s.fees.Estimates(ctx)
		logger.Debug("fee estimates warmed",
			zap.Int64("low", est.Low.Rate),
			zap.Int64("medium", est.Medium.Rate),
			zap.Int64("high", est.High.Rate),
			zap.Bool("fallback", fallback))
	})
}

func (s *CronService) WarmPool() {
	s.withLock(lock.JobKey("warm_pool"), 10*time.Second, func(ctx context.Context) {
		if _, err := s.pool.Refresh(ctx); err != nil {
			logger.Warn("pool status warm-up failed", zap.Error(err))
		}
	})
}

func (s *CronService) withLock(key string, ttl time.Duration, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), ttl)
	defer cancel()

	err := lock.Do(ctx, s.locker, key, ttl, func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
	if err != nil {
		logger.Debug("cron job skipped", zap.String("key", key), zap.Error(err))
	}
}
