// Package fee fetches fee tiers and keeps them strictly ordered.
package fee

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/cache"
	"deposit-core/pkg/explorer"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/styx"
)

// DepositTxVSize 一笔存款交易 (1 input, 2 outputs + OP_RETURN) 的估算大小
const DepositTxVSize = 148

const cacheKey = "fees:estimates"

var tierTimes = [3]string{"~30 min", "~20 min", "~10 min"}

// EstimateVSize 70*in + 33*out + 12
func EstimateVSize(inputs, outputs int) int64 {
	return int64(70*inputs + 33*outputs + 12)
}

// Normalize re-separates the tiers so that medium >= low+1 and high >= medium+1.
// Missing (non-positive) rates fall back to 1, 2 and 5 sat/vB.
func Normalize(low, medium, high int64) model.FeeEstimates {
	if low <= 0 {
		low = 1
	}
	if medium <= 0 {
		medium = 2
	}
	medium = max(low+1, medium)
	if high <= 0 {
		high = 5
	}
	high = max(medium+1, high)

	return model.FeeEstimates{
		Low:    tier(low, tierTimes[0]),
		Medium: tier(medium, tierTimes[1]),
		High:   tier(high, tierTimes[2]),
	}
}

// Defaults is the table used when no estimator answers: 1/148, 2/296, 5/740.
func Defaults() model.FeeEstimates {
	return Normalize(1, 2, 5)
}

func tier(rate int64, t string) model.FeeTier {
	return model.FeeTier{Rate: rate, Fee: rate * DepositTxVSize, Time: t}
}

// Source 上游费率来源
type Source interface {
	Name() string
	Rates(ctx context.Context) (styx.FeeRates, error)
}

type StyxFeeClient interface {
	GetFeeEstimates(ctx context.Context) (*styx.FeeRates, error)
}

// StyxSource uses the deposit backend's estimator.
type StyxSource struct {
	Client StyxFeeClient
}

func (s StyxSource) Name() string { return "styx" }

func (s StyxSource) Rates(ctx context.Context) (styx.FeeRates, error) {
	r, err := s.Client.GetFeeEstimates(ctx)
	if err != nil {
		return styx.FeeRates{}, err
	}
	if r == nil {
		return styx.FeeRates{}, errors.New("empty fee estimates")
	}
	return *r, nil
}

type MempoolFeeClient interface {
	RecommendedFees(ctx context.Context) (*explorer.RecommendedFees, error)
}

// MempoolSource maps hourFee/halfHourFee/fastestFee to low/medium/high.
type MempoolSource struct {
	Client MempoolFeeClient
}

func (s MempoolSource) Name() string { return "mempool" }

func (s MempoolSource) Rates(ctx context.Context) (styx.FeeRates, error) {
	r, err := s.Client.RecommendedFees(ctx)
	if err != nil {
		return styx.FeeRates{}, err
	}
	if r == nil {
		return styx.FeeRates{}, errors.New("empty recommended fees")
	}
	return styx.FeeRates{Low: r.HourFee, Medium: r.HalfHourFee, High: r.FastestFee}, nil
}

// Service returns normalized tiers and never fails: on error it falls back to Defaults.
type Service struct {
	source Source
	cache  cache.Cache
	ttl    time.Duration
}

// NewService c may be nil to disable caching.
func NewService(source Source, c cache.Cache, ttl time.Duration) *Service {
	return &Service{source: source, cache: c, ttl: ttl}
}

// Estimates returns normalized tiers and whether they came from the default table.
func (s *Service) Estimates(ctx context.Context) (model.FeeEstimates, bool) {
	est, err := cache.Load(ctx, s.cache, cacheKey, s.ttl, func(ctx context.Context) (model.FeeEstimates, error) {
		rates, err := s.source.Rates(ctx)
		if err != nil {
			return model.FeeEstimates{}, err
		}
		return Normalize(rates.Low, rates.Medium, rates.High), nil
	})
	if err != nil {
		monitor.RecordFeeFallback()
		logger.Warn("fee estimate failed, using default tiers",
			zap.String("source", s.source.Name()),
			zap.Error(err),
		)
		return Defaults(), true
	}
	return est, false
}

// Rate returns the sat/vB rate for a priority.
func (s *Service) Rate(ctx context.Context, p model.FeePriority) int64 {
	est, _ := s.Estimates(ctx)
	return est.Tier(p).Rate
}

// Invalidate drops the cached tiers.
func (s *Service) Invalidate(ctx context.Context) error {
	if err := cache.Forget(ctx, s.cache, cacheKey); err != nil {
		return fmt.Errorf("invalidate fee cache: %w", err)
	}
	return nil
}
