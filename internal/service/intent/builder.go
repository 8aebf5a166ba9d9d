// Package intent validates raw form input into a DepositIntent.
package intent

import (
	"context"

	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/internal/service/fee"
	"deposit-core/pkg/amount"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/styx"
)

type SessionSource interface {
	Current() model.WalletSession
}

type BalanceSource interface {
	BitcoinSats() (int64, bool)
}

type PoolStatusSource interface {
	PoolStatus(ctx context.Context) (*styx.PoolStatus, error)
}

type FeeEstimator interface {
	Estimates(ctx context.Context) (model.FeeEstimates, bool)
}

// Limits 协议限制, 单位 sats
type Limits struct {
	MinSats               int64
	MaxSats               int64
	NetworkFeeReserveSats int64
	MaxAmountFallbackSats int64
}

func DefaultLimits() Limits {
	return Limits{
		MinSats:               10_000,
		MaxSats:               1_000_000,
		NetworkFeeReserveSats: 6_000,
		MaxAmountFallbackSats: 600,
	}
}

type Builder struct {
	session  SessionSource
	balances BalanceSource
	pool     PoolStatusSource
	fees     FeeEstimator
	limits   Limits
}

func NewBuilder(session SessionSource, balances BalanceSource, pool PoolStatusSource, fees FeeEstimator, limits Limits) *Builder {
	return &Builder{
		session:  session,
		balances: balances,
		pool:     pool,
		fees:     fees,
		limits:   limits,
	}
}

// Build runs the checks in order and stops at the first failure.
func (b *Builder) Build(ctx context.Context, rawAmount string, priority model.FeePriority) (model.DepositIntent, error) {
	// 1. 金额
	btc, err := amount.ParseBTC(rawAmount)
	if err != nil || !btc.IsPositive() {
		return model.DepositIntent{}, errno.ErrInvalidAmount
	}

	// 2. 登录 + Stacks 地址
	s := b.session.Current()
	if !s.SignedIn || s.StacksAddress == "" {
		return model.DepositIntent{}, errno.ErrNotConnected
	}

	// 3. BTC 地址
	if s.BitcoinAddress == "" {
		return model.DepositIntent{}, errno.ErrNoBitcoinAddress
	}

	// 4. 协议上下限
	sats, err := amount.ToSats(btc)
	if err != nil {
		return model.DepositIntent{}, errno.ErrAboveMaximum.WithDetailf(
			"During beta, the maximum deposit amount is %s BTC. Thank you for your understanding.", amount.Trim(b.limits.MaxSats))
	}
	if sats < b.limits.MinSats {
		return model.DepositIntent{}, errno.ErrBelowMinimum.WithDetailf("Please deposit at least %s BTC", amount.Trim(b.limits.MinSats))
	}
	if sats > b.limits.MaxSats {
		return model.DepositIntent{}, errno.ErrAboveMaximum.WithDetailf(
			"During beta, the maximum deposit amount is %s BTC. Thank you for your understanding.", amount.Trim(b.limits.MaxSats))
	}

	// 5. 池子流动性, 拿不到就跳过
	if err := b.checkLiquidity(ctx, sats); err != nil {
		return model.DepositIntent{}, err
	}

	// 6. 余额 >= 金额 + 预留手续费
	balance, _ := b.balances.BitcoinSats()
	required := sats + b.limits.NetworkFeeReserveSats
	if balance < required {
		return model.DepositIntent{}, errno.ErrInsufficientFunds.WithDetailf(
			"You need %s BTC more to complete this transaction.", amount.FormatSats(required-balance))
	}

	if priority == "" {
		priority = styx.FeeMedium
	}
	return model.DepositIntent{
		AmountBTC:   amount.FormatSats(sats),
		AmountSats:  sats,
		FeePriority: priority,
	}, nil
}

func (b *Builder) checkLiquidity(ctx context.Context, sats int64) error {
	if b.pool == nil {
		return nil
	}
	status, err := b.pool.PoolStatus(ctx)
	if err != nil || status == nil {
		logger.Warn("pool status unavailable, skipping liquidity check", zap.Error(err))
		return nil
	}
	if sats > status.EstimatedAvailable {
		return errno.ErrInsufficientLiquidity.WithDetailf(
			"The pool currently has %s BTC available. Please try a smaller amount.", amount.Trim(status.EstimatedAvailable))
	}
	return nil
}

// MaxAmount is the spendable balance minus the fee of a 1-in/2-out transaction at the
// medium rate, floored at zero and rendered with 8 decimals.
func (b *Builder) MaxAmount(ctx context.Context) (string, int64) {
	balance, _ := b.balances.BitcoinSats()

	networkFee := b.limits.MaxAmountFallbackSats
	if b.fees != nil {
		est, fallback := b.fees.Estimates(ctx)
		if !fallback {
			networkFee = fee.EstimateVSize(1, 2) * est.Medium.Rate
		}
	}

	maxSats := max(balance-networkFee, 0)
	return amount.FormatSats(maxSats), maxSats
}
