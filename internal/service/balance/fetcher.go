package balance

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/amount"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/stacksapi"
)

// DefaultSBTCAssetKey 主网 sBTC 合约
const DefaultSBTCAssetKey = "SM3VDXK3WZZSA84XXFKAFAF15NNZX32CTSG82JFQ4.sbtc-token::sbtc-token"

type SessionSource interface {
	Current() model.WalletSession
}

type StacksBalanceSource interface {
	AddressBalances(ctx context.Context, addr string) (*stacksapi.AddressBalances, error)
}

type UTXOSource interface {
	SpendableSats(ctx context.Context, addr string) (int64, error)
}

// Fetcher keeps the last known balances of the connected wallet.
// STX/sBTC and BTC refresh independently; a failed branch keeps its previous value.
type Fetcher struct {
	session  SessionSource
	stacks   StacksBalanceSource
	utxos    UTXOSource
	assetKey string
	now      func() time.Time

	mu       sync.RWMutex
	balances model.Balances
}

func NewFetcher(session SessionSource, stacks StacksBalanceSource, utxos UTXOSource, sbtcAssetKey string) *Fetcher {
	if sbtcAssetKey == "" {
		sbtcAssetKey = DefaultSBTCAssetKey
	}
	return &Fetcher{
		session:  session,
		stacks:   stacks,
		utxos:    utxos,
		assetKey: sbtcAssetKey,
		now:      time.Now,
	}
}

// Refresh fetches both branches concurrently. No-op when signed out.
func (f *Fetcher) Refresh(ctx context.Context) {
	s := f.session.Current()
	if !s.SignedIn {
		return
	}

	var wg sync.WaitGroup
	if s.StacksAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.refreshStacks(ctx, s.StacksAddress)
		}()
	}
	if s.BitcoinAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.refreshBitcoin(ctx, s.BitcoinAddress)
		}()
	}
	wg.Wait()
}

func (f *Fetcher) refreshStacks(ctx context.Context, addr string) {
	res, err := f.stacks.AddressBalances(ctx, addr)
	if err != nil {
		f.fail("stacks", addr, err)
		return
	}
	micro, err := res.MicroSTX()
	if err != nil {
		f.fail("stacks", addr, err)
		return
	}
	// 没有 sBTC 记录按 0 处理
	raw, _, err := res.Token(f.assetKey)
	if err != nil {
		f.fail("stacks", addr, err)
		return
	}

	stx := amount.FromMicroSTX(micro)
	sbtc := amount.FromSats(raw)
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stillCurrent(addr, func(s model.WalletSession) string { return s.StacksAddress }) {
		return
	}
	f.balances.STX = &stx
	f.balances.SBTC = &sbtc
	f.balances.StacksUpdatedAt = &now
}

func (f *Fetcher) refreshBitcoin(ctx context.Context, addr string) {
	sats, err := f.utxos.SpendableSats(ctx, addr)
	if err != nil {
		f.fail("bitcoin", addr, err)
		return
	}

	btc := amount.FromSats(sats)
	now := f.now()

	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.stillCurrent(addr, func(s model.WalletSession) string { return s.BitcoinAddress }) {
		return
	}
	f.balances.BTC = &btc
	f.balances.BTCSats = &sats
	f.balances.BTCUpdatedAt = &now
}

// stillCurrent 调用方持有 f.mu. 请求期间退出或换了账户, 结果丢弃,
// 否则会在 Reset 之后把旧余额写回来.
func (f *Fetcher) stillCurrent(addr string, pick func(model.WalletSession) string) bool {
	s := f.session.Current()
	if s.SignedIn && pick(s) == addr {
		return true
	}
	logger.Debug("session changed during balance refresh, dropping result", zap.String("address", addr))
	return false
}

func (f *Fetcher) fail(branch, addr string, err error) {
	monitor.RecordBalanceError(branch)
	logger.Warn("balance refresh failed, keeping last known value",
		zap.String("branch", branch),
		zap.String("address", addr),
		zap.Error(err),
	)
}

// Snapshot returns a copy of the current balances.
func (f *Fetcher) Snapshot() model.Balances {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.balances
}

// BitcoinSats 未知时返回 false
func (f *Fetcher) BitcoinSats() (int64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.balances.BTCSats == nil {
		return 0, false
	}
	return *f.balances.BTCSats, true
}

// Reset clears all balances.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	f.balances = model.Balances{}
	f.mu.Unlock()
}

// OnSessionChange 退出登录清空, 地址变化时重新拉取
func (f *Fetcher) OnSessionChange(prev, next model.WalletSession) {
	if !next.SignedIn {
		f.Reset()
		return
	}
	if prev.StacksAddress != next.StacksAddress || prev.BitcoinAddress != next.BitcoinAddress {
		f.Reset()
	}
	go f.Refresh(context.Background())
}
