package balance

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/model"
	"deposit-core/pkg/stacksapi"
)

type fakeSession struct {
	mu sync.Mutex
	s  model.WalletSession
}

func (f *fakeSession) Current() model.WalletSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSession) set(s model.WalletSession) {
	f.mu.Lock()
	f.s = s
	f.mu.Unlock()
}

type fakeStacks struct {
	mu    sync.Mutex
	res   *stacksapi.AddressBalances
	err   error
	calls int
}

func (f *fakeStacks) AddressBalances(ctx context.Context, addr string) (*stacksapi.AddressBalances, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.res, f.err
}

func (f *fakeStacks) set(res *stacksapi.AddressBalances, err error) {
	f.mu.Lock()
	f.res, f.err = res, err
	f.mu.Unlock()
}

type fakeUTXO struct {
	mu    sync.Mutex
	sats  int64
	err   error
	calls int
}

func (f *fakeUTXO) SpendableSats(ctx context.Context, addr string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.sats, f.err
}

func (f *fakeUTXO) set(sats int64, err error) {
	f.mu.Lock()
	f.sats, f.err = sats, err
	f.mu.Unlock()
}

func (f *fakeUTXO) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func stacksBalances(t *testing.T, raw string) *stacksapi.AddressBalances {
	t.Helper()
	var b stacksapi.AddressBalances
	require.NoError(t, json.Unmarshal([]byte(raw), &b))
	return &b
}

func signedIn() *fakeSession {
	return &fakeSession{s: model.WalletSession{
		SignedIn:       true,
		StacksAddress:  "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7",
		BitcoinAddress: "bc1qar0srrr7xfkvy5l643lydnw9re59gtzzwf5mdq",
		ActiveProvider: model.ProviderXverse,
	}}
}

func TestRefreshConvertsUnits(t *testing.T) {
	stacks := &fakeStacks{res: stacksBalances(t, `{
		"stx": {"balance": "12500000"},
		"fungible_tokens": {"`+DefaultSBTCAssetKey+`": {"balance": "150000"}}
	}`)}
	utxos := &fakeUTXO{sats: 250000}
	f := NewFetcher(signedIn(), stacks, utxos, "")

	f.Refresh(context.Background())

	b := f.Snapshot()
	require.NotNil(t, b.STX)
	require.NotNil(t, b.SBTC)
	require.NotNil(t, b.BTC)
	assert.Equal(t, "12.5", b.STX.String())
	assert.Equal(t, "0.0015", b.SBTC.String())
	assert.Equal(t, "0.0025", b.BTC.String())
	assert.Equal(t, int64(250000), b.SpendableSats())
	assert.NotNil(t, b.StacksUpdatedAt)
	assert.NotNil(t, b.BTCUpdatedAt)
}

func TestMissingSBTCIsZero(t *testing.T) {
	stacks := &fakeStacks{res: stacksBalances(t, `{"stx": {"balance": "1"}, "fungible_tokens": {}}`)}
	f := NewFetcher(signedIn(), stacks, &fakeUTXO{}, "")

	f.Refresh(context.Background())

	b := f.Snapshot()
	require.NotNil(t, b.SBTC)
	assert.True(t, b.SBTC.IsZero())
}

func TestBranchFailureKeepsLastKnown(t *testing.T) {
	stacks := &fakeStacks{res: stacksBalances(t, `{"stx": {"balance": "2000000"}}`)}
	utxos := &fakeUTXO{sats: 1000}
	f := NewFetcher(signedIn(), stacks, utxos, "")
	ctx := context.Background()

	f.Refresh(ctx)

	stacks.set(nil, errors.New("proxy down"))
	utxos.set(5000, nil)
	f.Refresh(ctx)

	b := f.Snapshot()
	assert.Equal(t, "2", b.STX.String())
	assert.Equal(t, int64(5000), b.SpendableSats())

	utxos.set(0, errors.New("blockstream 503"))
	f.Refresh(ctx)
	assert.Equal(t, int64(5000), f.Snapshot().SpendableSats())
}

func TestRefreshSignedOutIsNoop(t *testing.T) {
	stacks := &fakeStacks{}
	utxos := &fakeUTXO{}
	f := NewFetcher(&fakeSession{s: model.SignedOut()}, stacks, utxos, "")

	f.Refresh(context.Background())

	assert.Zero(t, stacks.calls)
	assert.Zero(t, utxos.count())
	_, ok := f.BitcoinSats()
	assert.False(t, ok)
}

func TestOnSessionChange(t *testing.T) {
	session := signedIn()
	utxos := &fakeUTXO{sats: 42}
	f := NewFetcher(session, &fakeStacks{res: stacksBalances(t, `{}`)}, utxos, "")
	f.Refresh(context.Background())
	require.Equal(t, 1, utxos.count())

	f.OnSessionChange(session.s, model.SignedOut())
	assert.Equal(t, model.Balances{}, f.Snapshot())

	f.OnSessionChange(model.SignedOut(), session.s)
	assert.Eventually(t, func() bool {
		sats, ok := f.BitcoinSats()
		return ok && sats == 42
	}, time.Second, 10*time.Millisecond)
}

// gatedUTXO 阻塞到 release 关闭, 模拟慢请求
type gatedUTXO struct {
	started chan struct{}
	release chan struct{}
	sats    int64
}

func (g *gatedUTXO) SpendableSats(ctx context.Context, addr string) (int64, error) {
	close(g.started)
	<-g.release
	return g.sats, nil
}

func TestInFlightRefreshDroppedAfterSessionChange(t *testing.T) {
	tests := []struct {
		name string
		next func(model.WalletSession) model.WalletSession
	}{
		{"sign out", func(model.WalletSession) model.WalletSession { return model.SignedOut() }},
		{"account switch", func(s model.WalletSession) model.WalletSession {
			s.BitcoinAddress = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
			return s
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := signedIn()
			utxos := &gatedUTXO{started: make(chan struct{}), release: make(chan struct{}), sats: 42}
			f := NewFetcher(session, &fakeStacks{err: errors.New("unavailable")}, utxos, "")

			done := make(chan struct{})
			go func() {
				f.Refresh(context.Background())
				close(done)
			}()
			<-utxos.started

			session.set(tt.next(session.Current()))
			f.Reset()
			close(utxos.release)
			<-done

			_, ok := f.BitcoinSats()
			assert.False(t, ok)
			assert.Equal(t, model.Balances{}, f.Snapshot())
		})
	}
}
