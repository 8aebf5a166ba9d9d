package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/address"
	"deposit-core/pkg/localstore"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
)

const btcRequestTimeout = 30 * time.Second

// Listener 会话变化回调, 只在变化时触发
type Listener func(prev, next model.WalletSession)

// Tracker derives the wallet session from the local store on a fixed interval.
type Tracker struct {
	store    localstore.Store
	network  *address.Network
	interval time.Duration
	leather  AddressRequester

	mu sync.RWMutex
	// 每个 Stacks 地址只向 Leather 请求一次 BTC 地址
	btcRequested string
	current      model.WalletSession
	listeners    map[int]Listener
	nextID       int
}

type Option func(*Tracker)

// WithInterval overrides the 1s poll interval.
func WithInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.interval = d
		}
	}
}

// WithLeather lets the tracker fetch the BTC address of a Leather session
// that connected without one.
func WithLeather(r AddressRequester) Option {
	return func(t *Tracker) {
		t.leather = r
	}
}

func NewTracker(store localstore.Store, network *address.Network, opts ...Option) *Tracker {
	t := &Tracker{
		store:     store,
		network:   network,
		interval:  time.Second,
		current:   model.SignedOut(),
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start polls until ctx is done.
func (t *Tracker) Start(ctx context.Context) {
	logger.Info("session tracker started", zap.Duration("interval", t.interval))
	t.Poll(ctx)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("session tracker stopped")
			return
		case <-ticker.C:
			t.Poll(ctx)
		}
	}
}

// Poll re-derives the session once and reports whether it changed.
func (t *Tracker) Poll(ctx context.Context) bool {
	next, err := t.read(ctx)
	if err != nil {
		// 数据损坏时保持原状态
		logger.Error("read wallet session failed", zap.Error(err))
		return false
	}
	next = t.resolveBitcoin(ctx, next)

	t.mu.Lock()
	prev := t.current
	if prev == next {
		t.mu.Unlock()
		return false
	}
	t.current = next
	listeners := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	monitor.RecordSessionChange()
	logger.Info("wallet session changed",
		zap.Bool("signed_in", next.SignedIn),
		zap.String("stx_address", next.StacksAddress),
		zap.String("btc_address", next.BitcoinAddress),
		zap.String("provider", string(next.ActiveProvider)),
	)

	for _, l := range listeners {
		l(prev, next)
	}
	return true
}

func (t *Tracker) read(ctx context.Context) (model.WalletSession, error) {
	raw, ok, err := t.store.Get(ctx, localstore.KeyAddresses)
	if err != nil {
		return model.WalletSession{}, err
	}
	if !ok || len(raw) == 0 {
		return model.SignedOut(), nil
	}

	var entries []model.AddressEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return model.WalletSession{}, fmt.Errorf("malformed %q: %w", localstore.KeyAddresses, err)
	}

	s := Derive(entries, t.network)
	if s.SignedIn && s.BitcoinAddress == "" {
		// Leather getAddresses 单独写入的 BTC 地址
		if btc, ok, err := t.store.Get(ctx, localstore.KeyBTCAddress); err == nil && ok && t.network.IsBitcoinAddress(string(btc)) {
			s.BitcoinAddress = string(btc)
		}
	}
	return s, nil
}

func (t *Tracker) resolveBitcoin(ctx context.Context, s model.WalletSession) model.WalletSession {
	if t.leather == nil || !s.SignedIn || s.ActiveProvider != model.ProviderLeather || s.BitcoinAddress != "" {
		return s
	}

	t.mu.Lock()
	if t.btcRequested == s.StacksAddress {
		t.mu.Unlock()
		return s
	}
	t.btcRequested = s.StacksAddress
	t.mu.Unlock()

	// 用户可能一直不在钱包里确认, 不能卡住轮询
	rctx, cancel := context.WithTimeout(ctx, btcRequestTimeout)
	defer cancel()
	btc, err := RequestBitcoinAddress(rctx, t.leather)
	if err != nil {
		// 不影响会话本身
		logger.Warn("leather btc address retrieval failed", zap.String("stx_address", s.StacksAddress), zap.Error(err))
		return s
	}
	if !t.network.IsBitcoinAddress(btc) {
		logger.Warn("leather returned a btc address for another network", zap.String("btc_address", btc))
		return s
	}
	if err := t.store.Set(ctx, localstore.KeyBTCAddress, []byte(btc)); err != nil {
		logger.Error("persist btc address failed", zap.Error(err))
		return s
	}
	s.BitcoinAddress = btc
	return s
}

// Current returns the last derived session.
func (t *Tracker) Current() model.WalletSession {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Subscribe registers l and returns a function removing it.
func (t *Tracker) Subscribe(l Listener) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Connect persists the address list of a successful wallet connect and re-polls.
func (t *Tracker) Connect(ctx context.Context, entries []model.AddressEntry) (model.WalletSession, error) {
	if len(entries) == 0 {
		return t.Current(), fmt.Errorf("no addresses to connect")
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return t.Current(), err
	}
	if err := t.store.Set(ctx, localstore.KeyAddresses, raw); err != nil {
		return t.Current(), fmt.Errorf("persist addresses: %w", err)
	}
	t.Poll(ctx)
	return t.Current(), nil
}

// Disconnect removes the persisted connection; the next poll signs out.
func (t *Tracker) Disconnect(ctx context.Context) error {
	if err := t.store.Delete(ctx, localstore.KeyAddresses, localstore.KeyBTCAddress); err != nil {
		return fmt.Errorf("clear addresses: %w", err)
	}
	t.mu.Lock()
	t.btcRequested = ""
	t.mu.Unlock()
	t.Poll(ctx)
	return nil
}
