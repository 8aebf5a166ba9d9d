package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletProvider 钱包类型, 由地址条目数推断
type WalletProvider string

const (
	ProviderLeather WalletProvider = "leather"
	ProviderXverse  WalletProvider = "xverse"
	ProviderAsigna  WalletProvider = "asigna"
	ProviderNone    WalletProvider = "none"
)

// AddressEntry 是本地持久化 "addresses" 列表里的一项
type AddressEntry struct {
	Address   string `json:"address"`
	PublicKey string `json:"publicKey,omitempty"`
	Symbol    string `json:"symbol,omitempty"`
	Purpose   string `json:"purpose,omitempty"`
}

// WalletSession is derived from persisted state on every poll and never set directly.
// Empty strings mean absent.
type WalletSession struct {
	SignedIn       bool           `json:"signed_in"`
	StacksAddress  string         `json:"stacks_address,omitempty"`
	BitcoinAddress string         `json:"bitcoin_address,omitempty"`
	ActiveProvider WalletProvider `json:"active_provider"`
}

// SignedOut is the zero session.
func SignedOut() WalletSession {
	return WalletSession{ActiveProvider: ProviderNone}
}

// Balances 最近一次成功拉到的余额, 失败时保留旧值
type Balances struct {
	STX             *decimal.Decimal `json:"stx"`
	SBTC            *decimal.Decimal `json:"sbtc"`
	BTC             *decimal.Decimal `json:"btc"`
	BTCSats         *int64           `json:"btc_sats"`
	StacksUpdatedAt *time.Time       `json:"stacks_updated_at,omitempty"`
	BTCUpdatedAt    *time.Time       `json:"btc_updated_at,omitempty"`
}

// SpendableSats returns the BTC balance in sats, 0 when unknown.
func (b Balances) SpendableSats() int64 {
	if b.BTCSats == nil {
		return 0
	}
	return *b.BTCSats
}
