// Package amount converts between decimal BTC strings and integer satoshis.
package amount

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	SatsPerBTC     = 100_000_000
	MicroSTXPerSTX = 1_000_000
	// BTCDecimals 展示精度
	BTCDecimals = 8
)

var (
	ErrEmptyAmount = errors.New("amount is empty")
	// ErrOutOfRange 换算成 sats 后超出 int64
	ErrOutOfRange = errors.New("amount out of range")
)

// ParseBTC parses a user-entered BTC amount. Sign is not checked here.
func ParseBTC(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero, ErrEmptyAmount
	}
	return decimal.NewFromString(s)
}

// ToSats rounds a BTC amount to the nearest satoshi.
// IntPart 溢出时会静默回绕, 所以先检查是否放得进 int64.
func ToSats(btc decimal.Decimal) (int64, error) {
	sats := btc.Shift(BTCDecimals).Round(0)
	if !sats.BigInt().IsInt64() {
		return 0, ErrOutOfRange
	}
	return sats.IntPart(), nil
}

// FromSats returns the exact BTC value of sats.
func FromSats(sats int64) decimal.Decimal {
	return decimal.New(sats, -BTCDecimals)
}

// FormatSats renders sats as a BTC string with exactly 8 decimals.
func FormatSats(sats int64) string {
	return FromSats(sats).StringFixed(BTCDecimals)
}

// FormatBTC renders a BTC decimal with exactly 8 decimals.
func FormatBTC(btc decimal.Decimal) string {
	return btc.StringFixed(BTCDecimals)
}

// Trim renders sats as BTC without trailing zeros ("0.0001"), used in messages.
func Trim(sats int64) string {
	return FromSats(sats).String()
}

func FromMicroSTX(micro int64) decimal.Decimal {
	return decimal.New(micro, -6)
}
