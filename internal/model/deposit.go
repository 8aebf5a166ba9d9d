package model

import (
	"deposit-core/pkg/styx"
)

type FeePriority = styx.FeePriority

// DepositIntent is an immutable, validated request to deposit.
// AmountBTC is always the 8-decimal rendering of AmountSats.
type DepositIntent struct {
	AmountBTC   string      `json:"amount_btc"`
	AmountSats  int64       `json:"amount_sats"`
	FeePriority FeePriority `json:"fee_priority"`
}

// FeeTier 一个档位: sat/vB 费率, 按 148 vB 估算的手续费, 预计确认时间
type FeeTier struct {
	Rate int64  `json:"rate"`
	Fee  int64  `json:"fee"`
	Time string `json:"time"`
}

type FeeEstimates struct {
	Low    FeeTier `json:"low"`
	Medium FeeTier `json:"medium"`
	High   FeeTier `json:"high"`
}

// Tier returns the tier for p, medium when p is unknown.
func (f FeeEstimates) Tier(p FeePriority) FeeTier {
	switch p {
	case styx.FeeLow:
		return f.Low
	case styx.FeeHigh:
		return f.High
	}
	return f.Medium
}

// ConfirmationData 确认弹窗展示的数据
type ConfirmationData struct {
	DepositAmount  string `json:"deposit_amount"`
	DepositAddress string `json:"deposit_address"`
	STXAddress     string `json:"stx_address"`
	OpReturnHex    string `json:"op_return_hex"`
}

// Notice is a user-facing outcome message.
type Notice struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Level   string `json:"level"` // success, warning, error
}

// ParseFeePriority 空值按 medium
func ParseFeePriority(s string) (FeePriority, bool) {
	switch FeePriority(s) {
	case "":
		return styx.FeeMedium, true
	case styx.FeeLow, styx.FeeMedium, styx.FeeHigh:
		return FeePriority(s), true
	}
	return "", false
}
