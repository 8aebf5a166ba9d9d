package model

import (
	"deposit-core/pkg/styx"
)

type DepositStatus = styx.Status

// 状态只能向前走; refund-requested 可以从 broadcast/processing 进入
var depositTransitions = map[DepositStatus][]DepositStatus{
	styx.StatusInitiated:       {styx.StatusBroadcast, styx.StatusCanceled},
	styx.StatusBroadcast:       {styx.StatusProcessing, styx.StatusConfirmed, styx.StatusRefundRequested},
	styx.StatusProcessing:      {styx.StatusConfirmed, styx.StatusRefundRequested},
	styx.StatusRefundRequested: {styx.StatusCanceled},
}

// CanTransition reports whether a record may move from -> to.
func CanTransition(from, to DepositStatus) bool {
	for _, s := range depositTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal confirmed 和 canceled 不再变化
func IsTerminal(s DepositStatus) bool {
	return s == styx.StatusConfirmed || s == styx.StatusCanceled
}

// StatusColor is the badge color for a status.
func StatusColor(s DepositStatus) string {
	switch s {
	case styx.StatusBroadcast:
		return "yellow"
	case styx.StatusProcessing:
		return "blue"
	case styx.StatusConfirmed:
		return "green"
	case styx.StatusRefundRequested:
		return "purple"
	case styx.StatusCanceled:
		return "red"
	}
	return "gray"
}

// TruncateTxID renders txid as "abcdef...wxyz".
func TruncateTxID(txid string) string {
	if txid == "" {
		return "N/A"
	}
	if len(txid) <= 10 {
		return txid
	}
	return txid[:6] + "..." + txid[len(txid)-4:]
}

// ShortTxID 成功提示里用前 10 位
func ShortTxID(txid string) string {
	if len(txid) <= 10 {
		return txid + "..."
	}
	return txid[:10] + "..."
}
