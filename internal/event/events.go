package event

// Topic: deposit_events
const TopicDepositEvents = "deposit_events"

const (
	TypeDepositBroadcast = "deposit.broadcast"
	TypeDepositFailed    = "deposit.failed"
)

// DepositLifecycleEvent 确认流程结束时写入 outbox
type DepositLifecycleEvent struct {
	Type           string `json:"type"`
	AttemptID      string `json:"attempt_id"`
	DepositID      string `json:"deposit_id,omitempty"`
	StacksAddress  string `json:"stacks_address"`
	BitcoinAddress string `json:"bitcoin_address"`
	Provider       string `json:"provider"`
	AmountSats     int64  `json:"amount_sats"`
	TxID           string `json:"tx_id,omitempty"`
	RecordUpdated  bool   `json:"record_updated"` // false: 链上已广播但后端状态没更新
	Error          string `json:"error,omitempty"`
	OccurredAt     int64  `json:"occurred_at"` // unix ms
}
