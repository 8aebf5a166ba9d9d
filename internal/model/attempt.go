package model

import (
	"time"
)

// DepositAttempt 一次确认流程的本地记录
type DepositAttempt struct {
	ID             string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	DepositID      string    `gorm:"type:varchar(64);index" json:"deposit_id"`
	StacksAddress  string    `gorm:"type:varchar(64);not null;index" json:"stacks_address"`
	BitcoinAddress string    `gorm:"type:varchar(128);not null" json:"bitcoin_address"`
	Provider       string    `gorm:"type:varchar(16);not null" json:"provider"`
	AmountSats     int64     `gorm:"not null" json:"amount_sats"`
	FeePriority    string    `gorm:"type:varchar(8);not null" json:"fee_priority"`
	FeeRate        int64     `gorm:"not null;default:0" json:"fee_rate"`
	State          string    `gorm:"type:varchar(32);not null;index" json:"state"`
	TxID           string    `gorm:"type:varchar(64);index" json:"tx_id"`
	PsbtDigest     string    `gorm:"type:varchar(64)" json:"psbt_digest"` // blake3(psbt)
	Error          string    `gorm:"type:text" json:"error"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (DepositAttempt) TableName() string {
	return "deposit_attempts"
}

// AttemptTransition 状态流转明细
type AttemptTransition struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	AttemptID string    `gorm:"type:varchar(36);not null;index" json:"attempt_id"`
	FromState string    `gorm:"type:varchar(32);not null" json:"from_state"`
	ToState   string    `gorm:"type:varchar(32);not null" json:"to_state"`
	Detail    string    `gorm:"type:text" json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}

func (AttemptTransition) TableName() string {
	return "attempt_transitions"
}
