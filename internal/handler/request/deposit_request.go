package request

// DepositRequest 金额是 BTC 十进制字符串, fee_priority 为空时按 medium
type DepositRequest struct {
	Amount      string `json:"amount" binding:"required,btcamount" example:"0.001"`
	FeePriority string `json:"fee_priority" binding:"feepriority" example:"medium"`
}
