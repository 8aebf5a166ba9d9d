package styx

// Status 是后端存储的存款状态
type Status string

const (
	StatusInitiated       Status = "initiated"
	StatusBroadcast       Status = "broadcast"
	StatusProcessing      Status = "processing"
	StatusConfirmed       Status = "confirmed"
	StatusRefundRequested Status = "refund-requested"
	StatusCanceled        Status = "canceled"
)

// FeePriority selects a fee tier.
type FeePriority string

const (
	FeeLow    FeePriority = "low"
	FeeMedium FeePriority = "medium"
	FeeHigh   FeePriority = "high"
)

// Deposit is the backend deposit record.
type Deposit struct {
	ID          string   `json:"id"`
	BTCAmount   float64  `json:"btcAmount"`
	SBTCAmount  *float64 `json:"sbtcAmount,omitempty"`
	STXReceiver string   `json:"stxReceiver"`
	BTCSender   string   `json:"btcSender"`
	BTCTxID     *string  `json:"btcTxId,omitempty"`
	Status      Status   `json:"status"`
	CreatedAt   int64    `json:"createdAt"` // unix ms
	UpdatedAt   int64    `json:"updatedAt,omitempty"`
}

type CreateDepositRequest struct {
	BTCAmount   float64 `json:"btcAmount"`
	STXReceiver string  `json:"stxReceiver"`
	BTCSender   string  `json:"btcSender"`
}

type UpdateDepositData struct {
	BTCTxID string `json:"btcTxId,omitempty"`
	Status  Status `json:"status"`
}

type PoolStatus struct {
	EstimatedAvailable int64   `json:"estimatedAvailable"` // sats
	RealAvailable      int64   `json:"realAvailable,omitempty"`
	TotalPending       int64   `json:"totalPending,omitempty"`
	LastUpdated        int64   `json:"lastUpdated,omitempty"`
	UtilizationRate    float64 `json:"utilizationRate,omitempty"`
}

// FeeRates 是 sat/vB
type FeeRates struct {
	Low    int64 `json:"low"`
	Medium int64 `json:"medium"`
	High   int64 `json:"high"`
}

type UTXO struct {
	TxID  string `json:"txid"`
	Vout  uint32 `json:"vout"`
	Value int64  `json:"value"`
}

type PrepareRequest struct {
	Amount         string      `json:"amount"`
	UserAddress    string      `json:"userAddress"`
	BTCAddress     string      `json:"btcAddress"`
	FeePriority    FeePriority `json:"feePriority"`
	WalletProvider string      `json:"walletProvider"`
}

type PreparedTransaction struct {
	DepositAddress   string `json:"depositAddress"`
	OpReturnData     string `json:"opReturnData"`
	UTXOs            []UTXO `json:"utxos"`
	Fee              int64  `json:"fee"`
	ChangeAmount     int64  `json:"changeAmount"`
	AmountInSatoshis int64  `json:"amountInSatoshis"`
	FeeRate          int64  `json:"feeRate"`
	InputCount       int    `json:"inputCount"`
	OutputCount      int    `json:"outputCount"`
	InscriptionCount int    `json:"inscriptionCount"`
}

type ExecuteRequest struct {
	DepositID      string              `json:"depositId"`
	PreparedData   PreparedTransaction `json:"preparedData"`
	WalletProvider string              `json:"walletProvider"`
	BTCAddress     string              `json:"btcAddress"`
}

type ExecutedTransaction struct {
	TxPsbtHex                  string                 `json:"txPsbtHex"`
	TransactionDetails         map[string]interface{} `json:"transactionDetails,omitempty"`
	NeedsFrontendInputHandling bool                   `json:"needsFrontendInputHandling"`
}

type AggregateData struct {
	TotalDeposits int64   `json:"totalDeposits"`
	TotalVolume   float64 `json:"totalVolume"`
	UniqueUsers   int64   `json:"uniqueUsers"`
}

type DepositHistory struct {
	AggregateData  AggregateData `json:"aggregateData"`
	RecentDeposits []Deposit     `json:"recentDeposits"`
}
