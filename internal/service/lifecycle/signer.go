package lifecycle

import (
	"context"

	"github.com/btcsuite/btcd/btcutil/psbt"

	"deposit-core/internal/model"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/walletrpc"
)

// SignRequest 交给钱包签名的数据
type SignRequest struct {
	Packet     *psbt.Packet
	BTCAddress string
	// InputCount 钱包需要签的输入个数 (按 prepare 返回的 utxo 数)
	InputCount int
	Network    string
	// OnSigned is called once the wallet has produced signatures, before the
	// transaction is handed to the network.
	OnSigned func()
}

// Signer is one wallet provider's signing path. Exactly one runs per attempt.
type Signer interface {
	Provider() model.WalletProvider
	RequiresManualInputConstruction(btcAddress string, backendFlag bool) bool
	// Sign returns the txid of the broadcast transaction.
	Sign(ctx context.Context, req SignRequest) (string, error)
}

// InputConstructor is implemented by signers that add inputs the backend left out.
type InputConstructor interface {
	AddInputs(ctx context.Context, p *psbt.Packet, btcAddress string, utxos []styx.UTXO) error
}

// WalletRequester 钱包 provider 的 request 入口
type WalletRequester interface {
	Request(ctx context.Context, method string, params interface{}) (*walletrpc.Envelope, error)
}

// Broadcaster pushes a raw transaction and returns its txid.
type Broadcaster interface {
	Broadcast(ctx context.Context, rawTxHex string) (string, error)
}

// Sighash 类型, 与 txscript 保持一致
const (
	sighashAll          = 0x01
	sighashNone         = 0x02
	sighashSingle       = 0x03
	sighashAnyoneCanPay = 0x80
)
