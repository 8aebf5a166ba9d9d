package lifecycle

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/model"
	"deposit-core/pkg/psbtutil"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/walletrpc"
)

const (
	prevTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"
	stxAddr  = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"
)

func testKey() *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x22}, 32))
	return priv
}

func p2wpkh(t *testing.T, priv *btcec.PrivateKey) (string, []byte) {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(priv.PubKey().SerializeCompressed()), &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return addr.EncodeAddress(), script
}

// unsignedPsbtHex 一个输入 (p2wpkh, 带 witness utxo), 一个输出
func unsignedPsbtHex(t *testing.T, pkScript []byte) string {
	t.Helper()
	hash, err := chainhash.NewHashFromStr(prevTxID)
	require.NoError(t, err)
	p, err := psbt.New([]*wire.OutPoint{wire.NewOutPoint(hash, 0)},
		[]*wire.TxOut{wire.NewTxOut(99_000, []byte{txscript.OP_TRUE})}, 2, 0, []uint32{wire.MaxTxInSequenceNum})
	require.NoError(t, err)
	p.Inputs[0].WitnessUtxo = wire.NewTxOut(100_000, pkScript)
	out, err := psbtutil.EncodeHex(p)
	require.NoError(t, err)
	return out
}

// emptyPsbtHex 没有输入, 由前端补
func emptyPsbtHex(t *testing.T) string {
	t.Helper()
	p, err := psbt.New(nil, []*wire.TxOut{wire.NewTxOut(10_000, []byte{txscript.OP_TRUE})}, 2, 0, nil)
	require.NoError(t, err)
	out, err := psbtutil.EncodeHex(p)
	require.NoError(t, err)
	return out
}

func signAll(p *psbt.Packet, priv *btcec.PrivateKey) error {
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, in := range p.UnsignedTx.TxIn {
		fetcher.AddPrevOut(in.PreviousOutPoint, p.Inputs[i].WitnessUtxo)
	}
	hashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)
	updater, err := psbt.NewUpdater(p)
	if err != nil {
		return err
	}
	for i, in := range p.Inputs {
		sig, err := txscript.RawTxInWitnessSignature(p.UnsignedTx, hashes, i,
			in.WitnessUtxo.Value, in.WitnessUtxo.PkScript, txscript.SigHashAll, priv)
		if err != nil {
			return err
		}
		if _, err := updater.Sign(i, sig, priv.PubKey().SerializeCompressed(), nil, nil); err != nil {
			return err
		}
	}
	return nil
}

type fakeSession struct{ s model.WalletSession }

func (f *fakeSession) Current() model.WalletSession { return f.s }

type fakeFees struct{}

func (fakeFees) Rate(ctx context.Context, p model.FeePriority) int64 {
	return model.FeeEstimates{
		Low:    model.FeeTier{Rate: 3, Fee: 444},
		Medium: model.FeeTier{Rate: 6, Fee: 888},
		High:   model.FeeTier{Rate: 12, Fee: 1776},
	}.Tier(p).Rate
}

type fakeAPI struct {
	mu sync.Mutex

	createErr  error
	prepareErr error
	executeErr error
	updateErr  error // broadcast update
	cancelErr  error

	psbtHex       string
	needsFrontend bool
	utxos         []styx.UTXO

	creates  int
	prepares []styx.PrepareRequest
	updates  []styx.UpdateDepositData
	// 更新时 ctx 是否已取消
	updateCtxErrs []error
	createGate    chan struct{}
	createEntered chan struct{}
}

func (f *fakeAPI) CreateDeposit(ctx context.Context, req styx.CreateDepositRequest) (string, error) {
	if f.createEntered != nil {
		f.createEntered <- struct{}{}
	}
	if f.createGate != nil {
		<-f.createGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return "", f.createErr
	}
	return fmt.Sprintf("dep-%d", f.creates), nil
}

func (f *fakeAPI) PrepareTransaction(ctx context.Context, req styx.PrepareRequest) (*styx.PreparedTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepares = append(f.prepares, req)
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &styx.PreparedTransaction{
		DepositAddress: "bc1qdeposit",
		OpReturnData:   "6a14deadbeef",
		UTXOs:          f.utxos,
		Fee:            888,
		FeeRate:        6,
		InputCount:     len(f.utxos),
	}, nil
}

func (f *fakeAPI) ExecuteTransaction(ctx context.Context, req styx.ExecuteRequest) (*styx.ExecutedTransaction, error) {
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	return &styx.ExecutedTransaction{TxPsbtHex: f.psbtHex, NeedsFrontendInputHandling: f.needsFrontend}, nil
}

func (f *fakeAPI) UpdateDepositStatus(ctx context.Context, id string, data styx.UpdateDepositData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, data)
	f.updateCtxErrs = append(f.updateCtxErrs, ctx.Err())
	if data.Status == styx.StatusCanceled {
		return f.cancelErr
	}
	return f.updateErr
}

type call struct {
	method string
	params interface{}
}

// fakeWallet 按方法名返回预设的信封
type fakeWallet struct {
	mu      sync.Mutex
	calls   []call
	handler func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error)
}

func (w *fakeWallet) Request(ctx context.Context, method string, params interface{}) (*walletrpc.Envelope, error) {
	w.mu.Lock()
	w.calls = append(w.calls, call{method, params})
	n := 0
	for _, c := range w.calls {
		if c.method == method {
			n++
		}
	}
	w.mu.Unlock()
	return w.handler(ctx, method, params, n)
}

func (w *fakeWallet) methods() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.calls))
	for _, c := range w.calls {
		out = append(out, c.method)
	}
	return out
}

func success(v interface{}) *walletrpc.Envelope {
	raw, _ := json.Marshal(v)
	return &walletrpc.Envelope{Status: walletrpc.StatusSuccess, Result: raw}
}

func failure(code int, msg string) *walletrpc.Envelope {
	return &walletrpc.Envelope{Status: walletrpc.StatusError, Error: &walletrpc.RPCError{Code: code, Message: msg}}
}

// leatherWallet signs every input with priv.
func leatherWallet(priv *btcec.PrivateKey) *fakeWallet {
	return &fakeWallet{handler: func(ctx context.Context, method string, params interface{}, n int) (*walletrpc.Envelope, error) {
		p, ok := params.(leatherSignParams)
		if !ok || method != "signPsbt" {
			return failure(-32601, "method not found"), nil
		}
		packet, err := psbtutil.DecodeHex(p.Hex)
		if err != nil {
			return nil, err
		}
		if err := signAll(packet, priv); err != nil {
			return nil, err
		}
		out, err := psbtutil.EncodeHex(packet)
		if err != nil {
			return nil, err
		}
		return success(map[string]string{"hex": out}), nil
	}}
}

type fakeBroadcaster struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return "", b.err
	}
	raw, err := hex.DecodeString(rawTxHex)
	if err != nil {
		return "", err
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return "", errors.New("sendrawtransaction RPC error: TX decode failed")
	}
	return tx.TxHash().String() + "\n", nil
}

type fakeReconciler struct {
	mu    sync.Mutex
	items []string
}

func (r *fakeReconciler) EnqueueReconcile(ctx context.Context, depositID, txid string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, depositID+":"+txid)
	return nil
}
