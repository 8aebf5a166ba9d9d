package psbtutil

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/pkg/address"
)

const prevTxID = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33b"

func testKey(t *testing.T) *btcec.PrivateKey {
	t.Helper()
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{0x22}, 32))
	return priv
}

func p2wpkhScript(t *testing.T, priv *btcec.PrivateKey) []byte {
	t.Helper()
	addr, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(priv.PubKey().SerializeCompressed()), &chaincfg.MainNetParams)
	require.NoError(t, err)
	script, err := txscript.PayToAddrScript(addr)
	require.NoError(t, err)
	return script
}

func newPacket(t *testing.T, value int64, pkScript []byte) *psbt.Packet {
	t.Helper()
	hash, err := chainhash.NewHashFromStr(prevTxID)
	require.NoError(t, err)

	out := wire.NewTxOut(value-1000, pkScript)
	p, err := psbt.New([]*wire.OutPoint{wire.NewOutPoint(hash, 0)}, []*wire.TxOut{out}, 2, 0,
		[]uint32{wire.MaxTxInSequenceNum})
	require.NoError(t, err)
	return p
}

func signInput(t *testing.T, p *psbt.Packet, idx int, priv *btcec.PrivateKey, subScript, redeemScript []byte) {
	t.Helper()
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for i, txIn := range p.UnsignedTx.TxIn {
		fetcher.AddPrevOut(txIn.PreviousOutPoint, p.Inputs[i].WitnessUtxo)
	}
	sigHashes := txscript.NewTxSigHashes(p.UnsignedTx, fetcher)

	in := p.Inputs[idx]
	sig, err := txscript.RawTxInWitnessSignature(p.UnsignedTx, sigHashes, idx,
		in.WitnessUtxo.Value, subScript, txscript.SigHashAll, priv)
	require.NoError(t, err)
	applySig(t, p, idx, sig, priv, redeemScript)
}

func applySig(t *testing.T, p *psbt.Packet, idx int, sig []byte, priv *btcec.PrivateKey, redeemScript []byte) {
	t.Helper()
	updater, err := psbt.NewUpdater(p)
	require.NoError(t, err)
	outcome, err := updater.Sign(idx, sig, priv.PubKey().SerializeCompressed(), redeemScript, nil)
	require.NoError(t, err)
	require.Equal(t, psbt.SignOutcome(psbt.SignSuccesful), outcome)
}

func TestHexRoundTripAndFinalizeP2WPKH(t *testing.T) {
	priv := testKey(t)
	pkScript := p2wpkhScript(t, priv)
	p := newPacket(t, 50_000, pkScript)

	updater, err := psbt.NewUpdater(p)
	require.NoError(t, err)
	require.NoError(t, updater.AddInWitnessUtxo(wire.NewTxOut(50_000, pkScript), 0))

	encoded, err := EncodeHex(p)
	require.NoError(t, err)
	decoded, err := DecodeHex(encoded)
	require.NoError(t, err)
	require.Len(t, decoded.Inputs, 1)

	signInput(t, decoded, 0, priv, pkScript, nil)

	rawHex, txid, err := FinalizeAndExtract(decoded)
	require.NoError(t, err)

	raw, err := hex.DecodeString(rawHex)
	require.NoError(t, err)
	var tx wire.MsgTx
	require.NoError(t, tx.Deserialize(bytes.NewReader(raw)))
	assert.Equal(t, txid, tx.TxHash().String())
	assert.Len(t, tx.TxIn[0].Witness, 2, "p2wpkh witness is <sig> <pubkey>")
}

func TestAddNestedSegwitInput(t *testing.T) {
	priv := testKey(t)
	pubHex := hex.EncodeToString(priv.PubKey().SerializeCompressed())
	ns, err := address.NestedSegwitFromPubKey(pubHex, &chaincfg.MainNetParams)
	require.NoError(t, err)

	// 原始输入也用 P2SH-P2WPKH, 追加第二个 UTXO
	p := newPacket(t, 30_000, ns.PkScript)
	p.Inputs[0].WitnessUtxo = wire.NewTxOut(30_000, ns.PkScript)
	p.Inputs[0].RedeemScript = ns.RedeemScript

	require.NoError(t, AddNestedSegwitInput(p, prevTxID, 1, 20_000, ns))
	require.Len(t, p.UnsignedTx.TxIn, 2)
	require.Len(t, p.Inputs, 2)
	assert.Equal(t, uint32(1), p.UnsignedTx.TxIn[1].PreviousOutPoint.Index)
	assert.Equal(t, ns.RedeemScript, p.Inputs[1].RedeemScript)
	assert.Equal(t, int64(20_000), p.Inputs[1].WitnessUtxo.Value)

	for i := range p.Inputs {
		signInput(t, p, i, priv, ns.RedeemScript, ns.RedeemScript)
	}

	_, _, err = FinalizeAndExtract(p)
	require.NoError(t, err)

	b64, err := EncodeBase64(p)
	require.NoError(t, err)
	back, err := DecodeBase64(b64)
	require.NoError(t, err)
	assert.Len(t, back.Inputs, 2)
}

func TestAddNestedSegwitInputRejectsBadTxID(t *testing.T) {
	p := newPacket(t, 10_000, []byte{0x51})
	err := AddNestedSegwitInput(p, "nothex", 0, 1, &address.NestedSegwit{})
	assert.Error(t, err)
}

func TestDecodeErrors(t *testing.T) {
	_, err := DecodeHex("")
	assert.ErrorIs(t, err, ErrEmptyPsbt)

	_, err = DecodeHex("zz")
	assert.Error(t, err)

	_, err = DecodeHex("deadbeef")
	assert.Error(t, err)
}
