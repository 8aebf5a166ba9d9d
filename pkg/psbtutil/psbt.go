// Package psbtutil wraps btcd's psbt package with the few operations the
// deposit signers need.
package psbtutil

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"deposit-core/pkg/address"
)

var ErrEmptyPsbt = errors.New("empty psbt")

// DecodeHex parses a hex encoded PSBT as returned by executeTransaction.
func DecodeHex(psbtHex string) (*psbt.Packet, error) {
	psbtHex = strings.TrimSpace(psbtHex)
	if psbtHex == "" {
		return nil, ErrEmptyPsbt
	}
	raw, err := hex.DecodeString(psbtHex)
	if err != nil {
		return nil, fmt.Errorf("psbt hex: %w", err)
	}
	packet, err := psbt.NewFromRawBytes(bytes.NewReader(raw), false)
	if err != nil {
		return nil, fmt.Errorf("parse psbt: %w", err)
	}
	return packet, nil
}

// DecodeBase64 parses a base64 PSBT (Xverse returns this form).
func DecodeBase64(psbtB64 string) (*psbt.Packet, error) {
	if strings.TrimSpace(psbtB64) == "" {
		return nil, ErrEmptyPsbt
	}
	return psbt.NewFromRawBytes(strings.NewReader(psbtB64), true)
}

func Serialize(p *psbt.Packet) ([]byte, error) {
	var buf bytes.Buffer
	if err := p.Serialize(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func EncodeHex(p *psbt.Packet) (string, error) {
	raw, err := Serialize(p)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(raw), nil
}

func EncodeBase64(p *psbt.Packet) (string, error) {
	raw, err := Serialize(p)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// AddNestedSegwitInput appends a P2SH-P2WPKH input spending txid:vout.
// The witness UTXO carries the P2SH output script and the redeem script is
// attached so the wallet can sign it.
func AddNestedSegwitInput(p *psbt.Packet, txid string, vout uint32, value int64, ns *address.NestedSegwit) error {
	hash, err := chainhash.NewHashFromStr(txid)
	if err != nil {
		return fmt.Errorf("utxo txid %q: %w", txid, err)
	}

	txIn := wire.NewTxIn(wire.NewOutPoint(hash, vout), nil, nil)
	p.UnsignedTx.TxIn = append(p.UnsignedTx.TxIn, txIn)
	p.Inputs = append(p.Inputs, psbt.PInput{
		WitnessUtxo:  wire.NewTxOut(value, ns.PkScript),
		RedeemScript: ns.RedeemScript,
	})
	return nil
}

// FinalizeAndExtract finalizes every signed input and returns the raw
// network transaction in hex plus its txid.
func FinalizeAndExtract(p *psbt.Packet) (string, string, error) {
	if err := psbt.MaybeFinalizeAll(p); err != nil {
		return "", "", fmt.Errorf("finalize psbt: %w", err)
	}

	tx, err := psbt.Extract(p)
	if err != nil {
		return "", "", fmt.Errorf("extract tx: %w", err)
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return "", "", err
	}
	return hex.EncodeToString(buf.Bytes()), tx.TxHash().String(), nil
}
