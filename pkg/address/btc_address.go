package address

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// Type 地址类型
type Type string

const (
	TypeP2PKH   Type = "p2pkh"
	TypeP2SH    Type = "p2sh"
	TypeP2WPKH  Type = "p2wpkh"
	TypeP2WSH   Type = "p2wsh"
	TypeP2TR    Type = "p2tr"
	TypeUnknown Type = "unknown"
)

// Classify decodes addr for params and reports its script type.
// Addresses that fail to decode fall back to TypeUnknown.
func Classify(addr string, params *chaincfg.Params) Type {
	decoded, err := btcutil.DecodeAddress(addr, params)
	if err != nil {
		return TypeUnknown
	}
	switch decoded.(type) {
	case *btcutil.AddressPubKeyHash:
		return TypeP2PKH
	case *btcutil.AddressScriptHash:
		return TypeP2SH
	case *btcutil.AddressWitnessPubKeyHash:
		return TypeP2WPKH
	case *btcutil.AddressWitnessScriptHash:
		return TypeP2WSH
	case *btcutil.AddressTaproot:
		return TypeP2TR
	}
	return TypeUnknown
}

// NestedSegwit 是 P2SH-P2WPKH 的脚本三元组
type NestedSegwit struct {
	Address      *btcutil.AddressScriptHash
	PkScript     []byte // OP_HASH160 <hash> OP_EQUAL
	RedeemScript []byte // OP_0 <pubkey hash>
}

// NestedSegwitFromPubKey 从压缩公钥 (hex) 构造 P2SH-P2WPKH
func NestedSegwitFromPubKey(pubKeyHex string, params *chaincfg.Params) (*NestedSegwit, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	pub, err := btcec.ParsePubKey(raw)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	witnessAddr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), params)
	if err != nil {
		return nil, err
	}
	redeemScript, err := txscript.PayToAddrScript(witnessAddr)
	if err != nil {
		return nil, err
	}

	shAddr, err := btcutil.NewAddressScriptHash(redeemScript, params)
	if err != nil {
		return nil, err
	}
	pkScript, err := txscript.PayToAddrScript(shAddr)
	if err != nil {
		return nil, err
	}

	return &NestedSegwit{
		Address:      shAddr,
		PkScript:     pkScript,
		RedeemScript: redeemScript,
	}, nil
}
