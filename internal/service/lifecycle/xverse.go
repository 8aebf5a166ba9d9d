package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/address"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/psbtutil"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/walletrpc"
)

// ErrP2SHPublicKey 拿不到 P2SH 地址对应的公钥时统一返回
var ErrP2SHPublicKey = errno.ErrSigningFailed.WithDetail(
	"P2SH address requires access to the public key. Please use a SegWit address (starting with 'bc1') or grant necessary permissions.")

type xverseSignOptions struct {
	AllowUnknownInputs  bool `json:"allowUnknownInputs"`
	AllowUnknownOutputs bool `json:"allowUnknownOutputs"`
}

type xverseSignParams struct {
	Psbt           string            `json:"psbt"`
	SignInputs     map[string][]int  `json:"signInputs"`
	Broadcast      bool              `json:"broadcast"`
	AllowedSighash []int             `json:"allowedSighash"`
	Options        xverseSignOptions `json:"options"`
}

type xverseAccount struct {
	Addresses []struct {
		Address   string `json:"address"`
		PublicKey string `json:"publicKey"`
		Purpose   string `json:"purpose"`
	} `json:"addresses"`
}

// XverseSigner 钱包签名并广播, txid 从返回值取
type XverseSigner struct {
	wallet  WalletRequester
	network *address.Network
}

func NewXverseSigner(wallet WalletRequester, network *address.Network) *XverseSigner {
	return &XverseSigner{wallet: wallet, network: network}
}

func (s *XverseSigner) Provider() model.WalletProvider {
	return model.ProviderXverse
}

// RequiresManualInputConstruction P2SH 发送地址且后端要求前端补输入.
// 按当前网络解码, 测试网的 P2SH 以 "2" 开头.
func (s *XverseSigner) RequiresManualInputConstruction(btcAddress string, backendFlag bool) bool {
	return backendFlag && address.Classify(btcAddress, s.network.Params) == address.TypeP2SH
}

// AddInputs appends one P2SH-P2WPKH input per UTXO using the payment key of the account.
func (s *XverseSigner) AddInputs(ctx context.Context, p *psbt.Packet, btcAddress string, utxos []styx.UTXO) error {
	ns, err := s.nestedSegwit(ctx, btcAddress)
	if err != nil {
		logger.Error("xverse public key lookup failed", zap.String("btc_address", btcAddress), zap.Error(err))
		return ErrP2SHPublicKey
	}

	for _, u := range utxos {
		if err := psbtutil.AddNestedSegwitInput(p, u.TxID, u.Vout, u.Value, ns); err != nil {
			logger.Error("add p2sh input failed", zap.String("txid", u.TxID), zap.Error(err))
			return ErrP2SHPublicKey
		}
	}
	return nil
}

func (s *XverseSigner) nestedSegwit(ctx context.Context, btcAddress string) (*address.NestedSegwit, error) {
	account, err := s.account(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range account.Addresses {
		if a.Address != btcAddress || a.Purpose != "payment" || a.PublicKey == "" {
			continue
		}
		ns, err := address.NestedSegwitFromPubKey(a.PublicKey, s.network.Params)
		if err != nil {
			return nil, err
		}
		if got := ns.Address.EncodeAddress(); got != btcAddress {
			return nil, fmt.Errorf("public key derives %s, not %s", got, btcAddress)
		}
		return ns, nil
	}
	return nil, errors.New("could not find payment address with public key")
}

// account 未授权 (-32002) 时申请一次权限再重试
func (s *XverseSigner) account(ctx context.Context) (*xverseAccount, error) {
	env, err := s.wallet.Request(ctx, "wallet_getAccount", nil)
	if err != nil {
		return nil, err
	}

	if !env.OK() && env.Error != nil && env.Error.Code == walletrpc.CodeAccessDenied {
		logger.Info("xverse access denied, requesting permissions")
		perm, err := s.wallet.Request(ctx, "wallet_requestPermissions", nil)
		if err != nil {
			return nil, err
		}
		if !perm.OK() {
			return nil, errno.ErrPermissionDenied
		}
		if env, err = s.wallet.Request(ctx, "wallet_getAccount", nil); err != nil {
			return nil, err
		}
	}

	var account xverseAccount
	if err := env.Decode(&account); err != nil {
		return nil, fmt.Errorf("failed to get wallet account info: %w", err)
	}
	return &account, nil
}

func (s *XverseSigner) Sign(ctx context.Context, req SignRequest) (string, error) {
	psbtB64, err := psbtutil.EncodeBase64(req.Packet)
	if err != nil {
		return "", fmt.Errorf("encode psbt: %w", err)
	}

	indexes := make([]int, req.InputCount)
	for i := range indexes {
		indexes[i] = i
	}

	env, err := s.wallet.Request(ctx, "signPsbt", xverseSignParams{
		Psbt:           psbtB64,
		SignInputs:     map[string][]int{req.BTCAddress: indexes},
		Broadcast:      true,
		AllowedSighash: []int{sighashAll, sighashNone, sighashSingle, sighashAnyoneCanPay},
		Options: xverseSignOptions{
			AllowUnknownInputs:  true,
			AllowUnknownOutputs: true,
		},
	})
	if err != nil {
		return "", err
	}
	if !env.OK() {
		msg := "Unknown error"
		if env.Error != nil && env.Error.Message != "" {
			msg = env.Error.Message
		}
		return "", fmt.Errorf("Xverse signing failed: %s", msg)
	}

	var res struct {
		Psbt string `json:"psbt"`
		TxID string `json:"txid"`
	}
	if err := env.Decode(&res); err != nil || res.TxID == "" {
		return "", errors.New("No transaction ID returned from Xverse")
	}
	if req.OnSigned != nil {
		req.OnSigned()
	}
	return res.TxID, nil
}
