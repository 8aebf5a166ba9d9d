package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/psbtutil"
)

var errLeatherNoPsbt = errors.New("Leather wallet did not return a valid signed PSBT")

type leatherSignParams struct {
	Hex                 string `json:"hex"`
	Network             string `json:"network"`
	Broadcast           bool   `json:"broadcast"`
	AllowedSighash      []int  `json:"allowedSighash"`
	AllowUnknownOutputs bool   `json:"allowUnknownOutputs"`
}

// LeatherSigner 钱包只签名, 本地 finalize 后自己广播
type LeatherSigner struct {
	wallet      WalletRequester
	broadcaster Broadcaster
}

func NewLeatherSigner(wallet WalletRequester, broadcaster Broadcaster) *LeatherSigner {
	return &LeatherSigner{wallet: wallet, broadcaster: broadcaster}
}

func (s *LeatherSigner) Provider() model.WalletProvider {
	return model.ProviderLeather
}

// RequiresManualInputConstruction Leather 的输入全部由后端给出
func (s *LeatherSigner) RequiresManualInputConstruction(string, bool) bool {
	return false
}

func (s *LeatherSigner) Sign(ctx context.Context, req SignRequest) (string, error) {
	psbtHex, err := psbtutil.EncodeHex(req.Packet)
	if err != nil {
		return "", fmt.Errorf("encode psbt: %w", err)
	}

	env, err := s.wallet.Request(ctx, "signPsbt", leatherSignParams{
		Hex:                 psbtHex,
		Network:             req.Network,
		Broadcast:           false,
		AllowedSighash:      []int{sighashAll},
		AllowUnknownOutputs: true,
	})
	if err != nil {
		return "", err
	}

	var res struct {
		Hex string `json:"hex"`
	}
	if err := env.Decode(&res); err != nil {
		if env.OK() {
			return "", errLeatherNoPsbt
		}
		return "", err
	}
	if res.Hex == "" {
		return "", errLeatherNoPsbt
	}

	signed, err := psbtutil.DecodeHex(res.Hex)
	if err != nil {
		return "", fmt.Errorf("signed psbt: %w", err)
	}
	rawTx, localTxID, err := psbtutil.FinalizeAndExtract(signed)
	if err != nil {
		return "", err
	}
	if req.OnSigned != nil {
		req.OnSigned()
	}

	txid, err := s.broadcaster.Broadcast(ctx, rawTx)
	if err != nil {
		return "", errno.ErrBroadcastFailed.WithDetail(err.Error())
	}
	txid = strings.TrimSpace(txid)
	if txid != localTxID {
		logger.Warn("broadcast txid differs from extracted tx",
			zap.String("broadcast_txid", txid),
			zap.String("local_txid", localTxID),
		)
	}
	return txid, nil
}
