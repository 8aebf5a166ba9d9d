package lifecycle

import (
	"errors"
	"strings"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/styx"
)

// upstreamMessage 优先用后端返回的 message
func upstreamMessage(err error) string {
	var apiErr *styx.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}

func isInscriptionError(msg string) bool {
	return strings.Contains(msg, "with inscriptions")
}

func isUTXOCountError(msg string) bool {
	return strings.Contains(msg, "small UTXOs")
}

func isAddressTypeError(msg string) bool {
	return strings.Contains(msg, "inputType: sh without redeemScript") ||
		strings.Contains(msg, "P2SH") ||
		strings.Contains(msg, "redeem script")
}

// ClassifyPreparationError maps a prepare/execute failure to a user-facing error.
func ClassifyPreparationError(err error, provider model.WalletProvider) errno.Errno {
	if e, ok := errno.As(err); ok {
		return e
	}

	msg := upstreamMessage(err)
	switch {
	case isInscriptionError(msg):
		return errno.ErrInscriptionsDetected.WithDetail(msg)
	case isUTXOCountError(msg):
		return errno.ErrTooManyUTXOs.WithDetail(msg)
	case isAddressTypeError(msg):
		switch provider {
		case model.ProviderLeather:
			return errno.ErrUnsupportedAddressType
		case model.ProviderXverse:
			return errno.ErrP2SHAddress
		}
		return errno.ErrP2SHNotSupported
	}
	if msg == "" {
		return errno.ErrPrepareTransaction
	}
	return errno.ErrPrepareTransaction.WithDetail(msg)
}

// classifySigningError 钱包侧错误原样展示
func classifySigningError(err error) errno.Errno {
	if e, ok := errno.As(err); ok {
		return e
	}
	return errno.ErrSigningFailed.WithDetail(err.Error())
}
