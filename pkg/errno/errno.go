package errno

import (
	"errors"
	"fmt"
)

// Errno defines the error code logic.
// Message 是给用户看的标题, Detail 是具体描述 (可选)
type Errno struct {
	Code    int
	Message string
	Detail  string
}

func (e Errno) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

// WithDetail 返回带描述的副本, Code 不变. detail 原样保留, 不做格式化.
func (e Errno) WithDetail(detail string) Errno {
	e.Detail = detail
	return e
}

// WithDetailf 同 WithDetail, detail 按 fmt 格式化
func (e Errno) WithDetailf(format string, args ...interface{}) Errno {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Is matches on Code so errors.Is works against the bare vars below
// even when the returned value carries a Detail.
func (e Errno) Is(target error) bool {
	switch t := target.(type) {
	case Errno:
		return t.Code == e.Code
	case *Errno:
		return t != nil && t.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	e, ok := As(err)
	if !ok {
		if err == nil {
			return OK.Code, OK.Message
		}
		return InternalServerError.Code, err.Error()
	}
	return e.Code, e.Error()
}

// As unwraps err into an Errno if one is in the chain.
func As(err error) (Errno, bool) {
	if err == nil {
		return OK, false
	}
	var value Errno
	if errors.As(err, &value) {
		return value, true
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return *ptr, true
	}
	return Errno{}, false
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
	ErrUpstream         = Errno{Code: 10005, Message: "Upstream service error"}
)

// Deposit validation (30000+)
var (
	ErrInvalidAmount         = Errno{Code: 30001, Message: "Invalid amount", Detail: "Please enter a valid BTC amount greater than 0"}
	ErrNotConnected          = Errno{Code: 30002, Message: "Not connected", Detail: "Please connect your wallet first"}
	ErrNoBitcoinAddress      = Errno{Code: 30003, Message: "No Bitcoin address", Detail: "No Bitcoin address found in your wallet"}
	ErrBelowMinimum          = Errno{Code: 30004, Message: "Minimum deposit required"}
	ErrAboveMaximum          = Errno{Code: 30005, Message: "Beta limitation"}
	ErrInsufficientLiquidity = Errno{Code: 30006, Message: "Insufficient liquidity"}
	ErrInsufficientFunds     = Errno{Code: 30007, Message: "Insufficient funds"}
)

// Transaction preparation (31000+)
var (
	ErrCreateDeposit          = Errno{Code: 31001, Message: "Error", Detail: "Failed to initiate deposit. Please try again."}
	ErrPrepareTransaction     = Errno{Code: 31002, Message: "Error", Detail: "Failed to prepare transaction. Please try again."}
	ErrInscriptionsDetected   = Errno{Code: 31003, Message: "Inscriptions Detected"}
	ErrTooManyUTXOs           = Errno{Code: 31004, Message: "Too Many UTXOs"}
	ErrUnsupportedAddressType = Errno{Code: 31005, Message: "Unsupported Address Type", Detail: "Leather wallet does not support P2SH addresses (starting with '3'). Please use a SegWit address (starting with 'bc1') instead."}
	ErrP2SHAddress            = Errno{Code: 31006, Message: "P2SH Address Error", Detail: "There was an issue with the P2SH address. This might be due to wallet limitations. Try using a SegWit address (starting with 'bc1') instead."}
	ErrP2SHNotSupported       = Errno{Code: 31007, Message: "P2SH Address Not Supported", Detail: "Your wallet doesn't provide the necessary information for your P2SH address. Please try using a SegWit address (starting with bc1) instead."}
	ErrAttemptInFlight        = Errno{Code: 31008, Message: "Deposit in progress", Detail: "Another deposit for this wallet is still being processed"}
)

// Signing & broadcast (32000+)
var (
	ErrNoWalletProvider = Errno{Code: 32001, Message: "Error", Detail: "No compatible wallet provider detected"}
	ErrSigningFailed    = Errno{Code: 32002, Message: "Error", Detail: "Failed to process Bitcoin transaction. Please try again."}
	ErrPermissionDenied = Errno{Code: 32003, Message: "Permission denied", Detail: "User declined to grant permissions"}
	ErrBroadcastFailed  = Errno{Code: 32004, Message: "Broadcast failed"}
)

// Status lookup (33000+)
var (
	ErrDepositNotFound   = Errno{Code: 33001, Message: "Deposit not found", Detail: "No deposit found with this identifier. Please check the ID and try again."}
	ErrStatusUnavailable = Errno{Code: 33002, Message: "Error fetching deposit status"}
	ErrRetryDisabled     = Errno{Code: 33003, Message: "Retry not available", Detail: "The last lookup found no deposit; change the identifier instead"}
	ErrEmptyQuery        = Errno{Code: 33004, Message: "Missing identifier", Detail: "Provide a deposit ID or a Bitcoin transaction ID"}
)
