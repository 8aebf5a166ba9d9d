package session

import (
	"context"
	"fmt"

	"deposit-core/pkg/walletrpc"
)

// AddressRequester 由 Leather 的 walletrpc.Client 实现
type AddressRequester interface {
	Request(ctx context.Context, method string, params interface{}) (*walletrpc.Envelope, error)
}

type getAddressesParams struct {
	Currencies []string `json:"currencies"`
}

type getAddressesResult struct {
	Addresses []struct {
		Symbol  string `json:"symbol"`
		Address string `json:"address"`
	} `json:"addresses"`
}

// RequestBitcoinAddress asks Leather for its BTC address. Ledger-backed Leather
// accounts connect without one, so it has to be fetched separately.
func RequestBitcoinAddress(ctx context.Context, r AddressRequester) (string, error) {
	env, err := r.Request(ctx, "getAddresses", getAddressesParams{Currencies: []string{"BTC"}})
	if err != nil {
		return "", err
	}
	var res getAddressesResult
	if err := env.Decode(&res); err != nil {
		return "", fmt.Errorf("getAddresses: %w", err)
	}
	for _, a := range res.Addresses {
		if a.Symbol == "BTC" && a.Address != "" {
			return a.Address, nil
		}
	}
	return "", fmt.Errorf("getAddresses: no BTC address returned")
}
