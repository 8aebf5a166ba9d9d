// Package stacksapi is a client for the Stacks balance proxy.
package stacksapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"deposit-core/pkg/utils/httpclient"
)

type tokenBalance struct {
	Balance string `json:"balance"`
}

// AddressBalances 只保留用到的字段
type AddressBalances struct {
	STX            tokenBalance            `json:"stx"`
	FungibleTokens map[string]tokenBalance `json:"fungible_tokens"`
}

// MicroSTX returns the STX balance in micro-STX.
func (b *AddressBalances) MicroSTX() (int64, error) {
	return parseBalance(b.STX.Balance)
}

// Token returns the raw balance of assetKey and false when the wallet holds none.
func (b *AddressBalances) Token(assetKey string) (int64, bool, error) {
	tb, ok := b.FungibleTokens[assetKey]
	if !ok {
		return 0, false, nil
	}
	v, err := parseBalance(tb.Balance)
	return v, true, err
}

func parseBalance(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("balance %q: %w", s, err)
	}
	return v, nil
}

type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

// NewClient endpoint 以 "/" 结尾, 例如 https://api.example.com/
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	return &Client{endpoint: endpoint, apiKey: apiKey, http: httpclient.New(timeout)}
}

func (c *Client) AddressBalances(ctx context.Context, addr string) (*AddressBalances, error) {
	var out AddressBalances
	err := httpclient.DoJSON(ctx, c.http, httpclient.Request{
		Method: http.MethodGet,
		URL:    httpclient.JoinURL(c.endpoint, "stacks/address/"+url.PathEscape(addr)+"/balances"),
		Header: map[string]string{"X-API-KEY": c.apiKey},
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch stacks balances: %w", err)
	}
	return &out, nil
}
