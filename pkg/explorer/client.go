// Package explorer talks to the public Esplora-style chain APIs
// (blockstream.info for UTXOs, mempool.space for fees and broadcast).
package explorer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deposit-core/pkg/utils/httpclient"
)

type UTXOStatus struct {
	Confirmed   bool  `json:"confirmed"`
	BlockHeight int64 `json:"block_height,omitempty"`
}

type UTXO struct {
	TxID   string     `json:"txid"`
	Vout   uint32     `json:"vout"`
	Value  int64      `json:"value"`
	Status UTXOStatus `json:"status"`
}

// RecommendedFees mempool.space /v1/fees/recommended, sat/vB
type RecommendedFees struct {
	FastestFee  int64 `json:"fastestFee"`
	HalfHourFee int64 `json:"halfHourFee"`
	HourFee     int64 `json:"hourFee"`
	EconomyFee  int64 `json:"economyFee"`
	MinimumFee  int64 `json:"minimumFee"`
}

type Client struct {
	blockstreamURL string
	mempoolURL     string
	http           *http.Client
}

func NewClient(blockstreamURL, mempoolURL string, timeout time.Duration) *Client {
	return &Client{
		blockstreamURL: strings.TrimRight(blockstreamURL, "/"),
		mempoolURL:     strings.TrimRight(mempoolURL, "/"),
		http:           httpclient.New(timeout),
	}
}

// UTXOs lists unspent outputs of addr.
func (c *Client) UTXOs(ctx context.Context, addr string) ([]UTXO, error) {
	var out []UTXO
	err := httpclient.DoJSON(ctx, c.http, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.blockstreamURL + "/address/" + url.PathEscape(addr) + "/utxo",
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch utxos: %w", err)
	}
	return out, nil
}

// SpendableSats sums every UTXO value of addr (confirmed or not).
func (c *Client) SpendableSats(ctx context.Context, addr string) (int64, error) {
	utxos, err := c.UTXOs(ctx, addr)
	if err != nil {
		return 0, err
	}
	return SumValues(utxos), nil
}

func SumValues(utxos []UTXO) int64 {
	var total int64
	for _, u := range utxos {
		total += u.Value
	}
	return total
}

// Broadcast posts a raw transaction hex and returns the txid from the response body.
func (c *Client) Broadcast(ctx context.Context, rawTxHex string) (string, error) {
	raw, err := httpclient.Do(ctx, c.http, httpclient.Request{
		Method:      http.MethodPost,
		URL:         c.mempoolURL + "/tx",
		RawBody:     rawTxHex,
		ContentType: "text/plain",
	})
	if err != nil {
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return "", fmt.Errorf("failed to broadcast transaction: %s", se.Body)
		}
		return "", fmt.Errorf("failed to broadcast transaction: %w", err)
	}
	txid := strings.TrimSpace(string(raw))
	if txid == "" {
		return "", errors.New("broadcast returned an empty txid")
	}
	return txid, nil
}

func (c *Client) RecommendedFees(ctx context.Context) (*RecommendedFees, error) {
	var out RecommendedFees
	err := httpclient.DoJSON(ctx, c.http, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.mempoolURL + "/v1/fees/recommended",
	}, &out)
	if err != nil {
		return nil, fmt.Errorf("fetch recommended fees: %w", err)
	}
	return &out, nil
}
