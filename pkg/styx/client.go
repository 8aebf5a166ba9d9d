// Package styx is the HTTP client for the deposit/PSBT backend.
package styx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deposit-core/pkg/utils/httpclient"
)

// APIError 后端非 2xx 响应
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// IsNotFound reports a 404-class lookup failure.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpclient.New(timeout),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	err := httpclient.DoJSON(ctx, c.http, httpclient.Request{
		Method: method,
		URL:    c.baseURL + path,
		Header: map[string]string{"X-API-KEY": c.apiKey},
		Body:   body,
	}, out)
	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return &APIError{StatusCode: se.StatusCode, Message: errorMessage(se)}
	}
	return err
}

// errorMessage 优先取 {"error": "..."} / {"message": "..."}, 否则用原文
func errorMessage(se *httpclient.StatusError) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal([]byte(se.Body), &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	if se.Body == "" {
		return http.StatusText(se.StatusCode)
	}
	return se.Body
}

func (c *Client) CreateDeposit(ctx context.Context, req CreateDepositRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/deposits", req, &resp); err != nil {
		return "", err
	}
	if resp.ID == "" {
		return "", errors.New("create deposit: empty id in response")
	}
	return resp.ID, nil
}

func (c *Client) UpdateDepositStatus(ctx context.Context, id string, data UpdateDepositData) error {
	return c.do(ctx, http.MethodPut, "/deposits/"+url.PathEscape(id), data, nil)
}

func (c *Client) GetDepositStatus(ctx context.Context, id string) (*Deposit, error) {
	var d Deposit
	if err := c.do(ctx, http.MethodGet, "/deposits/"+url.PathEscape(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) GetDepositStatusByTxID(ctx context.Context, txid string) (*Deposit, error) {
	var d Deposit
	if err := c.do(ctx, http.MethodGet, "/deposits/tx/"+url.PathEscape(txid), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) GetDepositHistory(ctx context.Context, stxAddress string) ([]Deposit, error) {
	var out []Deposit
	if err := c.do(ctx, http.MethodGet, "/deposits/user/"+url.PathEscape(stxAddress), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAllDepositsHistory 空响应时返回零值聚合
func (c *Client) GetAllDepositsHistory(ctx context.Context, poolID string) (*DepositHistory, error) {
	var out DepositHistory
	if err := c.do(ctx, http.MethodGet, "/deposits/history"+poolQuery(poolID), nil, &out); err != nil {
		return nil, err
	}
	if out.RecentDeposits == nil {
		out.RecentDeposits = []Deposit{}
	}
	return &out, nil
}

func (c *Client) GetPoolStatus(ctx context.Context, poolID string) (*PoolStatus, error) {
	var out PoolStatus
	if err := c.do(ctx, http.MethodGet, "/pool/status"+poolQuery(poolID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetFeeEstimates(ctx context.Context) (*FeeRates, error) {
	var out FeeRates
	if err := c.do(ctx, http.MethodGet, "/fees/estimates", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) PrepareTransaction(ctx context.Context, req PrepareRequest) (*PreparedTransaction, error) {
	var out PreparedTransaction
	if err := c.do(ctx, http.MethodPost, "/transactions/prepare", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ExecuteTransaction(ctx context.Context, req ExecuteRequest) (*ExecutedTransaction, error) {
	var out ExecutedTransaction
	if err := c.do(ctx, http.MethodPost, "/transactions/execute", req, &out); err != nil {
		return nil, err
	}
	if out.TxPsbtHex == "" {
		return nil, fmt.Errorf("execute transaction: empty psbt")
	}
	return &out, nil
}

func poolQuery(poolID string) string {
	if poolID == "" {
		return ""
	}
	return "?poolId=" + url.QueryEscape(poolID)
}
