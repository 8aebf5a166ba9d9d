// Package walletrpc sends requests to a wallet provider bridge and returns
// the provider's {status, result, error} envelope.
package walletrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"deposit-core/pkg/utils/httpclient"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	// CodeAccessDenied 钱包未授权当前站点
	CodeAccessDenied = -32002
)

type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

type Envelope struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// OK reports a success envelope.
func (e *Envelope) OK() bool {
	return e.Status == StatusSuccess
}

// Decode unmarshals the result of a success envelope.
func (e *Envelope) Decode(out interface{}) error {
	if !e.OK() {
		if e.Error != nil {
			return e.Error
		}
		return errors.New("wallet request failed")
	}
	if len(e.Result) == 0 {
		return errors.New("wallet returned an empty result")
	}
	return json.Unmarshal(e.Result, out)
}

type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params"`
}

// Client 一个 provider 一个实例
type Client struct {
	url  string
	http *http.Client
}

// NewClient timeout 为 0 表示不限时, 签名要等用户在钱包里确认
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{url: url, http: &http.Client{Timeout: timeout}}
}

// Request sends method/params. An error envelope is returned as a value, not
// an error; only transport failures produce an error.
func (c *Client) Request(ctx context.Context, method string, params interface{}) (*Envelope, error) {
	var env Envelope
	err := httpclient.DoJSON(ctx, c.http, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.url,
		Body:   request{ID: uuid.NewString(), Method: method, Params: params},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("wallet %s: %w", method, err)
	}
	if env.Status == "" {
		env.Status = StatusError
		if env.Error == nil {
			env.Error = &RPCError{Message: "malformed wallet response"}
		}
	}
	return &env, nil
}
