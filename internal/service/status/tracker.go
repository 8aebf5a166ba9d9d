// Package status looks up a deposit by id or Bitcoin txid on demand.
package status

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"deposit-core/internal/model"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/styx"
)

type API interface {
	GetDepositStatus(ctx context.Context, id string) (*styx.Deposit, error)
	GetDepositStatusByTxID(ctx context.Context, txid string) (*styx.Deposit, error)
}

// Kind 查询结果分类
type Kind string

const (
	KindFound    Kind = "found"
	KindNotFound Kind = "not_found"
	KindError    Kind = "error"
)

// Query 二选一, DepositID 优先
type Query struct {
	DepositID string `json:"deposit_id,omitempty"`
	TxID      string `json:"tx_id,omitempty"`
}

func (q Query) normalize() Query {
	return Query{DepositID: strings.TrimSpace(q.DepositID), TxID: strings.TrimSpace(q.TxID)}
}

func (q Query) empty() bool {
	return q.DepositID == "" && q.TxID == ""
}

func (q Query) kind() string {
	if q.DepositID != "" {
		return "deposit_id"
	}
	return "tx_id"
}

// DepositView is a deposit ready for display.
type DepositView struct {
	ID           string              `json:"id"`
	Status       model.DepositStatus `json:"status"`
	StatusColor  string              `json:"status_color"`
	BTCAmount    string              `json:"btc_amount"`
	SBTCAmount   string              `json:"sbtc_amount,omitempty"`
	STXReceiver  string              `json:"stx_receiver"`
	BTCSender    string              `json:"btc_sender"`
	BTCTxID      string              `json:"btc_tx_id,omitempty"`
	BTCTxIDShort string              `json:"btc_tx_id_short"`
	TxURL        string              `json:"tx_url,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    *time.Time          `json:"updated_at,omitempty"`
}

// Outcome of one lookup. RetryAllowed is false after a not-found result.
type Outcome struct {
	Query        Query        `json:"query"`
	Kind         Kind         `json:"kind"`
	Deposit      *DepositView `json:"deposit,omitempty"`
	Message      string       `json:"message,omitempty"`
	RetryAllowed bool         `json:"retry_allowed"`
	err          error
}

// Err returns the lookup error as an errno, nil when found.
func (o Outcome) Err() error {
	return o.err
}

// Tracker 手动查询, 没有定时器
type Tracker struct {
	api       API
	txURLBase string

	mu   sync.Mutex
	last *Outcome
}

// NewTracker txURLBase 例如 https://mempool.space/tx/
func NewTracker(api API, txURLBase string) *Tracker {
	return &Tracker{api: api, txURLBase: txURLBase}
}

// Lookup fetches the current status. It does not touch the tracked query.
func (t *Tracker) Lookup(ctx context.Context, q Query) Outcome {
	q = q.normalize()
	if q.empty() {
		return Outcome{Query: q, Kind: KindError, Message: errno.ErrEmptyQuery.Detail, err: errno.ErrEmptyQuery}
	}

	start := time.Now()
	var (
		d   *styx.Deposit
		err error
	)
	if q.DepositID != "" {
		d, err = t.api.GetDepositStatus(ctx, q.DepositID)
	} else {
		d, err = t.api.GetDepositStatusByTxID(ctx, q.TxID)
	}

	out := t.classify(q, d, err)
	monitor.ObserveStatusLookup(q.kind(), string(out.Kind), time.Since(start).Seconds())
	return out
}

func (t *Tracker) classify(q Query, d *styx.Deposit, err error) Outcome {
	switch {
	case styx.IsNotFound(err):
		return Outcome{Query: q, Kind: KindNotFound, Message: errno.ErrDepositNotFound.Detail, err: errno.ErrDepositNotFound}
	case err != nil:
		logger.Warn("deposit status lookup failed", zap.String("kind", q.kind()), zap.Error(err))
		e := errno.ErrStatusUnavailable.WithDetailf("Error: %s", err.Error())
		return Outcome{Query: q, Kind: KindError, Message: e.Detail, RetryAllowed: true, err: e}
	case d == nil:
		return Outcome{Query: q, Kind: KindNotFound, Message: errno.ErrDepositNotFound.Detail, err: errno.ErrDepositNotFound}
	}
	view := t.View(*d)
	return Outcome{Query: q, Kind: KindFound, Deposit: &view, RetryAllowed: true}
}

// Track looks q up and remembers it for Retry.
func (t *Tracker) Track(ctx context.Context, q Query) Outcome {
	out := t.Lookup(ctx, q)
	t.mu.Lock()
	t.last = &out
	t.mu.Unlock()
	return out
}

// Retry repeats the tracked query. A not-found query is not retried.
func (t *Tracker) Retry(ctx context.Context) (Outcome, error) {
	t.mu.Lock()
	last := t.last
	t.mu.Unlock()

	if last == nil {
		return Outcome{}, errno.ErrEmptyQuery
	}
	if !last.RetryAllowed {
		return *last, errno.ErrRetryDisabled
	}
	return t.Track(ctx, last.Query), nil
}

// View 金额保留 8 位, 时间戳是毫秒
func (t *Tracker) View(d styx.Deposit) DepositView {
	v := DepositView{
		ID:           d.ID,
		Status:       d.Status,
		StatusColor:  model.StatusColor(d.Status),
		BTCAmount:    formatBTC(d.BTCAmount),
		STXReceiver:  d.STXReceiver,
		BTCSender:    d.BTCSender,
		BTCTxIDShort: model.TruncateTxID(""),
		CreatedAt:    time.UnixMilli(d.CreatedAt).UTC(),
	}
	if d.SBTCAmount != nil {
		v.SBTCAmount = formatBTC(*d.SBTCAmount)
	}
	if d.BTCTxID != nil && *d.BTCTxID != "" {
		v.BTCTxID = *d.BTCTxID
		v.BTCTxIDShort = model.TruncateTxID(v.BTCTxID)
		if t.txURLBase != "" {
			v.TxURL = t.txURLBase + v.BTCTxID
		}
	}
	if d.UpdatedAt > 0 {
		u := time.UnixMilli(d.UpdatedAt).UTC()
		v.UpdatedAt = &u
	}
	return v
}
