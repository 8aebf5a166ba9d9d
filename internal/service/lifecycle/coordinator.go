// Package lifecycle drives one deposit attempt from record creation to broadcast,
// cancelling the backend record when the attempt fails before a txid exists.
package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"deposit-core/internal/event"
	"deposit-core/internal/model"
	"deposit-core/pkg/amount"
	"deposit-core/pkg/crypto_util"
	"deposit-core/pkg/errno"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
	"deposit-core/pkg/psbtutil"
	"deposit-core/pkg/styx"
	"deposit-core/pkg/utils/lock"
)

// DepositAPI 后端存款接口
type DepositAPI interface {
	CreateDeposit(ctx context.Context, req styx.CreateDepositRequest) (string, error)
	PrepareTransaction(ctx context.Context, req styx.PrepareRequest) (*styx.PreparedTransaction, error)
	ExecuteTransaction(ctx context.Context, req styx.ExecuteRequest) (*styx.ExecutedTransaction, error)
	UpdateDepositStatus(ctx context.Context, id string, data styx.UpdateDepositData) error
}

type SessionSource interface {
	Current() model.WalletSession
}

// FeeEstimator 只需要所选档位的费率 (sat/vB), 记入尝试记录
type FeeEstimator interface {
	Rate(ctx context.Context, p model.FeePriority) int64
}

// Reconciler 广播后状态更新失败时补偿
type Reconciler interface {
	EnqueueReconcile(ctx context.Context, depositID, txid string) error
}

// Result 一次确认的结果
type Result struct {
	AttemptID     string       `json:"attempt_id"`
	DepositID     string       `json:"deposit_id"`
	TxID          string       `json:"tx_id"`
	State         State        `json:"state"`
	FeeRate       int64        `json:"fee_rate"`
	RecordUpdated bool         `json:"record_updated"`
	Notice        model.Notice `json:"notice"`
}

type Config struct {
	Network string
	LockTTL time.Duration
}

type Coordinator struct {
	api        DepositAPI
	session    SessionSource
	fees       FeeEstimator
	signers    map[model.WalletProvider]Signer
	locker     lock.DistributedLock
	journal    Journal
	reconciler Reconciler
	cfg        Config
	now        func() time.Time
}

type Option func(*Coordinator)

func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

func WithReconciler(r Reconciler) Option {
	return func(c *Coordinator) { c.reconciler = r }
}

func NewCoordinator(api DepositAPI, session SessionSource, fees FeeEstimator, locker lock.DistributedLock, signers []Signer, cfg Config, opts ...Option) *Coordinator {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 10 * time.Minute
	}
	if cfg.Network == "" {
		cfg.Network = "mainnet"
	}
	c := &Coordinator{
		api:     api,
		session: session,
		fees:    fees,
		signers: make(map[model.WalletProvider]Signer, len(signers)),
		locker:  locker,
		journal: NewMemoryJournal(),
		cfg:     cfg,
		now:     time.Now,
	}
	for _, s := range signers {
		c.signers[s.Provider()] = s
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready 至少注册了一个签名器
func (c *Coordinator) Ready() bool {
	return len(c.signers) > 0
}

// Preview prepares a medium-priority transaction so the user can check the
// deposit address and OP_RETURN before confirming. Nothing is created.
func (c *Coordinator) Preview(ctx context.Context, intent model.DepositIntent) (*model.ConfirmationData, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	prepared, err := c.api.PrepareTransaction(ctx, styx.PrepareRequest{
		Amount:         intent.AmountBTC,
		UserAddress:    s.StacksAddress,
		BTCAddress:     s.BitcoinAddress,
		FeePriority:    styx.FeeMedium,
		WalletProvider: string(s.ActiveProvider),
	})
	if err != nil {
		logger.Error("prepare transaction failed", zap.String("stx_address", s.StacksAddress), zap.Error(err))
		return nil, ClassifyPreparationError(err, s.ActiveProvider)
	}

	return &model.ConfirmationData{
		DepositAmount:  intent.AmountBTC,
		DepositAddress: prepared.DepositAddress,
		STXAddress:     s.StacksAddress,
		OpReturnHex:    prepared.OpReturnData,
	}, nil
}

func (c *Coordinator) requireSession() (model.WalletSession, error) {
	s := c.session.Current()
	if !s.SignedIn || s.StacksAddress == "" {
		return s, errno.ErrNotConnected
	}
	if s.BitcoinAddress == "" {
		return s, errno.ErrNoBitcoinAddress
	}
	return s, nil
}

// attempt 单次确认的可变状态, 只在 Confirm 的 goroutine 里使用
type attempt struct {
	row    model.DepositAttempt
	state  State
	intent model.DepositIntent
	sess   model.WalletSession
}

// Confirm runs one attempt. At most one attempt per Stacks address is in flight.
func (c *Coordinator) Confirm(ctx context.Context, intent model.DepositIntent) (*Result, error) {
	s, err := c.requireSession()
	if err != nil {
		return nil, err
	}

	lockKey := lock.AttemptKey(s.StacksAddress)
	locked, err := c.locker.Acquire(ctx, lockKey, c.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire attempt lock: %w", err)
	}
	if !locked {
		return nil, errno.ErrAttemptInFlight
	}
	defer func() {
		if err := c.locker.Release(context.WithoutCancel(ctx), lockKey); err != nil {
			logger.Warn("release attempt lock failed", zap.String("key", lockKey), zap.Error(err))
		}
	}()

	rate := c.fees.Rate(ctx, intent.FeePriority)

	a := &attempt{
		state:  StateIdle,
		intent: intent,
		sess:   s,
		row: model.DepositAttempt{
			ID:             uuid.NewString(),
			StacksAddress:  s.StacksAddress,
			BitcoinAddress: s.BitcoinAddress,
			Provider:       string(s.ActiveProvider),
			AmountSats:     intent.AmountSats,
			FeePriority:    string(intent.FeePriority),
			FeeRate:        rate,
			State:          string(StateIdle),
		},
	}
	logger.Info("deposit attempt started",
		zap.String("attempt_id", a.row.ID),
		zap.String("amount_btc", intent.AmountBTC),
		zap.String("fee_priority", string(intent.FeePriority)),
		zap.Int64("fee_rate", rate),
		zap.String("provider", string(s.ActiveProvider)),
	)

	// 1. 创建后端记录, 失败没有需要补偿的东西
	c.transition(ctx, a, StateCreatingRecord, "")
	depositID, err := c.api.CreateDeposit(ctx, styx.CreateDepositRequest{
		BTCAmount:   amount.FromSats(intent.AmountSats).InexactFloat64(),
		STXReceiver: s.StacksAddress,
		BTCSender:   s.BitcoinAddress,
	})
	if err != nil {
		logger.Error("create deposit failed", zap.String("attempt_id", a.row.ID), zap.Error(err))
		a.row.Error = err.Error()
		c.transition(ctx, a, StateFailed, err.Error())
		c.finish(ctx, a, event.TypeDepositFailed, false)
		monitor.RecordAttempt(a.row.Provider, "create_failed")
		return c.result(a, false), errno.ErrCreateDeposit
	}
	a.row.DepositID = depositID

	// 2-4. 准备 PSBT, 签名, 广播
	c.transition(ctx, a, StatePreparingPsbt, "")
	txid, runErr := c.run(ctx, a)
	if txid == "" {
		if runErr == nil {
			runErr = errno.ErrSigningFailed
		}
		c.compensate(ctx, a, runErr)
		monitor.RecordAttempt(a.row.Provider, "canceled")
		return c.result(a, false), runErr
	}

	// 5. 已经上链, 不再取消也不再广播
	a.row.TxID = txid
	c.transition(ctx, a, StateRecordUpdating, txid)
	updated := c.markBroadcast(ctx, a)

	c.transition(ctx, a, StateDone, "")
	c.finish(ctx, a, event.TypeDepositBroadcast, updated)
	monitor.RecordAttempt(a.row.Provider, "broadcast")
	monitor.RecordDepositAmount(a.row.Provider, intent.AmountSats)

	res := c.result(a, updated)
	res.Notice = model.Notice{
		Title:   "Deposit Initiated",
		Message: "Your Bitcoin transaction has been sent successfully with txid: " + model.ShortTxID(txid),
		Level:   "success",
	}
	return res, nil
}

// run 返回 txid; 只要 txid 非空就说明交易已经交给网络
func (c *Coordinator) run(ctx context.Context, a *attempt) (string, error) {
	s := a.sess

	prepared, err := c.api.PrepareTransaction(ctx, styx.PrepareRequest{
		Amount:         a.intent.AmountBTC,
		UserAddress:    s.StacksAddress,
		BTCAddress:     s.BitcoinAddress,
		FeePriority:    a.intent.FeePriority,
		WalletProvider: string(s.ActiveProvider),
	})
	if err != nil {
		return "", ClassifyPreparationError(err, s.ActiveProvider)
	}

	executed, err := c.api.ExecuteTransaction(ctx, styx.ExecuteRequest{
		DepositID:      a.row.DepositID,
		PreparedData:   *prepared,
		WalletProvider: string(s.ActiveProvider),
		BTCAddress:     s.BitcoinAddress,
	})
	if err != nil {
		return "", ClassifyPreparationError(err, s.ActiveProvider)
	}

	packet, err := psbtutil.DecodeHex(executed.TxPsbtHex)
	if err != nil {
		return "", errno.ErrPrepareTransaction.WithDetail(err.Error())
	}

	c.transition(ctx, a, StateAwaitingSignature, "")

	signer, ok := c.signers[s.ActiveProvider]
	if !ok {
		return "", errno.ErrNoWalletProvider
	}

	if signer.RequiresManualInputConstruction(s.BitcoinAddress, executed.NeedsFrontendInputHandling) {
		ic, ok := signer.(InputConstructor)
		if !ok {
			return "", errno.ErrP2SHNotSupported
		}
		if err := ic.AddInputs(ctx, packet, s.BitcoinAddress, prepared.UTXOs); err != nil {
			return "", classifySigningError(err)
		}
	}
	a.row.PsbtDigest = digest(packet)
	logger.Debug("psbt ready for signing",
		zap.String("attempt_id", a.row.ID),
		zap.String("provider", string(s.ActiveProvider)),
		zap.String("digest", crypto_util.ShortDigest(a.row.PsbtDigest)),
	)

	signed := false
	txid, err := signer.Sign(ctx, SignRequest{
		Packet:     packet,
		BTCAddress: s.BitcoinAddress,
		InputCount: len(prepared.UTXOs),
		Network:    c.cfg.Network,
		OnSigned: func() {
			if !signed {
				signed = true
				c.transition(ctx, a, StateBroadcasting, "")
			}
		},
	})
	if err != nil {
		return "", classifySigningError(err)
	}
	if !signed {
		c.transition(ctx, a, StateBroadcasting, "")
	}
	return txid, nil
}

// compensate 把后端记录标记为 canceled, 尽力而为
func (c *Coordinator) compensate(ctx context.Context, a *attempt, cause error) {
	a.row.Error = cause.Error()
	logger.Error("deposit attempt failed, canceling record",
		zap.String("attempt_id", a.row.ID),
		zap.String("deposit_id", a.row.DepositID),
		zap.String("state", string(a.state)),
		zap.Error(cause),
	)

	c.transition(ctx, a, StateCanceling, cause.Error())

	// 调用方断开也要把记录取消
	cctx := context.WithoutCancel(ctx)
	if err := c.api.UpdateDepositStatus(cctx, a.row.DepositID, styx.UpdateDepositData{Status: styx.StatusCanceled}); err != nil {
		logger.Error("cancel deposit record failed",
			zap.String("deposit_id", a.row.DepositID),
			zap.Error(err),
		)
	}

	c.transition(ctx, a, StateFailed, "")
	c.finish(ctx, a, event.TypeDepositFailed, false)
}

func (c *Coordinator) markBroadcast(ctx context.Context, a *attempt) bool {
	uctx := context.WithoutCancel(ctx)
	err := c.api.UpdateDepositStatus(uctx, a.row.DepositID, styx.UpdateDepositData{
		BTCTxID: a.row.TxID,
		Status:  styx.StatusBroadcast,
	})
	if err == nil {
		return true
	}

	monitor.RecordReconciliationGap()
	logger.Error("update deposit after broadcast failed",
		zap.String("deposit_id", a.row.DepositID),
		zap.String("tx_id", a.row.TxID),
		zap.Error(err),
	)
	if c.reconciler != nil {
		if err := c.reconciler.EnqueueReconcile(uctx, a.row.DepositID, a.row.TxID); err != nil {
			logger.Error("enqueue reconcile failed", zap.String("deposit_id", a.row.DepositID), zap.Error(err))
		}
	}
	return false
}

func (c *Coordinator) transition(ctx context.Context, a *attempt, to State, detail string) {
	from := a.state
	if !CanTransition(from, to) {
		// 状态机写错了才会走到这里
		logger.Error("illegal attempt transition",
			zap.String("attempt_id", a.row.ID),
			zap.String("from", string(from)),
			zap.String("to", string(to)),
		)
		return
	}
	a.state = to
	a.row.State = string(to)
	monitor.RecordTransition(string(from), string(to))

	if err := c.journal.Record(context.WithoutCancel(ctx), &a.row, from, to, detail); err != nil {
		logger.Warn("journal transition failed", zap.String("attempt_id", a.row.ID), zap.Error(err))
	}
}

func (c *Coordinator) finish(ctx context.Context, a *attempt, typ string, recordUpdated bool) {
	evt := &event.DepositLifecycleEvent{
		Type:           typ,
		AttemptID:      a.row.ID,
		DepositID:      a.row.DepositID,
		StacksAddress:  a.row.StacksAddress,
		BitcoinAddress: a.row.BitcoinAddress,
		Provider:       a.row.Provider,
		AmountSats:     a.row.AmountSats,
		TxID:           a.row.TxID,
		RecordUpdated:  recordUpdated,
		Error:          a.row.Error,
		OccurredAt:     c.now().UnixMilli(),
	}
	if err := c.journal.Complete(context.WithoutCancel(ctx), &a.row, evt); err != nil {
		logger.Warn("journal completion failed", zap.String("attempt_id", a.row.ID), zap.Error(err))
	}
}

func (c *Coordinator) result(a *attempt, updated bool) *Result {
	return &Result{
		AttemptID:     a.row.ID,
		DepositID:     a.row.DepositID,
		TxID:          a.row.TxID,
		State:         a.state,
		FeeRate:       a.row.FeeRate,
		RecordUpdated: updated,
	}
}

func digest(p *psbt.Packet) string {
	raw, err := psbtutil.Serialize(p)
	if err != nil {
		return ""
	}
	return crypto_util.PSBTDigest(raw)
}
