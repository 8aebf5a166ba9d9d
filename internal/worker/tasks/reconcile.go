package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"deposit-core/pkg/logger"
	"deposit-core/pkg/styx"
)

const (
	TypeDepositReconcile = "deposit:reconcile"
	QueueReconcile       = "critical"
)

// ReconcilePayload 已广播但后端记录没更新的存款
type ReconcilePayload struct {
	DepositID string `json:"deposit_id"`
	TxID      string `json:"tx_id"`
}

// ---------------------------------------------------------------------
// 1. Producer (Client) Code
// ---------------------------------------------------------------------

// NewReconcileTask 最多重试 10 次, 同一笔存款只会排一个任务
func NewReconcileTask(depositID, txid string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReconcilePayload{DepositID: depositID, TxID: txid})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeDepositReconcile, payload,
		asynq.MaxRetry(10),
		asynq.Timeout(time.Minute),
		asynq.Queue(QueueReconcile),
		asynq.TaskID("reconcile:"+depositID),
	), nil
}

// ---------------------------------------------------------------------
// 2. Consumer (Server) Code
// ---------------------------------------------------------------------

type DepositUpdater interface {
	GetDepositStatus(ctx context.Context, id string) (*styx.Deposit, error)
	UpdateDepositStatus(ctx context.Context, id string, data styx.UpdateDepositData) error
}

// ReconcileHandler 把记录补成 broadcast + txid
type ReconcileHandler struct {
	api DepositUpdater
}

func NewReconcileHandler(api DepositUpdater) *ReconcileHandler {
	return &ReconcileHandler{api: api}
}

func (h *ReconcileHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ReconcilePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// 解析失败重试也没用, 进 Archived 队列
		return fmt.Errorf("json.Unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if p.DepositID == "" || p.TxID == "" {
		return fmt.Errorf("incomplete reconcile payload: %w", asynq.SkipRetry)
	}

	// 1. 先看当前状态, 已经不是 initiated 说明别处更新过了
	d, err := h.api.GetDepositStatus(ctx, p.DepositID)
	if styx.IsNotFound(err) {
		logger.Warn("reconcile: deposit record missing", zap.String("deposit_id", p.DepositID), zap.String("tx_id", p.TxID))
		return fmt.Errorf("deposit %s not found: %w", p.DepositID, asynq.SkipRetry)
	}
	if err != nil {
		return fmt.Errorf("get deposit status: %w", err)
	}
	if d.Status != styx.StatusInitiated {
		logger.Info("reconcile: record already advanced",
			zap.String("deposit_id", p.DepositID),
			zap.String("status", string(d.Status)))
		return nil
	}

	// 2. 补写
	if err := h.api.UpdateDepositStatus(ctx, p.DepositID, styx.UpdateDepositData{
		BTCTxID: p.TxID,
		Status:  styx.StatusBroadcast,
	}); err != nil {
		return fmt.Errorf("update deposit status: %w", err)
	}

	logger.Info("reconcile: deposit record updated", zap.String("deposit_id", p.DepositID), zap.String("tx_id", p.TxID))
	return nil
}
