package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"deposit-core/internal/worker/tasks"
	"deposit-core/pkg/config"
	"deposit-core/pkg/logger"
)

// Client 封装 Asynq Client
type Client struct {
	client *asynq.Client
}

func NewClient(redisCfg config.RedisConfig) *Client {
	return &Client{client: asynq.NewClient(redisOpt(redisCfg))}
}

func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, task, opts...)
}

// EnqueueReconcile 同一个 deposit 已在队列里时视为成功
func (c *Client) EnqueueReconcile(ctx context.Context, depositID, txid string) error {
	task, err := tasks.NewReconcileTask(depositID, txid)
	if err != nil {
		return err
	}
	info, err := c.Enqueue(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		logger.Debug("reconcile already queued", zap.String("deposit_id", depositID))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("reconcile task enqueued", zap.String("deposit_id", depositID), zap.String("task_id", info.ID))
	return nil
}

func (c *Client) Close() error {
	return c.client.Close()
}
