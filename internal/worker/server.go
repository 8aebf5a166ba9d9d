package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"deposit-core/internal/worker/tasks"
	"deposit-core/pkg/config"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
)

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}
}

// Server 跑 reconcile 任务: 交易已广播但 deposit 记录没更新成功的补偿
type Server struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

func NewServer(redisCfg config.RedisConfig, concurrency int, api tasks.DepositUpdater) *Server {
	if concurrency <= 0 {
		concurrency = 2
	}
	srv := asynq.NewServer(redisOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			tasks.QueueReconcile: 6,
			"default":            1,
		},
		RetryDelayFunc: retryDelay,
		ErrorHandler:   asynq.ErrorHandlerFunc(reportFailure),
		Logger:         logger.NewAsynqLogger(),
	})

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeDepositReconcile, tasks.NewReconcileHandler(api))
	return &Server{server: srv, mux: mux}
}

// retryDelay 10s 起翻倍, 最多 10 分钟. Styx 短时间不可用是主要原因.
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	d := 10 * time.Second
	for i := 0; i < n && d < 10*time.Minute; i++ {
		d *= 2
	}
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}

// reportFailure 重试次数用完说明这笔存款只能人工对账
func reportFailure(ctx context.Context, task *asynq.Task, err error) {
	retried, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	taskID, _ := asynq.GetTaskID(ctx)
	if retried < maxRetry {
		logger.Warn("reconcile attempt failed, will retry",
			zap.String("task_id", taskID), zap.Int("retried", retried), zap.Error(err))
		return
	}
	monitor.RecordReconciliationGap()
	logger.Error("reconcile gave up, deposit record needs manual update",
		zap.String("task_id", taskID), zap.String("type", task.Type()), zap.Error(err))
}

// Run 阻塞, 单独部署 worker 时用
func (s *Server) Run() error {
	logger.Info("reconcile worker starting")
	return s.server.Run(s.mux)
}

// Start 非阻塞, 和 HTTP 服务同进程时用
func (s *Server) Start() error {
	return s.server.Start(s.mux)
}

// Stop 不再拉新任务, 等进行中的结束
func (s *Server) Stop() {
	s.server.Stop()
	s.server.Shutdown()
}
