package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"deposit-core/internal/service/mq"
	"deposit-core/pkg/logger"
	"deposit-core/pkg/monitor"
)

const relayBatchSize = 50

// RelayService 把 outbox_messages 里的生命周期事件搬运到 MQ
type RelayService struct {
	store    OutboxStore
	producer mq.Producer
	interval time.Duration
}

func NewRelayService(store OutboxStore, producer mq.Producer) *RelayService {
	return &RelayService{
		store:    store,
		producer: producer,
		interval: 500 * time.Millisecond,
	}
}

func (s *RelayService) Start(ctx context.Context) {
	logger.Info("outbox relay started", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			s.RelayOnce(ctx)
		}
	}
}

// RelayOnce publishes one batch and returns how many messages were marked sent.
func (s *RelayService) RelayOnce(ctx context.Context) int {
	// 1. 取一批 PENDING
	messages, err := s.store.Pending(ctx, relayBatchSize)
	if err != nil {
		logger.Error("load pending outbox messages failed", zap.Error(err))
		return 0
	}
	if len(messages) == 0 {
		return 0
	}

	sent := 0
	// 某个钱包的事件发送失败后, 本批次里它后面的事件都不发, 保证同一钱包的事件有序
	blocked := map[string]bool{}
	for _, msg := range messages {
		if blocked[msg.Key] {
			continue
		}
		// 2. 发送, key 是 Stacks 地址
		if err := s.producer.Publish(ctx, msg.Topic, msg.Key, msg.Payload); err != nil {
			monitor.RecordRelayFailure()
			logger.Warn("publish outbox message failed", zap.Uint64("id", msg.ID), zap.String("key", msg.Key), zap.Error(err))
			blocked[msg.Key] = true
			continue
		}

		// 3. 标记 SENT. 失败的话下次还会再发 (at-least-once), 消费方需幂等
		if err := s.store.MarkSent(ctx, msg.ID); err != nil {
			logger.Warn("mark outbox message sent failed", zap.Uint64("id", msg.ID), zap.Error(err))
			continue
		}
		sent++
	}
	logger.Debug("outbox batch relayed", zap.Int("pending", len(messages)), zap.Int("sent", sent))
	return sent
}
