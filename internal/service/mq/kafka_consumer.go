package mq

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"deposit-core/pkg/logger"
)

// KafkaConsumer Subscribe 不阻塞, 消费循环在后台
type KafkaConsumer struct {
	brokers []string
	groupID string
	reader  *kafka.Reader
}

func NewKafkaConsumer(brokers []string, groupID string) *KafkaConsumer {
	return &KafkaConsumer{brokers: brokers, groupID: groupID}
}

func (c *KafkaConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	if c.reader != nil {
		return fmt.Errorf("kafka consumer %s already subscribed", c.groupID)
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers: c.brokers,
		GroupID: c.groupID,
		Topic:   topic,
		// 事件很小, 不攒批
		MinBytes:    1,
		MaxBytes:    1 << 20,
		MaxWait:     time.Second,
		StartOffset: kafka.LastOffset,
	})

	logger.Info("kafka consumer subscribed", zap.String("topic", topic), zap.String("group", c.groupID))
	go c.consumeLoop(ctx, handler)
	return nil
}

func (c *KafkaConsumer) consumeLoop(ctx context.Context, handler func(msg *Message) error) {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("kafka fetch failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		msg := fromKafka(m)
		// 处理失败不提交 offset, 重新加入消费组后从上次提交处重放
		if err := handler(msg); err != nil {
			logger.Warn("kafka handler failed", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil {
			logger.Warn("kafka commit failed", zap.String("id", msg.ID), zap.Error(err))
		}
	}
}

func fromKafka(m kafka.Message) *Message {
	msg := &Message{
		ID:       fmt.Sprintf("%d-%d", m.Partition, m.Offset),
		Topic:    m.Topic,
		Key:      string(m.Key),
		Payload:  m.Value,
		Metadata: make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Metadata[h.Key] = string(h.Value)
	}
	return msg
}

func (c *KafkaConsumer) Close() error {
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
