package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"deposit-core/pkg/logger"
)

// 生命周期事件只保留最近这么多条, 消费方掉线太久需要从 journal 补
const defaultStreamMaxLen = 100_000

// RedisProducer XADD 到 topic 同名的 stream
type RedisProducer struct {
	client *redis.Client
	maxLen int64
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client, maxLen: defaultStreamMaxLen}
}

// Publish XADD <topic> MAXLEN ~ N * key <stx address> payload <json> published_at <ms>
func (p *RedisProducer) Publish(ctx context.Context, topic string, key string, payload []byte) error {
	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"key":          key,
			"payload":      payload,
			"published_at": time.Now().UnixMilli(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd %s: %w", topic, err)
	}
	return nil
}

// Close client 由 main 持有
func (p *RedisProducer) Close() error {
	return nil
}

// RedisConsumer 消费组模式. 启动时先重放自己名下未 ack 的消息, 再读新消息.
type RedisConsumer struct {
	client *redis.Client
	group  string
	name   string
}

func NewRedisConsumer(client *redis.Client, group, name string) *RedisConsumer {
	return &RedisConsumer{client: client, group: group, name: name}
}

// Subscribe 阻塞直到 ctx 取消
func (c *RedisConsumer) Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error {
	err := c.client.XGroupCreateMkStream(ctx, topic, c.group, "$").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	logger.Info("redis stream consumer subscribed",
		zap.String("topic", topic), zap.String("group", c.group), zap.String("consumer", c.name))

	// "0" 读的是 PEL 里已投递未确认的, 读空了切到 ">"
	cursor := "0"
	for ctx.Err() == nil {
		streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.group,
			Consumer: c.name,
			Streams:  []string{topic, cursor},
			Count:    16,
			Block:    2 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Warn("redis stream read failed", zap.String("topic", topic), zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		n := 0
		for _, stream := range streams {
			for _, x := range stream.Messages {
				n++
				c.dispatch(ctx, topic, x, handler)
			}
		}
		if cursor == "0" && n == 0 {
			cursor = ">"
		}
	}
	return nil
}

func (c *RedisConsumer) dispatch(ctx context.Context, topic string, x redis.XMessage, handler func(msg *Message) error) {
	payload, ok := x.Values["payload"].(string)
	if !ok {
		logger.Warn("redis stream message without payload", zap.String("id", x.ID))
		c.ack(ctx, topic, x.ID)
		return
	}
	msg := &Message{ID: x.ID, Topic: topic, Payload: []byte(payload), Metadata: map[string]string{}}
	msg.Key, _ = x.Values["key"].(string)
	if ts, ok := x.Values["published_at"].(string); ok {
		msg.Metadata[MetaPublishedAt] = ts
	}

	if err := handler(msg); err != nil {
		// 不 ack, 下次重启从 PEL 重放
		logger.Warn("redis stream handler failed", zap.String("id", x.ID), zap.Error(err))
		return
	}
	c.ack(ctx, topic, x.ID)
}

func (c *RedisConsumer) ack(ctx context.Context, topic, id string) {
	if err := c.client.XAck(context.WithoutCancel(ctx), topic, c.group, id).Err(); err != nil {
		logger.Warn("redis stream ack failed", zap.String("id", id), zap.Error(err))
	}
}

func (c *RedisConsumer) Close() error {
	return nil
}
