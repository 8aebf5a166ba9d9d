package mq

import "context"

// Message 一条生命周期事件
type Message struct {
	ID       string // Redis Stream ID 或 Kafka offset
	Topic    string // 例如 "deposit_events"
	Key      string // 分区键, 这里用 Stacks 地址
	Payload  []byte // JSON
	Metadata map[string]string
}

// MetaPublishedAt 发布时间 (unix ms), Redis 放在 stream 字段里, Kafka 放在 header 里
const MetaPublishedAt = "published_at"

// Producer 生产者接口
type Producer interface {
	// Publish key 相同的消息进入同一分区, 空 key 随机分区
	Publish(ctx context.Context, topic string, key string, payload []byte) error
	Close() error
}

// Consumer 消费者接口
type Consumer interface {
	// Subscribe handler 返回 error 时消息不确认
	Subscribe(ctx context.Context, topic string, handler func(msg *Message) error) error
	Close() error
}
