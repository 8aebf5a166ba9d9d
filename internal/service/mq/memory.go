package mq

import (
	"context"
	"strconv"
	"sync"
)

// MemoryBus 进程内 Producer, 没有 Redis/Kafka 时使用
type MemoryBus struct {
	mu       sync.Mutex
	seq      int
	messages []Message
	fail     error
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Publish(_ context.Context, topic string, key string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail != nil {
		return b.fail
	}
	b.seq++
	b.messages = append(b.messages, Message{
		ID:      strconv.Itoa(b.seq),
		Topic:   topic,
		Key:     key,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

// FailWith makes every following Publish return err. nil clears it.
func (b *MemoryBus) FailWith(err error) {
	b.mu.Lock()
	b.fail = err
	b.mu.Unlock()
}

// Messages returns a copy of everything published so far.
func (b *MemoryBus) Messages() []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Message(nil), b.messages...)
}

func (b *MemoryBus) Close() error {
	return nil
}
