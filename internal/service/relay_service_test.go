package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deposit-core/internal/model"
	"deposit-core/internal/service/mq"
)

type memOutbox struct {
	mu       sync.Mutex
	messages []model.OutboxMessage
	markErr  error
}

func (m *memOutbox) Pending(_ context.Context, limit int) ([]model.OutboxMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.OutboxMessage
	for _, msg := range m.messages {
		if msg.Status == model.OutboxPending && len(out) < limit {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *memOutbox) MarkSent(_ context.Context, id uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return m.markErr
	}
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].Status = model.OutboxSent
		}
	}
	return nil
}

func pending(id uint64, key string) model.OutboxMessage {
	return model.OutboxMessage{ID: id, Topic: "deposit_events", Key: key, Payload: []byte(`{"type":"deposit.broadcast"}`), Status: model.OutboxPending}
}

func TestRelayOnce_PublishesWithKeyAndMarksSent(t *testing.T) {
	store := &memOutbox{messages: []model.OutboxMessage{pending(1, "SP1"), pending(2, "SP2")}}
	bus := mq.NewMemoryBus()
	relay := NewRelayService(store, bus)

	n := relay.RelayOnce(context.Background())
	assert.Equal(t, 2, n)

	published := bus.Messages()
	require.Len(t, published, 2)
	assert.Equal(t, "SP1", published[0].Key)
	assert.Equal(t, "deposit_events", published[0].Topic)

	left, _ := store.Pending(context.Background(), 10)
	assert.Empty(t, left)
}

func TestRelayOnce_PublishFailureKeepsPending(t *testing.T) {
	store := &memOutbox{messages: []model.OutboxMessage{pending(1, "SP1")}}
	bus := mq.NewMemoryBus()
	bus.FailWith(errors.New("broker down"))
	relay := NewRelayService(store, bus)

	assert.Equal(t, 0, relay.RelayOnce(context.Background()))
	left, _ := store.Pending(context.Background(), 10)
	assert.Len(t, left, 1)

	bus.FailWith(nil)
	assert.Equal(t, 1, relay.RelayOnce(context.Background()))
}

func TestRelayOnce_MarkFailureRedelivers(t *testing.T) {
	store := &memOutbox{messages: []model.OutboxMessage{pending(1, "SP1")}, markErr: errors.New("db gone")}
	bus := mq.NewMemoryBus()
	relay := NewRelayService(store, bus)

	relay.RelayOnce(context.Background())
	relay.RelayOnce(context.Background())
	assert.Len(t, bus.Messages(), 2)
}

type flakyProducer struct {
	*mq.MemoryBus
	failID string
}

func (f *flakyProducer) Publish(ctx context.Context, topic, key string, payload []byte) error {
	if string(payload) == f.failID {
		return errors.New("broker rejected")
	}
	return f.MemoryBus.Publish(ctx, topic, key, payload)
}

func TestRelayOnce_FailureHoldsBackSameWallet(t *testing.T) {
	msg := func(id uint64, key string) model.OutboxMessage {
		m := pending(id, key)
		m.Payload = []byte{byte('0' + id)}
		return m
	}
	store := &memOutbox{messages: []model.OutboxMessage{msg(1, "SP1"), msg(2, "SP2"), msg(3, "SP1")}}
	bus := &flakyProducer{MemoryBus: mq.NewMemoryBus(), failID: "1"}
	relay := NewRelayService(store, bus)

	assert.Equal(t, 1, relay.RelayOnce(context.Background()))
	published := bus.Messages()
	require.Len(t, published, 1)
	assert.Equal(t, "SP2", published[0].Key)

	left, _ := store.Pending(context.Background(), 10)
	assert.Len(t, left, 2)
}
