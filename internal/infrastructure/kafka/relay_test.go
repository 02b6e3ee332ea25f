package kafka_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	dominv "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/inventory"
	domorder "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/order"
	kafkarelay "github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/infrastructure/outbox"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
	closed   bool
}

func (p *fakeProducer) WriteMessage(_ context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *fakeProducer) Close() error {
	p.closed = true
	return nil
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestRelayForwardsSubscribedEvents(t *testing.T) {
	producer := &fakeProducer{}
	relay := kafkarelay.NewRelay(producer, []string{"order.created", "inventory.reserved"}, nil)
	bus := outbox.NewBus(nil)
	relay.Start(bus)
	bus.Start(t.Context())

	o := domorder.New("order-1", "user-1")
	_, err := o.AttachItem("item-1", "prod-1", 2, decimal.NewFromInt(3))
	require.NoError(t, err)

	require.NoError(t, bus.Publish(t.Context(), domorder.NewCreatedEvent(o)))
	require.NoError(t, bus.Publish(t.Context(), dominv.NewStockReservedEvent("order-1", "prod-1", 2)))
	require.NoError(t, bus.Publish(t.Context(), domorder.NewCancelledEvent(o)))
	require.NoError(t, bus.Stop(t.Context()))
	require.NoError(t, relay.Close())

	require.Len(t, producer.messages, 2, "unsubscribed events are not relayed")
	assert.True(t, producer.closed)

	byType := map[string]kafka.Message{}
	for _, m := range producer.messages {
		byType[header(m, "event-type")] = m
	}

	created := byType["order.created"]
	assert.Equal(t, "order-1", string(created.Key))
	var env kafkarelay.Envelope
	require.NoError(t, json.Unmarshal(created.Value, &env))
	assert.Equal(t, "order.created", env.Type)
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.OccurredAt.IsZero())
	assert.Contains(t, string(env.Payload), "order-1")

	assert.Equal(t, "prod-1", string(byType["inventory.reserved"].Key))
}

func TestRelayHandleReportsProducerErrors(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker down")}
	relay := kafkarelay.NewRelay(producer, nil, nil)

	err := relay.Handle(t.Context(), dominv.NewStockRestockedEvent("o1", "p1", 1, dominv.RestockReasonCancellation))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory.restocked")
	assert.Contains(t, err.Error(), "broker down")
}

func TestNewProducerRequiresBrokersAndTopic(t *testing.T) {
	_, err := kafkarelay.NewProducer(kafkarelay.WriterConfig{Topic: "t"}, nil)
	assert.Error(t, err)
	_, err = kafkarelay.NewProducer(kafkarelay.WriterConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)
}
