package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-fulfillment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability/logctx"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

const relayPeer = "kafka"

// Envelope is the wire format of every relayed event.
type Envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

type aggregate interface {
	AggregateID() string
}

// Relay forwards domain events from the bus to a Kafka topic.
type Relay struct {
	producer Producer
	events   []string
	log      observability.Logger
	counter  observability.Counter
	latency  observability.Histogram
}

func NewRelay(producer Producer, events []string, tel observability.Observability) *Relay {
	if tel == nil {
		tel = observability.Nop()
	}
	m := tel.Metrics()
	return &Relay{
		producer: producer,
		events:   events,
		log:      tel.Logger().With(observability.F("component", "kafka_relay")),
		counter:  m.Counter(observability.MExternalRequests),
		latency:  m.Histogram(observability.MExternalRequestDuration),
	}
}

func (r *Relay) Start(sub domoutbox.Subscriber) {
	for _, name := range r.events {
		sub.Subscribe(name, r.Handle)
	}
}

func (r *Relay) Handle(ctx context.Context, e domoutbox.Event) error {
	msg, err := encode(e)
	if err != nil {
		return err
	}

	start := time.Now()
	err = r.producer.WriteMessage(ctx, msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	r.counter.Add(1,
		observability.L("peer", relayPeer),
		observability.L("endpoint", e.EventName()),
		observability.L("outcome", outcome),
	)
	r.latency.Observe(time.Since(start).Seconds(),
		observability.L("peer", relayPeer),
		observability.L("endpoint", e.EventName()),
	)
	if err != nil {
		return fmt.Errorf("kafka: relay %s: %w", e.EventName(), err)
	}
	logctx.FromOr(ctx, r.log).Debug("event_relayed", observability.F("key", string(msg.Key)))
	return nil
}

func (r *Relay) Close() error {
	return r.producer.Close()
}

func encode(e domoutbox.Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode %s: %w", e.EventName(), err)
	}
	env := Envelope{
		ID:         uuid.NewString(),
		Type:       e.EventName(),
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	value, err := json.Marshal(env)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: encode envelope: %w", err)
	}

	msg := kafka.Message{
		Value:   value,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(env.Type)}},
	}
	if a, ok := e.(aggregate); ok {
		msg.Key = []byte(a.AggregateID())
	}
	return msg, nil
}
