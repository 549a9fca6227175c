package kafka

import (
	"context"
	"strconv"
	"time"

	"github.com/ariefcatur/go-marketplace-settlement/internal/domain"
	"github.com/ariefcatur/go-marketplace-settlement/internal/events"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer writes outbox events synchronously so the relay only marks an
// event published once the brokers acknowledged it.
type Producer struct {
	w      *kafka.Writer
	logger *zap.Logger
}

func NewProducer(brokers []string, logger *zap.Logger) *Producer {
	return &Producer{
		w: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
		logger: logger,
	}
}

// Send publishes evs in one batch. Topic comes from each event; the key keeps
// events of one aggregate on the same partition.
func (p *Producer) Send(ctx context.Context, evs ...domain.OutboxEvent) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evs))
	for _, ev := range evs {
		msgs = append(msgs, ToMessage(ev))
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("kafka write failed", zap.Int("count", len(msgs)), zap.Error(err))
		return err
	}
	return nil
}

func (p *Producer) Close() error { return p.w.Close() }

func ToMessage(ev domain.OutboxEvent) kafka.Message {
	return kafka.Message{
		Topic: ev.Topic,
		Key:   []byte(ev.Key),
		Value: ev.Payload,
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: events.HeaderEventType, Value: []byte(ev.EventType)},
			{Key: events.HeaderEventVersion, Value: []byte(strconv.Itoa(events.CurrentEnvelopeVersion))},
		},
	}
}
