package kafka

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/segmentio/kafka-go"

	"tickbook/domain/orderbook"
	"tickbook/infra/tape"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes order events to the orders topic in the same wire
// encoding the Consumer reads. Messages are keyed by order id so every
// event of one order lands on one partition, in order.
type Producer struct {
	writer messageWriter
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Send publishes a single event.
func (p *Producer) Send(ctx context.Context, ev orderbook.Event) error {
	return p.writer.WriteMessages(ctx, message(ev))
}

// SendBatch publishes evs in one write.
func (p *Producer) SendBatch(ctx context.Context, evs []orderbook.Event) error {
	if len(evs) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, len(evs))
	for i, ev := range evs {
		msgs[i] = message(ev)
	}
	return p.writer.WriteMessages(ctx, msgs...)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

func message(ev orderbook.Event) kafka.Message {
	return kafka.Message{
		Key:   binary.BigEndian.AppendUint64(nil, ev.ID),
		Value: tape.MarshalEvent(ev),
	}
}
