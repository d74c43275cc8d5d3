package kafka

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"tickbook/domain/orderbook"
	"tickbook/infra/tape"
)

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer reads order events from a topic and serves them as an event
// source. Messages that do not decode are logged and skipped.
type Consumer struct {
	reader  messageReader
	log     zerolog.Logger
	skipped atomic.Uint64
}

func NewConsumer(cfg ConsumerConfig, log zerolog.Logger) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:  cfg.Brokers,
			Topic:    cfg.Topic,
			GroupID:  cfg.GroupID,
			MinBytes: 1,
			MaxBytes: 10e6,
		}),
		log: log.With().Str("component", "kafka-consumer").Str("topic", cfg.Topic).Logger(),
	}
}

// Next blocks until a decodable event arrives or ctx ends.
func (c *Consumer) Next(ctx context.Context) (orderbook.Event, error) {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			return orderbook.Event{}, err
		}
		ev, err := tape.UnmarshalEvent(msg.Value)
		// Clears are an operator action, never part of the order flow.
		if err != nil || ev.Kind == 0 || ev.Kind == orderbook.KindClear {
			c.skipped.Add(1)
			c.log.Warn().Err(err).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("skipping message")
			continue
		}
		return ev, nil
	}
}

// Skipped counts messages dropped as undecodable.
func (c *Consumer) Skipped() uint64 { return c.skipped.Load() }

func (c *Consumer) Close() error {
	return c.reader.Close()
}
