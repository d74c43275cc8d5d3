package broadcaster

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tickbook/domain/orderbook"
	"tickbook/infra/metrics"
	"tickbook/infra/outbox"
	"tickbook/infra/ticks"
)

// Store is the part of the outbox the broadcaster drives.
type Store interface {
	ScanPending(limit int, fn func(outbox.Entry) error) error
	MarkAcked(seq uint64) error
	MarkFailed(e outbox.Entry) error
	Pending() (int, error)
}

type Config struct {
	Topic    string
	Interval time.Duration
	// Batch caps the entries published per tick.
	Batch   int
	Ticks   ticks.Scale
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

type Broadcaster struct {
	store    Store
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
	batch    int
	ticks    ticks.Scale
	session  uuid.UUID
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// L1Message is the published JSON payload. Display prices are empty for
// an empty side.
type L1Message struct {
	V         int    `json:"v"`
	Session   string `json:"session"`
	Seq       uint64 `json:"seq"`
	TS        int64  `json:"ts"`
	BestBid   int64  `json:"best_bid"`
	BestAsk   int64  `json:"best_ask"`
	BidQty    uint64 `json:"bid_qty"`
	AskQty    uint64 `json:"ask_qty"`
	BestBidPx string `json:"best_bid_px"`
	BestAskPx string `json:"best_ask_px"`
}

// ------------------------------------------------
// CONSTRUCTOR
// ------------------------------------------------

// NewSyncProducer builds the sarama producer the broadcaster expects:
// acks from all replicas and successes returned.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return sarama.NewSyncProducer(brokers, cfg)
}

func New(store Store, producer sarama.SyncProducer, cfg Config) *Broadcaster {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.Batch <= 0 {
		cfg.Batch = 512
	}
	if cfg.Ticks.Size().IsZero() {
		cfg.Ticks = ticks.MustParse("1")
	}
	session := uuid.New()
	return &Broadcaster{
		store:    store,
		producer: producer,
		topic:    cfg.Topic,
		interval: cfg.Interval,
		batch:    cfg.Batch,
		ticks:    cfg.Ticks,
		session:  session,
		metrics:  cfg.Metrics,
		log:      cfg.Logger.With().Str("component", "broadcaster").Str("session", session.String()).Logger(),
	}
}

func (b *Broadcaster) Session() uuid.UUID { return b.session }

// ------------------------------------------------
// LOOP
// ------------------------------------------------

// Run publishes pending entries every interval until ctx ends.
func (b *Broadcaster) Run(ctx context.Context) error {
	b.log.Info().Str("topic", b.topic).Dur("interval", b.interval).Msg("broadcaster started")
	t := time.NewTicker(b.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			// Last pass so a clean shutdown leaves nothing behind.
			_, _ = b.PublishOnce()
			return nil
		case <-t.C:
			if _, err := b.PublishOnce(); err != nil {
				b.log.Warn().Err(err).Msg("publish pass stopped early")
			}
		}
	}
}

// ------------------------------------------------
// REPLAY LOGIC
// ------------------------------------------------

var errStopPass = errors.New("broadcaster: stop pass")

// PublishOnce sends pending entries in sequence order and acks each one that
// Kafka accepted. The first failure ends the pass so ordering holds; the
// entry stays pending for the next pass.
func (b *Broadcaster) PublishOnce() (int, error) {
	sent := 0
	var sendErr error
	err := b.store.ScanPending(b.batch, func(e outbox.Entry) error {
		value, err := json.Marshal(b.message(e.L1Update))
		if err != nil {
			return err
		}
		_, _, err = b.producer.SendMessage(&sarama.ProducerMessage{
			Topic: b.topic,
			Key:   sarama.ByteEncoder(binary.BigEndian.AppendUint64(nil, e.Seq)),
			Value: sarama.ByteEncoder(value),
		})
		b.metrics.PublishResult(err)
		if err != nil {
			sendErr = err
			if mErr := b.store.MarkFailed(e); mErr != nil {
				b.log.Error().Err(mErr).Uint64("seq", e.Seq).Msg("mark failed")
			}
			return errStopPass
		}
		if err := b.store.MarkAcked(e.Seq); err != nil {
			return err
		}
		sent++
		return nil
	})
	if errors.Is(err, errStopPass) {
		err = sendErr
	}
	if n, pErr := b.store.Pending(); pErr == nil {
		b.metrics.SetPending(n)
	}
	return sent, err
}

func (b *Broadcaster) message(u orderbook.L1Update) L1Message {
	m := L1Message{
		V:       1,
		Session: b.session.String(),
		Seq:     u.Seq,
		TS:      u.Time,
		BestBid: u.BestBid,
		BestAsk: u.BestAsk,
		BidQty:  u.BidQty,
		AskQty:  u.AskQty,
	}
	if u.BidQty > 0 {
		m.BestBidPx = b.ticks.Format(u.BestBid)
	}
	if u.AskQty > 0 {
		m.BestAskPx = b.ticks.Format(u.BestAsk)
	}
	return m
}

// ------------------------------------------------
// SHUTDOWN
// ------------------------------------------------

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
