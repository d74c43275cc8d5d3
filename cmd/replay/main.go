// Command replay drives a book offline from a recorded tape or a synthetic
// market and reports the top-of-book traffic it produced. It can also
// record the stream to a new tape or publish it to the orders topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tickbook/config"
	"tickbook/domain/orderbook"
	"tickbook/feed"
	"tickbook/infra/kafka"
	"tickbook/infra/log"
	"tickbook/infra/tape"
)

func main() {
	var (
		tapeDir   = flag.String("tape", "", "replay events from this tape directory")
		count     = flag.Int("n", 100_000, "synthetic events to generate when -tape is empty")
		seed      = flag.Int64("seed", 1, "synthetic market seed")
		record    = flag.String("record", "", "write the replayed events to a new tape in this directory")
		publish   = flag.Bool("publish", false, "publish the replayed events to the kafka orders topic")
		batchSize = flag.Int("batch", 500, "events per kafka write")
		verify    = flag.Bool("verify", true, "check the book's internal consistency at the end")
	)
	flag.Parse()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	logger := log.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	book, err := orderbook.New(cfg.BookConfig())
	if err != nil {
		logger.Fatal().Err(err).Msg("book init failed")
	}
	var notified int
	book.OnTopOfBookChange(func(orderbook.L1) { notified++ })

	var src feed.Source
	if *tapeDir != "" {
		r, err := tape.Open(*tapeDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("tape open failed")
		}
		defer r.Close()
		src = r
	} else {
		src = feed.Limit(feed.NewSynthetic(feed.SyntheticConfig{Seed: *seed}), *count)
	}

	var rec *tape.Writer
	if *record != "" {
		rec, err = tape.Create(tape.Config{Dir: *record})
		if err != nil {
			logger.Fatal().Err(err).Msg("tape create failed")
		}
	}

	var (
		producer *kafka.Producer
		pending  []orderbook.Event
	)
	if *publish {
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.OrdersTopic)
		defer producer.Close()
	}
	flush := func() error {
		if producer == nil || len(pending) == 0 {
			return nil
		}
		err := producer.SendBatch(ctx, pending)
		pending = pending[:0]
		return err
	}

	statuses := make(map[orderbook.Status]int)
	// Recording into an existing tape extends it.
	var seq uint64
	if rec != nil {
		seq = rec.LastSeq()
	}
	start := time.Now()
	n, err := feed.Drain(ctx, src, func(ev orderbook.Event) error {
		seq++
		if rec != nil {
			if err := rec.Append(seq, ev); err != nil {
				return err
			}
		}
		statuses[book.Apply(ev)]++
		if producer != nil {
			pending = append(pending, ev)
			if len(pending) >= *batchSize {
				return flush()
			}
		}
		return nil
	})
	if err == nil {
		err = flush()
	}
	took := time.Since(start)
	if rec != nil {
		if cerr := rec.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		logger.Error().Err(err).Int("events", n).Msg("replay stopped")
	}

	l1 := book.SnapshotL1()
	ev := logger.Info().
		Int("events", n).
		Int("l1_notifications", notified).
		Int("orders", book.TotalOrders()).
		Int("bid_levels", book.Levels(orderbook.Buy)).
		Int("ask_levels", book.Levels(orderbook.Sell)).
		Int64("best_bid", l1.BestBid).
		Uint64("bid_qty", l1.BidQty).
		Int64("best_ask", l1.BestAsk).
		Uint64("ask_qty", l1.AskQty).
		Dur("took", took)
	for st, c := range statuses {
		ev = ev.Int(st.String(), c)
	}
	ev.Msg("replay finished")

	if *verify {
		if verr := book.Verify(); verr != nil {
			logger.Error().Err(verr).Msg("book verification failed")
			os.Exit(2)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}
