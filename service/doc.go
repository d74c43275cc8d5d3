// Package service owns an order book on a single goroutine.
//
// Producers (gRPC handlers, the Kafka feed, replay) send commands over a
// buffered channel; the owner applies them in batches, records them to the
// tape, and publishes an immutable snapshot after every batch for lock-free
// top-of-book reads. Top-of-book changes leave the owner through an SPSC
// ring drained by a notifier goroutine into the configured sinks.
package service
