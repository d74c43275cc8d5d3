// Package orderbook maintains an aggregate limit order book: per-side price
// levels keyed by integer ticks, an id -> order map, and a top-of-book
// callback fired when a mutation touches the best level of its side.
//
// The book does no matching, no I/O and no locking. Callers that share a book
// across goroutines funnel every call through a single owner; see package
// service.
package orderbook
