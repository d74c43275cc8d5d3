// Package memory provides the allocation primitives used on the book's
// hot path: a free-list slot Arena addressed by index, a typed Pool for
// recycled objects, and a lock-free SPSC Ring for handing work from the
// single book writer to a background consumer.
//
// The package is dependency-free.
package memory
