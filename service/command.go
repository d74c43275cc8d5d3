package service

import "tickbook/domain/orderbook"

type op uint8

const (
	opApply op = iota
	opClear
	opLevel
	opDepth
)

// command is one request to the owner goroutine. Commands and their reply
// channels are recycled through a pool; a command whose caller gave up
// waiting is left to the garbage collector instead.
type command struct {
	op    op
	ev    orderbook.Event
	side  orderbook.Side
	price int64
	n     int
	out   reply
	reply chan reply
}

type reply struct {
	status orderbook.Status
	level  orderbook.Level
	found  bool
	levels []orderbook.Level
}

func newCommand() *command {
	return &command{reply: make(chan reply, 1)}
}

// resetCommand clears a command for reuse. The reply channel is kept; it is
// drained by the time a command goes back to the pool.
func resetCommand(c *command) {
	*c = command{reply: c.reply}
}
