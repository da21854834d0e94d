package ingest

import "matchbook/internal/engine"

// RawCommand is an unsequenced instruction as a producer submits it; the
// owning symbol worker assigns it a Seq on admission.
type RawCommand struct {
	Type  engine.CommandType
	Side  engine.Side
	Price uint64
	Qty   uint64
	ID    engine.OrderId // Cancel target
}

// MultiRawCommand tags a RawCommand with the symbol it targets, for the
// global inbound channel the Router drains.
type MultiRawCommand struct {
	Symbol string
	Cmd    RawCommand
}

// TradeEvent tags a completed Trade with the symbol it occurred on.
type TradeEvent struct {
	Symbol string
	Trade  engine.Trade
}

// CompletionCount is published once per processed batch: the number of
// commands in that batch, or a negative sentinel if the batch failed
// (see CompletionFailed).
type CompletionCount int64

// CompletionFailed is published on RxDone in place of a positive count
// when a batch's commands failed ProcessCommandsBatchCheckedInto (almost
// always engine.ErrInvalidSequence, or a Cancel error per 4.2's stop-without
// -rollback rule). Commands ordered before the failing one may still have
// matched against the book and had their trades published on RxTrade before
// CompletionFailed is sent — this sentinel means only "this batch did not
// run to completion", not "this batch had no effect". Consumers that only
// sum completion counts should treat any non-positive value as not
// contributing to their running total.
const CompletionFailed CompletionCount = -1
