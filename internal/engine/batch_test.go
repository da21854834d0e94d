package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatch_SortsOutOfOrderSeq(t *testing.T) {
	book := New()
	cmds := []Command{
		{Seq: 2, Type: CmdLimit, Side: Sell, Price: 100, Qty: 5},
		{Seq: 1, Type: CmdLimit, Side: Sell, Price: 99, Qty: 5},
	}
	var trades []Trade
	results, err := book.ProcessCommandsBatchCheckedInto(cmds, &trades)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// seq=1 (price 99) must have been applied before seq=2 (price 100).
	price, _, ok := book.BestAsk()
	require.True(t, ok)
	assert.EqualValues(t, 99, price)

	// Ids are issued in execution order, so results[0] is the first command run.
	first, err := book.Cancel(results[0].ID)
	require.NoError(t, err)
	assert.EqualValues(t, 99, first.Price)
}

func TestBatch_DuplicateSeqFails(t *testing.T) {
	book := New()
	cmds := []Command{
		{Seq: 5, Type: CmdLimit, Side: Buy, Price: 10, Qty: 1},
		{Seq: 5, Type: CmdLimit, Side: Buy, Price: 10, Qty: 1},
	}
	var trades []Trade
	_, err := book.ProcessCommandsBatchCheckedInto(cmds, &trades)
	assert.ErrorIs(t, err, ErrInvalidSequence)
}

func TestBatch_CancelFailureStopsProcessing(t *testing.T) {
	book := New()
	cmds := []Command{
		{Seq: 1, Type: CmdLimit, Side: Buy, Price: 10, Qty: 1},
		{Seq: 2, Type: CmdCancel, ID: 999},
		{Seq: 3, Type: CmdLimit, Side: Buy, Price: 11, Qty: 1},
	}
	var trades []Trade
	results, err := book.ProcessCommandsBatchCheckedInto(cmds, &trades)
	assert.ErrorIs(t, err, ErrUnknownOrder)
	assert.Len(t, results, 1, "command preceding the failed cancel already applied")

	price, _, ok := book.BestBid()
	assert.True(t, ok, "seq=1's bid rests")
	assert.EqualValues(t, 10, price, "seq=3 must not have run after the cancel failed")
}

func TestBatch_EquivalentToOneAtATime(t *testing.T) {
	cmds := []Command{
		{Seq: 1, Type: CmdLimit, Side: Sell, Price: 100, Qty: 3},
		{Seq: 2, Type: CmdLimit, Side: Sell, Price: 100, Qty: 4},
		{Seq: 3, Type: CmdLimit, Side: Buy, Price: 105, Qty: 5},
		{Seq: 4, Type: CmdMarket, Side: Buy, Qty: 1},
	}

	batched := New()
	var batchedTrades []Trade
	_, err := batched.ProcessCommandsBatchCheckedInto(append([]Command{}, cmds...), &batchedTrades)
	require.NoError(t, err)

	sequential := New()
	var sequentialTrades []Trade
	for _, cmd := range cmds {
		sequential.ProcessCommandsBatchCheckedInto([]Command{cmd}, &sequentialTrades)
	}

	assert.Equal(t, sequentialTrades, batchedTrades)

	bBids, bAsks := batched.TopN(10)
	sBids, sAsks := sequential.TopN(10)
	assert.Equal(t, sBids, bBids)
	assert.Equal(t, sAsks, bAsks)
}

func TestProcessUnchecked_WrapsSingleError(t *testing.T) {
	book := New()
	cmds := []Command{
		{Seq: 1, Type: CmdCancel, ID: 1},
		{Seq: 1, Type: CmdCancel, ID: 2},
	}
	var trades []Trade
	outcomes := book.ProcessUnchecked(cmds, &trades)
	require.Len(t, outcomes, 1)
	assert.ErrorIs(t, outcomes[0].Err, ErrInvalidSequence)
}
