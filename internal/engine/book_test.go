package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Setup & Helpers --------------------------------------------------------

func placeTestOrders(book *OrderBook, price uint64, side Side, quantities ...uint64) {
	for _, qty := range quantities {
		book.SubmitLimit(side, price, qty)
	}
}

// --- Tests ------------------------------------------------------------------

func TestSubmitLimit_SimpleCross(t *testing.T) {
	book := New()
	sellID, _, _ := book.SubmitLimit(Sell, 100, 5)
	_, trades, remaining := book.SubmitLimit(Buy, 105, 7)

	require.Len(t, trades, 1)
	assert.Equal(t, sellID, trades[0].MakerID)
	assert.EqualValues(t, 5, trades[0].Qty)
	assert.EqualValues(t, 100, trades[0].Price)
	assert.EqualValues(t, 2, remaining)

	price, qty, ok := book.BestBid()
	assert.True(t, ok)
	assert.EqualValues(t, 105, price)
	assert.EqualValues(t, 2, qty)
}

func TestSubmitLimit_FIFOWithinLevel(t *testing.T) {
	book := New()
	idA, _, _ := book.SubmitLimit(Sell, 100, 3)
	idB, _, _ := book.SubmitLimit(Sell, 100, 4)
	_, trades, remaining := book.SubmitLimit(Buy, 105, 5)

	require.Len(t, trades, 2)
	assert.Equal(t, idA, trades[0].MakerID)
	assert.EqualValues(t, 3, trades[0].Qty)
	assert.Equal(t, idB, trades[1].MakerID)
	assert.EqualValues(t, 2, trades[1].Qty)
	assert.EqualValues(t, 0, remaining)

	price, qty, ok := book.BestAsk()
	assert.True(t, ok)
	assert.EqualValues(t, 100, price)
	assert.EqualValues(t, 2, qty)
}

func TestSubmitLimit_PartialRestThenCancel(t *testing.T) {
	book := New()
	book.SubmitLimit(Sell, 101, 2)
	buyID, trades, _ := book.SubmitLimit(Buy, 101, 5)

	require.Len(t, trades, 1)
	assert.EqualValues(t, 2, trades[0].Qty)
	assert.EqualValues(t, 101, trades[0].Price)

	price, qty, ok := book.BestBid()
	assert.True(t, ok)
	assert.EqualValues(t, 101, price)
	assert.EqualValues(t, 3, qty)

	cancelled, err := book.Cancel(buyID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, cancelled.Qty)

	_, _, ok = book.BestBid()
	assert.False(t, ok)
}

func TestSubmitMarket_AcrossLevels(t *testing.T) {
	book := New()
	for _, lvl := range []uint64{9999, 10001, 10002, 10003} {
		placeTestOrders(book, lvl, Sell, 5)
	}
	book.SubmitLimit(Sell, 9998, 2)

	price, qty, ok := book.BestAsk()
	require.True(t, ok)
	assert.EqualValues(t, 9998, price)
	assert.EqualValues(t, 2, qty)

	_, trades, remaining := book.SubmitMarket(Buy, 9)
	var total uint64
	for _, tr := range trades {
		total += tr.Qty
	}
	assert.EqualValues(t, 9, total)
	assert.EqualValues(t, 0, remaining)

	price, qty, ok = book.BestAsk()
	require.True(t, ok)
	assert.EqualValues(t, 10001, price)
	assert.EqualValues(t, 3, qty)
}

func TestSubmitMarket_EmptyBookNeverRests(t *testing.T) {
	book := New()
	id, trades, remaining := book.SubmitMarket(Buy, 10)
	assert.Empty(t, trades)
	assert.EqualValues(t, 10, remaining)

	_, err := book.Cancel(id)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestTopN_DepthAggregation(t *testing.T) {
	book := New()
	book.SubmitLimit(Buy, 100, 1)
	book.SubmitLimit(Buy, 100, 2)
	book.SubmitLimit(Buy, 99, 4)
	book.SubmitLimit(Sell, 101, 3)
	book.SubmitLimit(Sell, 102, 6)

	bids, asks := book.TopN(2)
	require.Len(t, bids, 2)
	require.Len(t, asks, 2)
	assert.Equal(t, PriceLevelView{Price: 100, Qty: 3}, bids[0])
	assert.Equal(t, PriceLevelView{Price: 99, Qty: 4}, bids[1])
	assert.Equal(t, PriceLevelView{Price: 101, Qty: 3}, asks[0])
	assert.Equal(t, PriceLevelView{Price: 102, Qty: 6}, asks[1])
}

func TestCancel_Unknown(t *testing.T) {
	book := New()
	_, err := book.Cancel(42)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestCancel_IdempotentFailure(t *testing.T) {
	book := New()
	id, _, _ := book.SubmitLimit(Buy, 100, 5)

	_, err := book.Cancel(id)
	require.NoError(t, err)

	_, err = book.Cancel(id)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}

func TestQuantityConservation(t *testing.T) {
	book := New()
	book.SubmitLimit(Sell, 100, 10)
	_, trades, remaining := book.SubmitLimit(Buy, 100, 15)

	var traded uint64
	for _, tr := range trades {
		traded += tr.Qty
	}
	assert.EqualValues(t, 15, traded+remaining)
}

func TestNoCrossedBook(t *testing.T) {
	book := New()
	book.SubmitLimit(Buy, 99, 5)
	book.SubmitLimit(Sell, 100, 5)

	bidPrice, _, bidOK := book.BestBid()
	askPrice, _, askOK := book.BestAsk()
	require.True(t, bidOK)
	require.True(t, askOK)
	assert.Less(t, bidPrice, askPrice)
}
