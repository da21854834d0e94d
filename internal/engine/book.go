package engine

import "github.com/tidwall/btree"

// PriceLevel holds the FIFO queue of resting orders at one price.
type PriceLevel struct {
	Price  uint64
	Orders []*Order
}

// priceLevels is an ordered price -> PriceLevel map. Comparator direction
// decides iteration order: bids descend, asks ascend.
type priceLevels = btree.BTreeG[*PriceLevel]

// OrderBook is the per-symbol, single-owner limit order book. It is never
// shared across goroutines; the owning symbol worker is the only caller.
type OrderBook struct {
	Bids *priceLevels
	Asks *priceLevels

	index  map[OrderId]indexEntry
	nextID OrderId
	ts     uint64
}

type indexEntry struct {
	side  Side
	price uint64
}

// New returns an empty order book.
func New() *OrderBook {
	bids := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price > b.Price // descending: best bid first
	})
	asks := btree.NewBTreeG(func(a, b *PriceLevel) bool {
		return a.Price < b.Price // ascending: best ask first
	})
	return &OrderBook{
		Bids:  bids,
		Asks:  asks,
		index: make(map[OrderId]indexEntry),
	}
}

func (b *OrderBook) nextOrderID() OrderId {
	b.nextID++
	return b.nextID
}

func (b *OrderBook) now() uint64 {
	b.ts++
	return b.ts
}

// SubmitLimit issues a new order, matches as far as price allows, and rests
// any unfilled remainder on the book's own side.
func (b *OrderBook) SubmitLimit(side Side, price, qty uint64) (OrderId, []Trade, uint64) {
	var trades []Trade
	id, remaining := b.submitLimitInto(side, price, qty, &trades)
	return id, trades, remaining
}

// SubmitMarket issues a new order and sweeps the opposite side without a
// price bound. A market order never rests.
func (b *OrderBook) SubmitMarket(side Side, qty uint64) (OrderId, []Trade, uint64) {
	var trades []Trade
	id, remaining := b.submitMarketInto(side, qty, &trades)
	return id, trades, remaining
}

// SubmitLimitInto appends trades to trades instead of allocating a fresh slice.
func (b *OrderBook) SubmitLimitInto(side Side, price, qty uint64, trades *[]Trade) (OrderId, uint64) {
	return b.submitLimitInto(side, price, qty, trades)
}

// SubmitMarketInto appends trades to trades instead of allocating a fresh slice.
func (b *OrderBook) SubmitMarketInto(side Side, qty uint64, trades *[]Trade) (OrderId, uint64) {
	return b.submitMarketInto(side, qty, trades)
}

// SubmitLimitsBatch submits a sequence of bare limit orders with no
// sequencing, for book-seeding convenience (ladders in tests/CLI scripts).
func (b *OrderBook) SubmitLimitsBatch(orders []struct {
	Side  Side
	Price uint64
	Qty   uint64
}, trades *[]Trade) {
	for _, o := range orders {
		b.submitLimitInto(o.Side, o.Price, o.Qty, trades)
	}
}

func (b *OrderBook) submitLimitInto(side Side, price, qty uint64, trades *[]Trade) (OrderId, uint64) {
	id := b.nextOrderID()
	ts := b.now()
	remaining := qty

	switch side {
	case Buy:
		remaining = b.matchAgainst(b.Asks, id, remaining, func(levelPrice uint64) bool {
			return levelPrice <= price
		}, trades)
		if remaining > 0 {
			b.rest(b.Bids, &Order{ID: id, Side: Buy, Price: price, Qty: remaining, Type: LimitOrder, TS: ts}, price)
		}
	case Sell:
		remaining = b.matchAgainst(b.Bids, id, remaining, func(levelPrice uint64) bool {
			return levelPrice >= price
		}, trades)
		if remaining > 0 {
			b.rest(b.Asks, &Order{ID: id, Side: Sell, Price: price, Qty: remaining, Type: LimitOrder, TS: ts}, price)
		}
	}
	return id, remaining
}

func (b *OrderBook) submitMarketInto(side Side, qty uint64, trades *[]Trade) (OrderId, uint64) {
	id := b.nextOrderID()
	b.now()
	remaining := qty

	switch side {
	case Buy:
		remaining = b.matchAgainst(b.Asks, id, remaining, func(uint64) bool { return true }, trades)
	case Sell:
		remaining = b.matchAgainst(b.Bids, id, remaining, func(uint64) bool { return true }, trades)
	}
	return id, remaining
}

// matchAgainst sweeps levels, best price first, while eligible(price) holds
// and remaining quantity is unfilled. It consumes each level's FIFO queue
// head-first and removes the level once its queue empties.
func (b *OrderBook) matchAgainst(levels *priceLevels, takerID OrderId, remaining uint64, eligible func(price uint64) bool, trades *[]Trade) uint64 {
	for remaining > 0 {
		level, ok := levels.Min()
		if !ok || !eligible(level.Price) {
			break
		}

		consumed := 0
		for consumed < len(level.Orders) && remaining > 0 {
			maker := level.Orders[consumed]
			tradeQty := min(remaining, maker.Qty)

			*trades = append(*trades, Trade{TakerID: takerID, MakerID: maker.ID, Price: level.Price, Qty: tradeQty})
			maker.Qty -= tradeQty
			remaining -= tradeQty

			if maker.Qty == 0 {
				delete(b.index, maker.ID)
				consumed++
			}
		}

		if consumed > 0 {
			level.Orders = level.Orders[consumed:]
		}
		if len(level.Orders) == 0 {
			levels.Delete(level)
		}
	}
	return remaining
}

func (b *OrderBook) rest(levels *priceLevels, order *Order, price uint64) {
	level, ok := levels.Get(&PriceLevel{Price: price})
	if !ok {
		level = &PriceLevel{Price: price}
		levels.Set(level)
	}
	level.Orders = append(level.Orders, order)
	b.index[order.ID] = indexEntry{side: order.Side, price: price}
}

// Cancel removes a resting order from its price queue and the index.
func (b *OrderBook) Cancel(id OrderId) (Order, error) {
	entry, ok := b.index[id]
	if !ok {
		return Order{}, ErrUnknownOrder
	}

	levels := b.Bids
	if entry.side == Sell {
		levels = b.Asks
	}

	level, ok := levels.Get(&PriceLevel{Price: entry.price})
	if !ok {
		delete(b.index, id)
		return Order{}, ErrUnknownOrder
	}

	idx := -1
	for i, o := range level.Orders {
		if o.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		delete(b.index, id)
		return Order{}, ErrUnknownOrder
	}

	cancelled := *level.Orders[idx]
	level.Orders = append(level.Orders[:idx], level.Orders[idx+1:]...)
	if len(level.Orders) == 0 {
		levels.Delete(level)
	}
	delete(b.index, id)
	return cancelled, nil
}

// BestBid returns the top bid price and its aggregate resting quantity.
func (b *OrderBook) BestBid() (price, qty uint64, ok bool) {
	return levelTop(b.Bids)
}

// BestAsk returns the top ask price and its aggregate resting quantity.
func (b *OrderBook) BestAsk() (price, qty uint64, ok bool) {
	return levelTop(b.Asks)
}

func levelTop(levels *priceLevels) (price, qty uint64, ok bool) {
	level, found := levels.Min()
	if !found {
		return 0, 0, false
	}
	return level.Price, aggregateQty(level), true
}

func aggregateQty(level *PriceLevel) uint64 {
	var total uint64
	for _, o := range level.Orders {
		total += o.Qty
	}
	return total
}

// TopN returns up to n price levels per side, ordered by priority: bids
// descending by price, asks ascending.
func (b *OrderBook) TopN(n int) (bids, asks []PriceLevelView) {
	b.Bids.Scan(func(level *PriceLevel) bool {
		if len(bids) >= n {
			return false
		}
		bids = append(bids, PriceLevelView{Price: level.Price, Qty: aggregateQty(level)})
		return true
	})
	b.Asks.Scan(func(level *PriceLevel) bool {
		if len(asks) >= n {
			return false
		}
		asks = append(asks, PriceLevelView{Price: level.Price, Qty: aggregateQty(level)})
		return true
	})
	return bids, asks
}

// PriceLevelView is an aggregated (price, qty) snapshot of one level.
type PriceLevelView struct {
	Price uint64
	Qty   uint64
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
