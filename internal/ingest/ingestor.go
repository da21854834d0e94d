package ingest

import (
	"context"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/engine"
)

// chanCapacity bounds the global command/trade/completion channels and each
// per-symbol inbox. Spec 5.3 calls for unbounded FIFO channels; an
// unbuffered Go channel is the opposite of that (capacity zero, a
// synchronous rendezvous), so a generous fixed capacity is used instead as
// the bounded substitute spec 5.3 explicitly permits. It is sized well
// above a typical BatchSize so coalesce's non-blocking drain (worker.go)
// actually has something queued to pick up rather than degenerating to one
// command per batch.
const chanCapacity = 4096

// MultiIngestor is the public surface of the ingestion/dispatch pipeline:
// one global inbound channel, one trade stream, one completion stream, and
// a direct per-symbol route for producers that bypass the router.
type MultiIngestor struct {
	TxCmd   chan<- MultiRawCommand
	RxTrade <-chan TradeEvent
	RxDone  <-chan CompletionCount
	Routes  map[string]chan<- RawCommand

	tomb *tomb.Tomb
}

// Wait blocks until every worker and the router have exited, returning the
// first error any of them returned.
func (m *MultiIngestor) Wait() error {
	return m.tomb.Wait()
}

// Kill requests that every worker and the router stop as soon as they next
// reach a suspension point.
func (m *MultiIngestor) Kill(reason error) {
	m.tomb.Kill(reason)
}

// StartMultiIngestor boots one worker goroutine per book plus a router
// goroutine, all supervised by a tomb derived from ctx, and returns the
// handle a producer/consumer uses to drive and observe them.
//
// onDrop, if non-nil, is invoked by the router whenever it receives a
// command for a symbol with no registered route (see DESIGN.md's
// dropped-command-counter decision); pass nil to stay silent as spec
// describes by default.
//
// obs, if non-nil, receives best-effort notifications of pipeline activity
// for external telemetry (see the Observer doc comment); pass nil to disable
// every call site at zero cost.
func StartMultiIngestor(ctx context.Context, books map[string]*engine.OrderBook, opts Options, onDrop func(symbol string), obs Observer) *MultiIngestor {
	t, ctx := tomb.WithContext(ctx)
	_ = ctx

	txCmd := make(chan MultiRawCommand, chanCapacity)
	txTrade := make(chan TradeEvent, chanCapacity)
	txDone := make(chan CompletionCount, chanCapacity)

	routes := make(map[string]chan<- RawCommand, len(books))
	for symbol, book := range books {
		inbox := make(chan RawCommand, chanCapacity)
		routes[symbol] = inbox

		w := newSymbolWorker(symbol, book, inbox, opts, txTrade, txDone, obs)
		t.Go(func() error { return w.run(t) })
	}

	r := newRouter(txCmd, routes, onDrop, obs)
	t.Go(func() error { return r.run(t) })

	log.Info().
		Int("symbols", len(books)).
		Int("batch_size", opts.BatchSize).
		Bool("emit_trades", opts.EmitTrades).
		Msg("multi-ingestor started")

	return &MultiIngestor{
		TxCmd:   txCmd,
		RxTrade: txTrade,
		RxDone:  txDone,
		Routes:  routes,
		tomb:    t,
	}
}
