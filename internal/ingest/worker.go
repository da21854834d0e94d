package ingest

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"matchbook/internal/engine"
)

// maxDepthSample bounds the TopN scan used for the depth gauge; it is not a
// cap on real book depth, only on how many levels a depth sample reports.
const maxDepthSample = math.MaxInt

// symbolWorker owns exactly one book and one inbound RawCommand channel. It
// is the only goroutine that ever touches its book.
type symbolWorker struct {
	symbol string
	book   *engine.OrderBook
	inbox  <-chan RawCommand
	opts   Options

	txTrade chan<- TradeEvent
	txDone  chan<- CompletionCount

	obs Observer
	seq uint64
}

func newSymbolWorker(symbol string, book *engine.OrderBook, inbox <-chan RawCommand, opts Options, txTrade chan<- TradeEvent, txDone chan<- CompletionCount, obs Observer) *symbolWorker {
	return &symbolWorker{
		symbol:  symbol,
		book:    book,
		inbox:   inbox,
		opts:    opts,
		txTrade: txTrade,
		txDone:  txDone,
		obs:     obs,
	}
}

// run drains the inbox, coalesces a batch, sequences it, and applies it to
// the book until the inbox is closed or the tomb is dying.
func (w *symbolWorker) run(t *tomb.Tomb) (err error) {
	log.Info().Str("symbol", w.symbol).Msg("symbol worker starting")
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("symbol worker %s panicked: %v", w.symbol, r)
			log.Error().Str("symbol", w.symbol).Interface("panic", r).Msg("symbol worker recovered from panic")
		}
	}()

	batchRaw := make([]RawCommand, 0, w.opts.BatchSize)
	batch := make([]engine.Command, 0, w.opts.BatchSize)
	tradesBuf := make([]engine.Trade, 0, w.opts.BatchSize*2)

	for {
		batchRaw = batchRaw[:0]

		select {
		case <-t.Dying():
			log.Info().Str("symbol", w.symbol).Msg("symbol worker stopping")
			return nil
		case cmd, ok := <-w.inbox:
			if !ok {
				log.Info().Str("symbol", w.symbol).Msg("symbol worker inbox closed")
				return nil
			}
			batchRaw = append(batchRaw, cmd)
		}

		w.coalesce(&batchRaw)

		batch = batch[:0]
		for _, rc := range batchRaw {
			batch = append(batch, w.sequence(rc))
		}

		batchID := uuid.New().String()
		startLen := len(tradesBuf)
		_, procErr := w.book.ProcessCommandsBatchCheckedInto(batch, &tradesBuf)

		// Commands before the failing one (if any) have already matched
		// against the book per spec 4.2's no-rollback rule, so whatever
		// landed in tradesBuf[startLen:] is real and must be published
		// regardless of procErr — only the completion count differs.
		if w.obs != nil {
			if n := len(tradesBuf) - startLen; n > 0 {
				for i := 0; i < n; i++ {
					w.obs.TradeMatched(w.symbol)
				}
			}
		}

		if w.opts.EmitTrades {
			for _, tr := range tradesBuf[startLen:] {
				select {
				case w.txTrade <- TradeEvent{Symbol: w.symbol, Trade: tr}:
				case <-t.Dying():
					return nil
				}
			}
		}
		tradesBuf = tradesBuf[:startLen]

		if procErr != nil {
			log.Error().
				Str("symbol", w.symbol).
				Str("batch_id", batchID).
				Err(procErr).
				Int("batch_len", len(batch)).
				Msg("batch rejected")
			if w.obs != nil {
				w.obs.BatchFailed(w.symbol)
			}
			select {
			case w.txDone <- CompletionFailed:
			case <-t.Dying():
				return nil
			}
			continue
		}

		if w.obs != nil {
			w.obs.BatchSizeObserved(w.symbol, len(batch))
			w.obs.CommandsProcessed(w.symbol, len(batch))
			bids, asks := w.book.TopN(maxDepthSample)
			w.obs.DepthObserved(w.symbol, len(bids), len(asks))
		}

		select {
		case w.txDone <- CompletionCount(len(batch)):
		case <-t.Dying():
			return nil
		}
	}
}

// coalesce opportunistically fills batchRaw up to BatchSize: a non-blocking
// drain when CoalesceMicros is zero, or a bounded-time drain otherwise.
func (w *symbolWorker) coalesce(batchRaw *[]RawCommand) {
	if w.opts.CoalesceMicros == 0 {
		for len(*batchRaw) < w.opts.BatchSize {
			select {
			case cmd, ok := <-w.inbox:
				if !ok {
					return
				}
				*batchRaw = append(*batchRaw, cmd)
			default:
				return
			}
		}
		return
	}

	deadline := time.After(time.Duration(w.opts.CoalesceMicros) * time.Microsecond)
	for len(*batchRaw) < w.opts.BatchSize {
		select {
		case cmd, ok := <-w.inbox:
			if !ok {
				return
			}
			*batchRaw = append(*batchRaw, cmd)
		case <-deadline:
			return
		}
	}
}

// sequence assigns the next strictly-increasing, wrap-on-overflow sequence
// number to a raw command in arrival order.
func (w *symbolWorker) sequence(rc RawCommand) engine.Command {
	seq := w.seq
	w.seq++ // wraps at 2^64, benign per spec: only per-batch order matters.

	switch rc.Type {
	case engine.CmdLimit:
		return engine.Command{Seq: seq, Type: engine.CmdLimit, Side: rc.Side, Price: rc.Price, Qty: rc.Qty}
	case engine.CmdMarket:
		return engine.Command{Seq: seq, Type: engine.CmdMarket, Side: rc.Side, Qty: rc.Qty}
	default: // engine.CmdCancel
		return engine.Command{Seq: seq, Type: engine.CmdCancel, ID: rc.ID}
	}
}
