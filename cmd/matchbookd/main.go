package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"matchbook/internal/cli"
	"matchbook/internal/engine"
	"matchbook/internal/feed"
	"matchbook/internal/ingest"
	"matchbook/internal/telemetry"
)

func main() {
	symbolsFlag := flag.String("symbols", "AAPL", "comma-separated list of symbols to open books for")
	metricsAddr := flag.String("metrics-addr", "0.0.0.0:2112", "listen address for the Prometheus /metrics endpoint")
	feedAddr := flag.String("feed-addr", "0.0.0.0:8081", "listen address for the websocket trade feed")
	batchSize := flag.Int("batch-size", ingest.DefaultOptions().BatchSize, "max commands coalesced per batch before applying to a book")
	coalesceMicros := flag.Uint("coalesce-micros", uint(ingest.DefaultOptions().CoalesceMicros), "bounded-time coalescing window in microseconds; 0 means non-blocking drain only")
	logLevel := flag.String("log-level", "info", "zerolog level: debug, info, warn, error")
	flag.Parse()

	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("log_level", *logLevel).Msg("unrecognized log level, leaving default")
	}

	symbols := strings.Split(*symbolsFlag, ",")
	books := make(map[string]*engine.OrderBook, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		books[s] = engine.New()
	}
	if len(books) == 0 {
		log.Fatal().Msg("no symbols configured, nothing to do")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	metrics := telemetry.New()
	go func() {
		if err := metrics.Serve(*metricsAddr); err != nil {
			log.Error().Err(err).Msg("telemetry server exited")
		}
	}()

	opts := ingest.Options{
		BatchSize:      *batchSize,
		EmitTrades:     true,
		CoalesceMicros: uint32(*coalesceMicros),
	}
	ing := ingest.StartMultiIngestor(ctx, books, opts, func(symbol string) {
		log.Warn().Str("symbol", symbol).Msg("dropped command for unregistered symbol")
	}, metrics)

	hub := feed.NewHub()
	feedDone := make(chan struct{})
	cliTrades := make(chan ingest.TradeEvent, 256)
	feedTrades := make(chan ingest.TradeEvent, 256)
	go fanOutTrades(ing.RxTrade, cliTrades, feedTrades, feedDone)
	go hub.Run(feedDone, feedTrades)

	go func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/feed", hub.ServeHTTP)
		if err := http.ListenAndServe(*feedAddr, mux); err != nil {
			log.Error().Err(err).Msg("feed server exited")
		}
	}()

	cliLines := make(chan cli.Line, 64)
	go cli.ReadCommands(os.Stdin, os.Stderr, cliLines, feedDone)
	go cli.PrintTrades(os.Stdout, cliTrades, feedDone)
	go forwardCliLines(ing.TxCmd, cliLines, feedDone)

	log.Info().
		Strs("symbols", symbolList(books)).
		Str("metrics_addr", *metricsAddr).
		Str("feed_addr", *feedAddr).
		Msg("matchbookd running")

	<-ctx.Done()
	close(feedDone)
	ing.Kill(nil)
	if err := ing.Wait(); err != nil {
		log.Error().Err(err).Msg("ingestor shut down with error")
	}
}

func symbolList(books map[string]*engine.OrderBook) []string {
	out := make([]string, 0, len(books))
	for s := range books {
		out = append(out, s)
	}
	return out
}

// fanOutTrades duplicates every trade event from rxTrade onto cliOut and
// feedOut for the stdout tape and the websocket hub. Sends are non-blocking:
// a slow cliOut consumer never blocks the feed, and vice versa, and an event
// is dropped for whichever consumer's buffer is full.
func fanOutTrades(rxTrade <-chan ingest.TradeEvent, cliOut, feedOut chan<- ingest.TradeEvent, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-rxTrade:
			if !ok {
				return
			}
			select {
			case cliOut <- ev:
			default:
			}
			select {
			case feedOut <- ev:
			default:
			}
		case <-done:
			return
		}
	}
}

func forwardCliLines(txCmd chan<- ingest.MultiRawCommand, lines <-chan cli.Line, done <-chan struct{}) {
	for {
		select {
		case l, ok := <-lines:
			if !ok {
				return
			}
			select {
			case txCmd <- ingest.MultiRawCommand{Symbol: l.Symbol, Cmd: l.Cmd}:
			case <-done:
				return
			}
		case <-done:
			return
		}
	}
}
