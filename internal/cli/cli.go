// Package cli implements the line-oriented stdin command grammar and trade
// tape printer used by the matchbookd entrypoint.
package cli

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"matchbook/internal/engine"
	"matchbook/internal/ingest"
)

// Quit is returned by ParseLine when the line is "quit" or "exit".
var Quit = fmt.Errorf("quit")

// Line is one parsed stdin command, ready to be routed to a symbol's inbox.
type Line struct {
	Symbol string
	Cmd    ingest.RawCommand
}

// ParseLine parses one whitespace-separated command line:
//
//	<symbol> limit  buy|sell  <price>  <quantity>
//	<symbol> market buy|sell  <quantity>
//	<symbol> cancel <order-id>
//	quit | exit
//
// A parse failure returns a descriptive error and never panics; callers
// should print the error and keep reading rather than stop.
func ParseLine(line string) (Line, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Line{}, fmt.Errorf("empty line")
	}

	if len(fields) == 1 && (fields[0] == "quit" || fields[0] == "exit") {
		return Line{}, Quit
	}

	if len(fields) < 2 {
		return Line{}, fmt.Errorf("too few tokens: %q", line)
	}

	symbol := fields[0]
	switch fields[1] {
	case "limit":
		if len(fields) != 5 {
			return Line{}, fmt.Errorf("limit wants 5 tokens, got %d: %q", len(fields), line)
		}
		side, err := parseSide(fields[2])
		if err != nil {
			return Line{}, err
		}
		price, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad price %q: %w", fields[3], err)
		}
		qty, err := strconv.ParseUint(fields[4], 10, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad quantity %q: %w", fields[4], err)
		}
		return Line{Symbol: symbol, Cmd: ingest.RawCommand{
			Type: engine.CmdLimit, Side: side, Price: price, Qty: qty,
		}}, nil

	case "market":
		if len(fields) != 4 {
			return Line{}, fmt.Errorf("market wants 4 tokens, got %d: %q", len(fields), line)
		}
		side, err := parseSide(fields[2])
		if err != nil {
			return Line{}, err
		}
		qty, err := strconv.ParseUint(fields[3], 10, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad quantity %q: %w", fields[3], err)
		}
		return Line{Symbol: symbol, Cmd: ingest.RawCommand{
			Type: engine.CmdMarket, Side: side, Qty: qty,
		}}, nil

	case "cancel":
		if len(fields) != 3 {
			return Line{}, fmt.Errorf("cancel wants 3 tokens, got %d: %q", len(fields), line)
		}
		id, err := strconv.ParseUint(fields[2], 10, 64)
		if err != nil {
			return Line{}, fmt.Errorf("bad order id %q: %w", fields[2], err)
		}
		return Line{Symbol: symbol, Cmd: ingest.RawCommand{
			Type: engine.CmdCancel, ID: engine.OrderId(id),
		}}, nil

	default:
		return Line{}, fmt.Errorf("unknown command %q", fields[1])
	}
}

func parseSide(tok string) (engine.Side, error) {
	switch tok {
	case "buy":
		return engine.Buy, nil
	case "sell":
		return engine.Sell, nil
	default:
		return 0, fmt.Errorf("bad side %q, want buy|sell", tok)
	}
}

// ReadCommands reads lines from r, parses them, and sends well-formed ones to
// out. Parse failures are written as a one-line diagnostic to diag and do
// not stop the loop. Returns when r is exhausted, Quit is parsed, or done is
// closed.
func ReadCommands(r io.Reader, diag io.Writer, out chan<- Line, done <-chan struct{}) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		parsed, err := ParseLine(line)
		if err != nil {
			if err == Quit {
				return
			}
			fmt.Fprintf(diag, "parse error: %v\n", err)
			continue
		}
		select {
		case out <- parsed:
		case <-done:
			return
		}
	}
}

// PrintTrades consumes trade events and writes each as a single line in the
// form "trade taker=<id> maker=<id> px=<p> qty=<q>" until rxTrade closes or
// done fires.
func PrintTrades(w io.Writer, rxTrade <-chan ingest.TradeEvent, done <-chan struct{}) {
	for {
		select {
		case ev, ok := <-rxTrade:
			if !ok {
				return
			}
			fmt.Fprintf(w, "trade taker=%d maker=%d px=%d qty=%d\n",
				ev.Trade.TakerID, ev.Trade.MakerID, ev.Trade.Price, ev.Trade.Qty)
		case <-done:
			return
		}
	}
}
