package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchbook/internal/engine"
	"matchbook/internal/ingest"
)

func TestParseLine_Limit(t *testing.T) {
	l, err := ParseLine("AAPL limit buy 100 5")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", l.Symbol)
	assert.Equal(t, engine.CmdLimit, l.Cmd.Type)
	assert.Equal(t, engine.Buy, l.Cmd.Side)
	assert.EqualValues(t, 100, l.Cmd.Price)
	assert.EqualValues(t, 5, l.Cmd.Qty)
}

func TestParseLine_Market(t *testing.T) {
	l, err := ParseLine("AAPL market sell 7")
	require.NoError(t, err)
	assert.Equal(t, engine.CmdMarket, l.Cmd.Type)
	assert.Equal(t, engine.Sell, l.Cmd.Side)
	assert.EqualValues(t, 7, l.Cmd.Qty)
}

func TestParseLine_Cancel(t *testing.T) {
	l, err := ParseLine("AAPL cancel 42")
	require.NoError(t, err)
	assert.Equal(t, engine.CmdCancel, l.Cmd.Type)
	assert.EqualValues(t, 42, l.Cmd.ID)
}

func TestParseLine_QuitAndExit(t *testing.T) {
	_, err := ParseLine("quit")
	assert.ErrorIs(t, err, Quit)
	_, err = ParseLine("exit")
	assert.ErrorIs(t, err, Quit)
}

func TestParseLine_Malformed(t *testing.T) {
	cases := []string{
		"",
		"AAPL",
		"AAPL limit buy 100",
		"AAPL limit up 100 5",
		"AAPL market buy notaninteger",
		"AAPL cancel notaninteger",
		"AAPL unknown 1 2",
	}
	for _, c := range cases {
		_, err := ParseLine(c)
		assert.Error(t, err, "expected parse error for %q", c)
		assert.NotErrorIs(t, err, Quit)
	}
}

func TestReadCommands_SkipsBadLinesAndForwardsGood(t *testing.T) {
	in := bytes.NewBufferString("AAPL limit buy 100 5\nbogus\nAAPL cancel 1\nquit\nAAPL market buy 1\n")
	var diag bytes.Buffer
	out := make(chan Line, 8)
	done := make(chan struct{})

	ReadCommands(in, &diag, out, done)
	close(out)

	var got []Line
	for l := range out {
		got = append(got, l)
	}
	require.Len(t, got, 2)
	assert.Equal(t, engine.CmdLimit, got[0].Cmd.Type)
	assert.Equal(t, engine.CmdCancel, got[1].Cmd.Type)
	assert.Contains(t, diag.String(), "parse error")
}

func TestPrintTrades_FormatsTradeLine(t *testing.T) {
	rx := make(chan ingest.TradeEvent, 1)
	rx <- ingest.TradeEvent{Symbol: "AAPL", Trade: engine.Trade{TakerID: 2, MakerID: 1, Price: 100, Qty: 5}}
	close(rx)

	var out bytes.Buffer
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		PrintTrades(&out, rx, done)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("PrintTrades did not return after channel close")
	}
	assert.Equal(t, "trade taker=2 maker=1 px=100 qty=5\n", out.String())
}
