package engine

import "sort"

// CommandType tags a sequenced Command's kind.
type CommandType int

const (
	CmdLimit CommandType = iota
	CmdMarket
	CmdCancel
)

// Command is one sequenced instruction to apply to a book. Seq must be
// strictly increasing within a batch.
type Command struct {
	Seq   uint64
	Type  CommandType
	Side  Side
	Price uint64
	Qty   uint64
	ID    OrderId // Cancel target
}

// CommandResult pairs the order id touched by a command with its residual
// quantity: 0 for a successful cancel, the taker's leftover for a submit.
type CommandResult struct {
	ID        OrderId
	Remaining uint64
}

// ProcessCommandsBatchCheckedInto sorts cmds by Seq if they arrive
// out of order, rejects the batch outright if sorted Seq values are not
// strictly increasing, then applies each command to the book in Seq order,
// appending trades to tradesOut in execution order.
//
// On InvalidSequence, cmds is left sorted and any trades already appended
// to tradesOut from a prior call are not rolled back. On a cancel failure,
// processing stops; the commands preceding the failed cancel have already
// been applied.
func (b *OrderBook) ProcessCommandsBatchCheckedInto(cmds []Command, tradesOut *[]Trade) ([]CommandResult, error) {
	if !sort.SliceIsSorted(cmds, func(i, j int) bool { return cmds[i].Seq < cmds[j].Seq }) {
		sort.SliceStable(cmds, func(i, j int) bool { return cmds[i].Seq < cmds[j].Seq })
	}
	for i := 1; i < len(cmds); i++ {
		if cmds[i-1].Seq >= cmds[i].Seq {
			return nil, ErrInvalidSequence
		}
	}

	results := make([]CommandResult, 0, len(cmds))
	for _, cmd := range cmds {
		switch cmd.Type {
		case CmdLimit:
			id, remaining := b.SubmitLimitInto(cmd.Side, cmd.Price, cmd.Qty, tradesOut)
			results = append(results, CommandResult{ID: id, Remaining: remaining})
		case CmdMarket:
			id, remaining := b.SubmitMarketInto(cmd.Side, cmd.Qty, tradesOut)
			results = append(results, CommandResult{ID: id, Remaining: remaining})
		case CmdCancel:
			if _, err := b.Cancel(cmd.ID); err != nil {
				return results, err
			}
			results = append(results, CommandResult{ID: cmd.ID, Remaining: 0})
		}
	}
	return results, nil
}

// BatchOutcome is one slot of ProcessUnchecked's per-command results.
type BatchOutcome struct {
	Result CommandResult
	Err    error
}

// ProcessUnchecked mirrors the original engine's backward-friendly wrapper:
// it copies cmds so the caller's slice is never reordered, defers to
// ProcessCommandsBatchCheckedInto, and on InvalidSequence (or a cancel
// failure) returns a single failing BatchOutcome rather than one per command.
func (b *OrderBook) ProcessUnchecked(cmds []Command, tradesOut *[]Trade) []BatchOutcome {
	owned := make([]Command, len(cmds))
	copy(owned, cmds)

	results, err := b.ProcessCommandsBatchCheckedInto(owned, tradesOut)
	if err != nil {
		return []BatchOutcome{{Err: err}}
	}
	outcomes := make([]BatchOutcome, len(results))
	for i, r := range results {
		outcomes[i] = BatchOutcome{Result: r}
	}
	return outcomes
}
