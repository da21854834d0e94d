package ingest

// Observer receives best-effort notifications of pipeline activity for
// external telemetry. All methods must return quickly; they are called
// from the router/worker goroutines on their hot path. A nil Observer
// (the default) disables every call site.
type Observer interface {
	TradeMatched(symbol string)
	CommandsProcessed(symbol string, n int)
	BatchFailed(symbol string)
	BatchSizeObserved(symbol string, n int)
	RouterDropped(symbol string)
	DepthObserved(symbol string, bidLevels, askLevels int)
}
