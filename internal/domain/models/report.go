package models

import "fmt"

// GapFailure records one gap that could not be closed and why.
type GapFailure struct {
	Gap    Gap    `json:"gap"`
	Reason string `json:"reason"`
}

// BackfillReport is the per-call account of what a backfill found and did.
// Partial failure is not fatal: callers inspect the report to see exactly
// which sub-ranges were filled and which remain missing.
type BackfillReport struct {
	Provider      string       `json:"provider"`
	Symbol        string       `json:"symbol"`
	Timeframe     string       `json:"timeframe"`
	Window        Window       `json:"window"`
	GapsRequested []Gap        `json:"gaps_requested"`
	GapsFilled    []Gap        `json:"gaps_filled"`
	GapsMissing   []GapFailure `json:"gaps_missing"`
	BarsFetched   int          `json:"bars_fetched"`
}

// Complete reports whether every requested gap was closed.
func (r *BackfillReport) Complete() bool { return len(r.GapsMissing) == 0 }

// Summary renders a one-line human account for CLI output.
func (r *BackfillReport) Summary() string {
	return fmt.Sprintf("%s/%s %s %s: %d gaps, %d filled, %d missing, %d bars fetched",
		r.Provider, r.Symbol, r.Timeframe, r.Window,
		len(r.GapsRequested), len(r.GapsFilled), len(r.GapsMissing), r.BarsFetched)
}
