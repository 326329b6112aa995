package filters

import (
	"context"

	"pumpsentry/internal/logger"
	"pumpsentry/internal/models"
)

// SpreadLiquidityFilter confirms a crossing against the order book in two
// stages: the relative bid/ask spread (cheap), then the top-of-book bid
// notional (depth fetch, only when the spread already qualifies).
type SpreadLiquidityFilter struct {
	data           MarketData
	MaxSpreadPct   float64
	DepthLimit     int
	MinBidNotional float64
}

// NewSpreadLiquidityFilter creates a spread/liquidity filter backed by data.
func NewSpreadLiquidityFilter(data MarketData, maxSpreadPct float64, depthLimit int, minBidNotional float64) *SpreadLiquidityFilter {
	return &SpreadLiquidityFilter{
		data:           data,
		MaxSpreadPct:   maxSpreadPct,
		DepthLimit:     depthLimit,
		MinBidNotional: minBidNotional,
	}
}

// Check evaluates the filter for one symbol, failing closed on any fetch
// error or bad quote. BidNotional stays zero in the diagnostics when the
// depth stage was skipped.
func (f *SpreadLiquidityFilter) Check(ctx context.Context, symbol string) (models.SpreadDiagnostics, bool) {
	var diag models.SpreadDiagnostics

	bid, ask, err := f.data.BestQuote(ctx, symbol)
	if err != nil {
		logger.Warn("Spread check failed for %s: %v", symbol, err)
		return diag, false
	}
	if bid <= 0 || ask <= 0 {
		return diag, false
	}

	mid := (bid + ask) / 2
	diag.Bid = bid
	diag.Ask = ask
	diag.SpreadPct = (ask - bid) / mid

	if diag.SpreadPct > f.MaxSpreadPct {
		// Spread already disqualifies; skip the depth fetch.
		return diag, false
	}

	levels, err := f.data.BidDepth(ctx, symbol, f.DepthLimit)
	if err != nil {
		logger.Warn("Depth check failed for %s: %v", symbol, err)
		return diag, false
	}

	for _, lvl := range levels {
		diag.BidNotional += lvl.Price * lvl.Quantity
	}

	if diag.BidNotional < f.MinBidNotional {
		return diag, false
	}
	return diag, true
}
