// Package filters implements the hard confirmation filters and the
// informational open-interest statistic that run after a threshold crossing.
package filters

import (
	"context"

	"pumpsentry/internal/models"
)

// Guards divide-by-zero on an empty baseline.
const epsilon = 1e-9

// MarketData is the read-side market query surface the filters depend on.
// Every call may fail transiently; a failure fails the calling filter
// closed and is never fatal to the process.
type MarketData interface {
	// RecentMinuteVolumes returns per-minute quote volumes for the last
	// lookback minutes, oldest first.
	RecentMinuteVolumes(ctx context.Context, symbol string, lookbackMinutes int) ([]float64, error)
	// BestQuote returns the current best bid and ask prices.
	BestQuote(ctx context.Context, symbol string) (bid, ask float64, err error)
	// BidDepth returns the top bid levels, best first.
	BidDepth(ctx context.Context, symbol string, levels int) ([]models.PriceLevel, error)
	// OpenInterest returns the current outstanding contract quantity.
	OpenInterest(ctx context.Context, symbol string) (float64, error)
}

// Result bundles the diagnostics of one pipeline run.
type Result struct {
	Volume models.VolumeDiagnostics
	Spread models.SpreadDiagnostics
	OI     models.OIDiagnostics
}

// Pipeline runs the hard filters in fixed order (volume first, spread
// second) with short-circuit on first failure, then computes the
// open-interest statistic. The OI stat never gates.
type Pipeline struct {
	Volume *VolumeFilter
	Spread *SpreadLiquidityFilter
	OI     *OpenInterestStat
}

// Run evaluates the pipeline for one symbol. ok is false when a hard
// filter failed; the partial diagnostics are still returned for logging.
func (p *Pipeline) Run(ctx context.Context, symbol string) (Result, bool) {
	var res Result

	vol, ok := p.Volume.Check(ctx, symbol)
	res.Volume = vol
	if !ok {
		return res, false
	}

	spr, ok := p.Spread.Check(ctx, symbol)
	res.Spread = spr
	if !ok {
		return res, false
	}

	res.OI = p.OI.Observe(ctx, symbol)
	return res, true
}
