package models

import "time"

// VolumeDiagnostics carries the volume filter's measurements. Attached to
// the alert on the pass path; also returned on failure for logging.
type VolumeDiagnostics struct {
	RecentSum     float64
	BaselineEquiv float64
	SpikeRatio    float64
}

// SpreadDiagnostics carries the spread/liquidity filter's measurements.
// BidNotional is zero when the depth stage was skipped.
type SpreadDiagnostics struct {
	Bid         float64
	Ask         float64
	SpreadPct   float64
	BidNotional float64
}

// OIDiagnostics carries the informational open-interest statistic.
// HasData is false when history is insufficient or the fetch failed;
// the alert renders "insufficient history" in that case.
type OIDiagnostics struct {
	HasData     bool
	ChangeRatio float64
	Now         float64
	Past        float64
}

// Alert is one confirmed pump or dump firing. Constructed once, handed to
// the notifier, and optionally journaled; the engine does not retain it.
type Alert struct {
	Symbol     string
	Direction  Direction
	Window     time.Duration
	Return     float64
	OldPrice   float64
	NewPrice   float64
	Volume     VolumeDiagnostics
	Spread     SpreadDiagnostics
	OI         OIDiagnostics
	DetectedAt time.Time
}

// Key returns the cooldown slot this alert occupies.
func (a *Alert) Key() AlertKey {
	return AlertKey{Symbol: a.Symbol, Window: a.Window, Direction: a.Direction}
}
