package filters

import (
	"context"

	"pumpsentry/internal/logger"
	"pumpsentry/internal/models"
)

// VolumeFilter confirms a crossing against a quote-volume spike: the sum
// over the last WindowMin minutes must clear an absolute floor and a ratio
// against the per-minute baseline of the preceding history.
type VolumeFilter struct {
	data              MarketData
	WindowMin         int
	LookbackMin       int
	MinAbsoluteVolume float64
	MinSpikeRatio     float64
}

// NewVolumeFilter creates a volume spike filter backed by data.
func NewVolumeFilter(data MarketData, windowMin, lookbackMin int, minAbsoluteVolume, minSpikeRatio float64) *VolumeFilter {
	return &VolumeFilter{
		data:              data,
		WindowMin:         windowMin,
		LookbackMin:       lookbackMin,
		MinAbsoluteVolume: minAbsoluteVolume,
		MinSpikeRatio:     minSpikeRatio,
	}
}

// Check evaluates the filter for one symbol. It fails closed on a fetch
// error or insufficient kline history. Diagnostics are meaningful on both
// the pass and fail paths once enough data was available.
func (f *VolumeFilter) Check(ctx context.Context, symbol string) (models.VolumeDiagnostics, bool) {
	var diag models.VolumeDiagnostics

	volumes, err := f.data.RecentMinuteVolumes(ctx, symbol, f.LookbackMin)
	if err != nil {
		logger.Warn("Volume check failed for %s: %v", symbol, err)
		return diag, false
	}

	if len(volumes) < f.WindowMin+5 {
		return diag, false
	}

	recent := volumes[len(volumes)-f.WindowMin:]
	baseline := volumes[:len(volumes)-f.WindowMin]
	if len(baseline) == 0 {
		return diag, false
	}

	var recentSum, baselineSum float64
	for _, v := range recent {
		recentSum += v
	}
	for _, v := range baseline {
		baselineSum += v
	}

	baselineEquiv := baselineSum / float64(len(baseline)) * float64(f.WindowMin)

	diag = models.VolumeDiagnostics{
		RecentSum:     recentSum,
		BaselineEquiv: baselineEquiv,
		SpikeRatio:    recentSum / (baselineEquiv + epsilon),
	}

	if recentSum < f.MinAbsoluteVolume {
		return diag, false
	}
	if diag.SpikeRatio < f.MinSpikeRatio {
		return diag, false
	}
	return diag, true
}
