package filters

import (
	"context"
	"sync"
	"time"

	"pumpsentry/internal/logger"
	"pumpsentry/internal/models"
	"pumpsentry/internal/window"
)

// OpenInterestStat maintains a bounded per-symbol open-interest history and
// reports the OI change over its window. It is informational only: fetch
// failures and insufficient history yield "no data", never a filter failure.
type OpenInterestStat struct {
	data   MarketData
	window time.Duration

	mu      sync.Mutex
	history map[string]*window.Buffer
}

// NewOpenInterestStat creates the stat with one history buffer per tracked
// symbol, initialized up front.
func NewOpenInterestStat(data MarketData, win time.Duration, symbols []string) *OpenInterestStat {
	history := make(map[string]*window.Buffer, len(symbols))
	for _, s := range symbols {
		history[s] = window.New(win)
	}
	return &OpenInterestStat{
		data:    data,
		window:  win,
		history: history,
	}
}

// Observe fetches the current open interest, records it, and returns the
// change over the window. Two windows for the same symbol may fire
// concurrently, so the history update runs under the lock.
func (s *OpenInterestStat) Observe(ctx context.Context, symbol string) models.OIDiagnostics {
	oiNow, err := s.data.OpenInterest(ctx, symbol)
	if err != nil {
		logger.Warn("OI fetch failed for %s: %v", symbol, err)
		return models.OIDiagnostics{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	buf, ok := s.history[symbol]
	if !ok {
		return models.OIDiagnostics{}
	}
	buf.Add(time.Now(), oiNow)

	ratio, oiPast, _, err := buf.ReturnOver(s.window)
	if err != nil || buf.Len() < 2 {
		return models.OIDiagnostics{Now: oiNow}
	}

	return models.OIDiagnostics{
		HasData:     true,
		ChangeRatio: ratio,
		Now:         oiNow,
		Past:        oiPast,
	}
}
