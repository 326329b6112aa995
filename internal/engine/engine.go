// Package engine implements the windowed-return detection engine: per-symbol
// price buffers, multi-window threshold evaluation, cooldown gating, and
// filter pipeline orchestration.
package engine

import (
	"context"
	"sync"
	"time"

	"pumpsentry/internal/filters"
	"pumpsentry/internal/logger"
	"pumpsentry/internal/models"
	"pumpsentry/internal/storage"
	"pumpsentry/internal/window"
)

// Notifier delivers a finalized alert. Delivery failures are logged and
// never retried; they do not reverse the committed cooldown.
type Notifier interface {
	SendAlert(alert models.Alert) error
}

// Config holds the immutable detection parameters.
type Config struct {
	Windows  []models.DetectionWindow
	Cooldown time.Duration
}

// Engine consumes ticks for a fixed symbol set, evaluates every configured
// window on each tick, and drives the filter pipeline for crossings that
// pass the cooldown gate.
//
// Ingest must be called from a single goroutine (or at least sequentially
// per symbol); filter evaluations are dispatched as independent goroutines
// and never block ingestion.
type Engine struct {
	config       Config
	maxRetention time.Duration
	buffers      map[string]*window.Buffer
	cooldowns    *CooldownTable
	pipeline     *filters.Pipeline
	notifier     Notifier
	journal      *storage.Storage

	wg    sync.WaitGroup
	nowFn func() time.Time
}

// New creates an engine for the given symbol set. One window buffer and one
// cooldown slot set are initialized per symbol up front; ticks for symbols
// outside the set are dropped silently. journal and notifier may be nil.
func New(config Config, symbols []string, pipeline *filters.Pipeline, notifier Notifier, journal *storage.Storage) *Engine {
	var maxRetention time.Duration
	for _, w := range config.Windows {
		if w.Duration > maxRetention {
			maxRetention = w.Duration
		}
	}

	buffers := make(map[string]*window.Buffer, len(symbols))
	for _, sym := range symbols {
		buffers[sym] = window.New(maxRetention)
	}

	return &Engine{
		config:       config,
		maxRetention: maxRetention,
		buffers:      buffers,
		cooldowns:    NewCooldownTable(config.Cooldown, symbols, config.Windows),
		pipeline:     pipeline,
		notifier:     notifier,
		journal:      journal,
		nowFn:        time.Now,
	}
}

// TrackedSymbols returns the number of symbols the engine was built for.
func (e *Engine) TrackedSymbols() int {
	return len(e.buffers)
}

// Ingest applies one tick: updates the symbol's window buffer, then
// evaluates every configured pump and dump window independently. Multiple
// windows may fire on the same tick.
func (e *Engine) Ingest(ctx context.Context, tick models.Tick) {
	buf, tracked := e.buffers[tick.Symbol]
	if !tracked {
		return
	}

	buf.Add(tick.Timestamp, tick.Price)

	for _, w := range e.config.Windows {
		r, oldPrice, newPrice, err := buf.ReturnOver(w.Duration)
		if err != nil {
			continue
		}
		if !w.Crossed(r) {
			continue
		}

		key := models.AlertKey{Symbol: tick.Symbol, Window: w.Duration, Direction: w.Direction}
		if !e.cooldowns.TryAcquire(key, e.nowFn()) {
			continue
		}

		candidate := models.Alert{
			Symbol:    tick.Symbol,
			Direction: w.Direction,
			Window:    w.Duration,
			Return:    r,
			OldPrice:  oldPrice,
			NewPrice:  newPrice,
		}
		e.wg.Add(1)
		go e.evaluate(ctx, key, candidate)
	}
}

// evaluate runs the hard filters for one acquired slot. Only a crossing
// that survives every hard filter commits the cooldown; a filter failure
// releases the slot untouched.
func (e *Engine) evaluate(ctx context.Context, key models.AlertKey, candidate models.Alert) {
	defer e.wg.Done()

	res, ok := e.pipeline.Run(ctx, key.Symbol)
	if !ok {
		e.cooldowns.Release(key)
		logger.Debug("Crossing for %s rejected by filters (return=%.4f)", key, candidate.Return)
		return
	}

	now := e.nowFn()
	e.cooldowns.Commit(key, now)

	candidate.Volume = res.Volume
	candidate.Spread = res.Spread
	candidate.OI = res.OI
	candidate.DetectedAt = now

	logger.Info("Alert: %s %s %.2f%% over %v (%.6g -> %.6g, spike x%.1f)",
		candidate.Symbol, candidate.Direction, candidate.Return*100, candidate.Window,
		candidate.OldPrice, candidate.NewPrice, candidate.Volume.SpikeRatio)

	if e.notifier != nil {
		if err := e.notifier.SendAlert(candidate); err != nil {
			logger.Error("Failed to deliver alert for %s: %v", key, err)
			return
		}
	}

	if e.journal != nil {
		if err := e.journal.AddAlert(&candidate); err != nil {
			logger.Warn("Failed to journal alert for %s: %v", key, err)
		}
	}
}

// Drain waits for all in-flight filter evaluations to finish.
func (e *Engine) Drain() {
	e.wg.Wait()
}
