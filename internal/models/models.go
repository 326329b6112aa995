// Package models defines the core domain entities: ticks, detection windows, and alerts.
package models

import (
	"errors"
	"fmt"
	"time"
)

// Direction classifies a detected move.
type Direction string

const (
	DirectionPump Direction = "pump"
	DirectionDump Direction = "dump"
)

// Tick is a single timestamped price observation for one symbol.
// Ticks are ephemeral: they are consumed by the engine and never stored
// beyond the window buffer.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}

// Validate checks tick field constraints.
func (t *Tick) Validate() error {
	if t.Symbol == "" {
		return errors.New("tick symbol must not be empty")
	}
	if t.Price <= 0 {
		return errors.New("tick price must be positive")
	}
	if t.Timestamp.IsZero() {
		return errors.New("tick timestamp must be set")
	}
	return nil
}

// DetectionWindow is one configured lookback window with its crossing
// threshold. Pump thresholds are positive fractional returns, dump
// thresholds negative. Windows are immutable for the process lifetime.
type DetectionWindow struct {
	Duration  time.Duration
	Threshold float64
	Direction Direction
}

// Validate checks window field constraints.
func (w *DetectionWindow) Validate() error {
	if w.Duration <= 0 {
		return errors.New("window duration must be positive")
	}
	switch w.Direction {
	case DirectionPump:
		if w.Threshold <= 0 {
			return fmt.Errorf("pump threshold for %v window must be positive, got %v", w.Duration, w.Threshold)
		}
	case DirectionDump:
		if w.Threshold >= 0 {
			return fmt.Errorf("dump threshold for %v window must be negative, got %v", w.Duration, w.Threshold)
		}
	default:
		return fmt.Errorf("unknown window direction %q", w.Direction)
	}
	return nil
}

// Crossed reports whether a computed return crosses this window's threshold.
func (w *DetectionWindow) Crossed(r float64) bool {
	if w.Direction == DirectionDump {
		return r <= w.Threshold
	}
	return r >= w.Threshold
}

// AlertKey identifies one cooldown slot: a (symbol, window, direction)
// combination alerts at most once per cooldown period.
type AlertKey struct {
	Symbol    string
	Window    time.Duration
	Direction Direction
}

func (k AlertKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Symbol, k.Window, k.Direction)
}

// PriceLevel is one order-book level.
type PriceLevel struct {
	Price    float64
	Quantity float64
}
