package engine

import (
	"sync"
	"time"

	"pumpsentry/internal/models"
)

// CooldownTable tracks the last alert time per (symbol, window, direction)
// slot and the set of slots with an in-flight filter evaluation. The table
// is bounded: every slot is created up front for the tracked symbol set and
// never pruned.
//
// The check-then-acquire step is a single critical section so two
// concurrent crossings for the same slot cannot both pass the gate.
type CooldownTable struct {
	cooldown time.Duration

	mu        sync.Mutex
	lastAlert map[models.AlertKey]time.Time
	inflight  map[models.AlertKey]struct{}
}

// NewCooldownTable creates the table with one slot per symbol and window.
func NewCooldownTable(cooldown time.Duration, symbols []string, windows []models.DetectionWindow) *CooldownTable {
	lastAlert := make(map[models.AlertKey]time.Time, len(symbols)*len(windows))
	for _, sym := range symbols {
		for _, w := range windows {
			lastAlert[models.AlertKey{Symbol: sym, Window: w.Duration, Direction: w.Direction}] = time.Time{}
		}
	}
	return &CooldownTable{
		cooldown:  cooldown,
		lastAlert: lastAlert,
		inflight:  make(map[models.AlertKey]struct{}),
	}
}

// TryAcquire reports whether the slot is open: outside its cooldown period
// and with no evaluation already in flight. On success the slot is marked
// in flight and the caller must finish with Commit or Release.
func (t *CooldownTable) TryAcquire(key models.AlertKey, now time.Time) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.lastAlert[key]; !ok {
		// Unknown slot: symbol was never registered.
		return false
	} else if !last.IsZero() && now.Sub(last) < t.cooldown {
		return false
	}
	if _, busy := t.inflight[key]; busy {
		return false
	}
	t.inflight[key] = struct{}{}
	return true
}

// Commit records a delivered alert: the cooldown period starts at now.
func (t *CooldownTable) Commit(key models.AlertKey, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastAlert[key] = now
	delete(t.inflight, key)
}

// Release frees the slot without starting a cooldown. Used when a crossing
// fails the hard filters, so the next qualifying tick can alert immediately.
func (t *CooldownTable) Release(key models.AlertKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, key)
}

// LastAlert returns the recorded alert time for a slot, zero if it never
// alerted.
func (t *CooldownTable) LastAlert(key models.AlertKey) time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastAlert[key]
}
