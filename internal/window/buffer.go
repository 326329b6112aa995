// Package window provides a bounded, time-ordered value history with
// trailing-window eviction and lookback return computation.
package window

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrNoData is returned when the buffer holds no entries.
	ErrNoData = errors.New("no data")
	// ErrInsufficientHistory is returned when no entry falls inside the
	// requested lookback window.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidBaseline is returned when the earliest in-window value is
	// not positive and a ratio cannot be formed.
	ErrInvalidBaseline = errors.New("invalid baseline")
)

type entry struct {
	ts    time.Time
	value float64
}

// Buffer is a bounded sequence of (timestamp, value) pairs, oldest first.
// Entries older than retention relative to the newest entry are evicted on
// insert. A Buffer is owned by a single symbol's ingestion path and must
// not be written concurrently.
type Buffer struct {
	retention time.Duration
	entries   []entry
}

// New creates a Buffer that retains entries no older than retention
// relative to the latest inserted timestamp.
func New(retention time.Duration) *Buffer {
	return &Buffer{retention: retention}
}

// Len returns the number of retained entries.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Add appends an observation and evicts entries that fell out of the
// retention window. Insertion order is trusted as time order.
func (b *Buffer) Add(ts time.Time, value float64) {
	b.entries = append(b.entries, entry{ts: ts, value: value})

	cutoff := ts.Add(-b.retention)
	idx := 0
	for idx < len(b.entries) && b.entries[idx].ts.Before(cutoff) {
		idx++
	}
	if idx > 0 {
		// Shift in place so the backing array is reused.
		b.entries = b.entries[:copy(b.entries, b.entries[idx:])]
	}
}

// ReturnOver computes the fractional return between the latest value and
// the earliest value observed within the given lookback window. It returns
// the return together with the baseline and latest values for diagnostics.
//
// Entries are time-ordered by construction, so the baseline lookup is a
// binary search.
func (b *Buffer) ReturnOver(lookback time.Duration) (r, oldValue, newValue float64, err error) {
	if len(b.entries) == 0 {
		return 0, 0, 0, ErrNoData
	}

	latest := b.entries[len(b.entries)-1]
	cutoff := latest.ts.Add(-lookback)

	idx := sort.Search(len(b.entries), func(i int) bool {
		return !b.entries[i].ts.Before(cutoff)
	})
	if idx == len(b.entries) {
		return 0, 0, 0, ErrInsufficientHistory
	}

	oldValue = b.entries[idx].value
	newValue = latest.value
	if oldValue <= 0 {
		return 0, oldValue, newValue, ErrInvalidBaseline
	}

	return newValue/oldValue - 1, oldValue, newValue, nil
}
