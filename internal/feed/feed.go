// Package feed consumes the Binance futures mark-price websocket stream and
// turns it into ticks. The connection is managed by an explicit state
// machine (connecting → connected → backoff → connecting) that retries
// forever; only context cancellation ends the loop.
package feed

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"pumpsentry/internal/logger"
	"pumpsentry/internal/models"
)

// Backoff policy table: a websocket close (clean or abnormal) retries
// sooner than an arbitrary transport error.
const (
	closeRetryDelay     = 5 * time.Second
	transportRetryDelay = 10 * time.Second
)

type state int

const (
	stateConnecting state = iota
	stateBackoff
)

// Handler receives each parsed tick. It is called from the single read
// loop goroutine, so ticks arrive in stream order.
type Handler func(tick models.Tick)

// markPriceMessage is one combined-stream push:
// {"stream":"!markPrice@arr","data":[{"s":"BTCUSDT","p":"...","E":...}, ...]}
type markPriceMessage struct {
	Stream string           `json:"stream"`
	Data   []markPriceEntry `json:"data"`
}

type markPriceEntry struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
	Symbol    string `json:"s"`
	MarkPrice string `json:"p"`
}

// Stream is the mark-price feed for all futures symbols.
// OnConnect and OnDisconnect, when set, are invoked on state transitions
// so the caller can surface feed health (they must not block for long).
type Stream struct {
	url     string
	handler Handler

	OnConnect    func()
	OnDisconnect func(err error)
}

// NewStream creates a feed reading from url and delivering ticks to handler.
func NewStream(url string, handler Handler) *Stream {
	return &Stream{url: url, handler: handler}
}

// Run drives the connection state machine until ctx is cancelled. A
// disconnect never propagates to the caller; it only moves the machine
// into backoff.
func (s *Stream) Run(ctx context.Context) error {
	st := stateConnecting
	var delay time.Duration

	for {
		switch st {
		case stateConnecting:
			err := s.runConnection(ctx)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			delay = retryDelay(err)
			logger.Warn("Feed disconnected: %v, reconnecting in %v", err, delay)
			if s.OnDisconnect != nil {
				s.OnDisconnect(err)
			}
			st = stateBackoff

		case stateBackoff:
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
				st = stateConnecting
			}
		}
	}
}

// retryDelay classifies a connection error per the backoff policy table.
func retryDelay(err error) time.Duration {
	if websocket.CloseStatus(err) != -1 {
		return closeRetryDelay
	}
	return transportRetryDelay
}

// runConnection holds one websocket session: dial, then read until the
// connection drops or ctx is cancelled.
func (s *Stream) runConnection(ctx context.Context) error {
	conn, _, err := websocket.Dial(ctx, s.url, nil)
	if err != nil {
		return err
	}
	defer conn.CloseNow() //nolint:errcheck

	// The mark-price array for all symbols is large.
	conn.SetReadLimit(8 << 20)

	logger.Info("Connected to mark price stream")
	if s.OnConnect != nil {
		s.OnConnect()
	}

	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return err
		}
		s.handleMessage(raw)
	}
}

// handleMessage parses one push and hands each well-formed entry to the
// handler. Malformed entries are dropped without affecting the rest of the
// batch.
func (s *Stream) handleMessage(raw json.RawMessage) {
	var msg markPriceMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logger.Debug("Dropping unparsable feed message: %v", err)
		return
	}

	now := time.Now()
	for _, entry := range msg.Data {
		if entry.Symbol == "" {
			continue
		}
		price, err := strconv.ParseFloat(entry.MarkPrice, 64)
		if err != nil || price <= 0 {
			continue
		}
		s.handler(models.Tick{
			Symbol:    entry.Symbol,
			Price:     price,
			Timestamp: now,
		})
	}
}
