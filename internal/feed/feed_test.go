package feed

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/coder/websocket"

	"pumpsentry/internal/models"
)

func collectTicks() (*Stream, *[]models.Tick) {
	var ticks []models.Tick
	s := NewStream("wss://example.invalid/stream", func(tick models.Tick) {
		ticks = append(ticks, tick)
	})
	return s, &ticks
}

func TestHandleMessage(t *testing.T) {
	s, ticks := collectTicks()

	raw := json.RawMessage(`{
		"stream": "!markPrice@arr",
		"data": [
			{"e": "markPriceUpdate", "E": 1717243200000, "s": "BTCUSDT", "p": "69123.40"},
			{"e": "markPriceUpdate", "E": 1717243200000, "s": "ETHUSDT", "p": "3800.12"}
		]
	}`)
	s.handleMessage(raw)

	if len(*ticks) != 2 {
		t.Fatalf("expected 2 ticks, got %d", len(*ticks))
	}
	first := (*ticks)[0]
	if first.Symbol != "BTCUSDT" || first.Price != 69123.40 {
		t.Errorf("unexpected first tick: %+v", first)
	}
	if first.Timestamp.IsZero() {
		t.Error("expected tick timestamp to be set")
	}
	if (*ticks)[1].Symbol != "ETHUSDT" {
		t.Errorf("unexpected second tick: %+v", (*ticks)[1])
	}
}

func TestHandleMessage_DropsMalformedEntries(t *testing.T) {
	s, ticks := collectTicks()

	raw := json.RawMessage(`{
		"stream": "!markPrice@arr",
		"data": [
			{"e": "markPriceUpdate", "s": "", "p": "100.0"},
			{"e": "markPriceUpdate", "s": "BADUSDT", "p": "not-a-number"},
			{"e": "markPriceUpdate", "s": "ZEROUSDT", "p": "0"},
			{"e": "markPriceUpdate", "s": "NEGUSDT", "p": "-5"},
			{"e": "markPriceUpdate", "s": "OKUSDT", "p": "1.25"}
		]
	}`)
	s.handleMessage(raw)

	if len(*ticks) != 1 {
		t.Fatalf("expected only the well-formed entry, got %d ticks", len(*ticks))
	}
	if (*ticks)[0].Symbol != "OKUSDT" || (*ticks)[0].Price != 1.25 {
		t.Errorf("unexpected tick: %+v", (*ticks)[0])
	}
}

func TestHandleMessage_UnparsableMessage(t *testing.T) {
	s, ticks := collectTicks()

	s.handleMessage(json.RawMessage(`not json`))
	s.handleMessage(json.RawMessage(`{"stream": "!markPrice@arr", "data": "wrong-shape"}`))

	if len(*ticks) != 0 {
		t.Fatalf("expected no ticks from unparsable messages, got %d", len(*ticks))
	}
}

func TestRetryDelay(t *testing.T) {
	closeErr := websocket.CloseError{Code: websocket.StatusNormalClosure}
	if got := retryDelay(closeErr); got != closeRetryDelay {
		t.Errorf("expected close delay %v, got %v", closeRetryDelay, got)
	}

	abnormal := websocket.CloseError{Code: websocket.StatusAbnormalClosure}
	if got := retryDelay(abnormal); got != closeRetryDelay {
		t.Errorf("expected close delay %v for abnormal closure, got %v", closeRetryDelay, got)
	}

	if got := retryDelay(errors.New("connection reset by peer")); got != transportRetryDelay {
		t.Errorf("expected transport delay %v, got %v", transportRetryDelay, got)
	}
}
