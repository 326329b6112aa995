package engine

import (
	"testing"
	"time"

	"pumpsentry/internal/models"
)

func testKey() models.AlertKey {
	return models.AlertKey{Symbol: "BTCUSDT", Window: 300 * time.Second, Direction: models.DirectionPump}
}

func newTestTable() *CooldownTable {
	windows := []models.DetectionWindow{
		{Duration: 300 * time.Second, Threshold: 0.05, Direction: models.DirectionPump},
	}
	return NewCooldownTable(15*time.Minute, []string{"BTCUSDT"}, windows)
}

func TestCooldownTable_AcquireCommitSuppress(t *testing.T) {
	table := newTestTable()
	key := testKey()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !table.TryAcquire(key, now) {
		t.Fatal("expected fresh slot to acquire")
	}
	table.Commit(key, now)

	if table.TryAcquire(key, now.Add(14*time.Minute)) {
		t.Error("expected acquisition to fail inside the cooldown period")
	}
	if !table.TryAcquire(key, now.Add(15*time.Minute)) {
		t.Error("expected acquisition to succeed once the cooldown elapsed")
	}
}

func TestCooldownTable_ReleaseDoesNotStartCooldown(t *testing.T) {
	table := newTestTable()
	key := testKey()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !table.TryAcquire(key, now) {
		t.Fatal("expected fresh slot to acquire")
	}
	table.Release(key)

	if !table.LastAlert(key).IsZero() {
		t.Error("release must not record an alert time")
	}
	if !table.TryAcquire(key, now.Add(time.Second)) {
		t.Error("expected the slot to reopen immediately after release")
	}
}

func TestCooldownTable_InFlightBlocksSecondAcquire(t *testing.T) {
	table := newTestTable()
	key := testKey()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	if !table.TryAcquire(key, now) {
		t.Fatal("expected fresh slot to acquire")
	}
	if table.TryAcquire(key, now) {
		t.Error("expected second acquisition to fail while the slot is in flight")
	}
}

func TestCooldownTable_UnknownSlot(t *testing.T) {
	table := newTestTable()
	key := models.AlertKey{Symbol: "DOGEUSDT", Window: 300 * time.Second, Direction: models.DirectionPump}

	if table.TryAcquire(key, time.Now()) {
		t.Error("expected acquisition to fail for an unregistered symbol")
	}
}

func TestCooldownTable_SlotsAreIndependent(t *testing.T) {
	windows := []models.DetectionWindow{
		{Duration: 300 * time.Second, Threshold: 0.05, Direction: models.DirectionPump},
		{Duration: 300 * time.Second, Threshold: -0.05, Direction: models.DirectionDump},
	}
	table := NewCooldownTable(15*time.Minute, []string{"BTCUSDT"}, windows)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	pump := models.AlertKey{Symbol: "BTCUSDT", Window: 300 * time.Second, Direction: models.DirectionPump}
	dump := models.AlertKey{Symbol: "BTCUSDT", Window: 300 * time.Second, Direction: models.DirectionDump}

	if !table.TryAcquire(pump, now) {
		t.Fatal("expected pump slot to acquire")
	}
	table.Commit(pump, now)

	if !table.TryAcquire(dump, now) {
		t.Error("pump cooldown must not block the dump slot")
	}
}
