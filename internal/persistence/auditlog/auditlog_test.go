package auditlog

import (
	"testing"
	"time"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/events"
)

func TestRoundtripAndDailyRotation(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC))

	l := NewLogger(dir, clk)
	l.Record(events.Event{"type": "ENERGY_CHANGED", "current": 90})
	clk.Advance(20 * time.Minute) // crosses midnight into 2026-03-02
	l.Record(events.Event{"type": "PURCHASE", "cost": 27})
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	evs, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(evs))
	}
	if evs[0]["type"] != "ENERGY_CHANGED" || evs[1]["type"] != "PURCHASE" {
		t.Fatalf("order: %v", evs)
	}
	for _, ev := range evs {
		if _, ok := ev["ts"].(string); !ok {
			t.Fatalf("entry missing timestamp: %v", ev)
		}
	}
	// JSON numbers decode as float64.
	if evs[1]["cost"].(float64) != 27 {
		t.Fatalf("cost: %v", evs[1]["cost"])
	}
}
