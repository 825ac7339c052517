package pool

import (
	"testing"

	"embercore.gg/internal/energy/events"
	"embercore.gg/internal/energy/tuning"
)

func newTestPool(t *testing.T, tune tuning.Tuning) (*Pool, *events.Buffer) {
	t.Helper()
	buf := &events.Buffer{}
	p, err := New(tuning.NewStore(tune), buf)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, buf
}

func TestNew_NilStore(t *testing.T) {
	if _, err := New(nil, nil); err == nil {
		t.Fatalf("expected error for nil tuning store")
	}
}

func TestConsume(t *testing.T) {
	p, _ := newTestPool(t, tuning.Defaults())

	if !p.Consume(30) {
		t.Fatalf("consume 30 of 100 should succeed")
	}
	if p.Current() != 70 {
		t.Fatalf("expected 70, got %d", p.Current())
	}
	if p.Consume(71) {
		t.Fatalf("consume beyond current should fail")
	}
	if p.Current() != 70 {
		t.Fatalf("failed consume must not mutate, got %d", p.Current())
	}
	if p.Consume(0) || p.Consume(-5) {
		t.Fatalf("non-positive consume should fail")
	}
}

func TestBoundsInvariant(t *testing.T) {
	p, _ := newTestPool(t, tuning.Defaults())

	check := func(step string) {
		t.Helper()
		if p.Current() < 0 || p.Current() > p.Max() {
			t.Fatalf("%s: bounds violated: current=%d max=%d", step, p.Current(), p.Max())
		}
	}

	p.Consume(40)
	check("consume")
	p.Add(500)
	check("add past max")
	p.SetMax(30)
	check("shrink max")
	p.SetMax(200)
	check("grow max")
	p.Deplete()
	check("deplete")
	p.FullRecharge()
	check("full recharge")
	p.SyncFromExternal(-10, 50)
	check("sync below zero")
	p.SyncFromExternal(80, 50)
	check("sync above max")
}

func TestTransitionEvents(t *testing.T) {
	p, _ := newTestPool(t, tuning.Defaults())

	var depleted, full, changed int
	p.Subscribe("test", Hooks{
		OnChanged:  func(int, int) { changed++ },
		OnDepleted: func() { depleted++ },
		OnFull:     func() { full++ },
	})

	p.Consume(100)
	if depleted != 1 {
		t.Fatalf("expected one depleted event, got %d", depleted)
	}
	p.Consume(1)
	p.Deplete()
	if depleted != 1 {
		t.Fatalf("already-empty mutators must not re-fire depleted, got %d", depleted)
	}

	p.Add(99)
	if full != 0 {
		t.Fatalf("full must not fire below max, got %d", full)
	}
	p.Add(1)
	if full != 1 {
		t.Fatalf("expected one full event, got %d", full)
	}
	p.Add(5)
	p.FullRecharge()
	if full != 1 {
		t.Fatalf("already-full mutators must not re-fire full, got %d", full)
	}

	if changed == 0 {
		t.Fatalf("expected change events")
	}
}

func TestSetMaxClampsDown(t *testing.T) {
	p, _ := newTestPool(t, tuning.Defaults())

	p.SetMax(250)
	if p.Current() != 100 {
		t.Fatalf("growing capacity must not create energy, got %d", p.Current())
	}

	var full int
	p.Subscribe("test", Hooks{OnFull: func() { full++ }})
	p.SetMax(80)
	if p.Current() != 80 || p.Max() != 80 {
		t.Fatalf("expected clamp to 80/80, got %d/%d", p.Current(), p.Max())
	}
	if full != 1 {
		t.Fatalf("clamping onto the new max is a full transition, got %d", full)
	}

	p.SetMax(0)
	if p.Max() != 80 {
		t.Fatalf("non-positive max must be a no-op, got %d", p.Max())
	}
}

func TestSyncFromExternal(t *testing.T) {
	p, _ := newTestPool(t, tuning.Defaults())

	var depleted int
	p.Subscribe("test", Hooks{OnDepleted: func() { depleted++ }})

	p.SyncFromExternal(42, 120)
	if p.Current() != 42 || p.Max() != 120 {
		t.Fatalf("expected 42/120, got %d/%d", p.Current(), p.Max())
	}
	p.SyncFromExternal(0, 120)
	if depleted != 1 {
		t.Fatalf("sync crossing to zero must fire depleted, got %d", depleted)
	}
}

func TestDerived(t *testing.T) {
	tune := tuning.Defaults()
	tune.LowEnergyThreshold = 0.2
	p, _ := newTestPool(t, tune)

	p.Consume(80)
	if !p.IsLow() {
		t.Fatalf("20/100 at threshold 0.2 should be low")
	}
	if !p.CanUse() {
		t.Fatalf("20/100 should be usable")
	}
	p.Consume(20)
	if p.CanUse() {
		t.Fatalf("empty pool should not be usable")
	}
	p.FullRecharge()
	if !p.IsFull() {
		t.Fatalf("expected full after full recharge")
	}
	if p.Percentage() != 1.0 {
		t.Fatalf("expected 100%%, got %g", p.Percentage())
	}
}

func TestWarnEvents(t *testing.T) {
	p, buf := newTestPool(t, tuning.Defaults())

	p.Add(0)
	p.Consume(-1)
	p.SetMax(-3)
	if got := len(buf.ByType("WARN")); got != 3 {
		t.Fatalf("expected 3 warn events, got %d", got)
	}
	if p.Current() != 100 || p.Max() != 100 {
		t.Fatalf("warned calls must not mutate, got %d/%d", p.Current(), p.Max())
	}
}

func TestStartEnergy(t *testing.T) {
	tune := tuning.Defaults()
	tune.StartEnergy = 40
	p, _ := newTestPool(t, tune)
	if p.Current() != 40 {
		t.Fatalf("expected start energy 40, got %d", p.Current())
	}

	tune.StartEnergy = 500
	p, _ = newTestPool(t, tune)
	if p.Current() != tune.MaxEnergy {
		t.Fatalf("start energy clamps to max, got %d", p.Current())
	}
}
