package economy

import (
	"testing"
	"time"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/codes"
	"embercore.gg/internal/energy/pool"
	"embercore.gg/internal/energy/tuning"
)

// fakeWallet backs tests with a plain balance. failCharge simulates a
// backing store that reports funds but rejects the charge.
type fakeWallet struct {
	balance    int64
	failCharge bool
	charges    int
}

func (w *fakeWallet) HasSufficientFunds(cost int64) bool { return w.balance >= cost }

func (w *fakeWallet) Charge(cost int64) bool {
	if w.failCharge || w.balance < cost {
		return false
	}
	w.balance -= cost
	w.charges++
	return true
}

func newTestEngine(t *testing.T, tune tuning.Tuning, w Wallet) (*Engine, *pool.Pool) {
	t.Helper()
	store := tuning.NewStore(tune)
	p, err := pool.New(store, nil)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	clk := clock.NewManual(time.Unix(1_700_000_000, 0).UTC())
	e, err := New(store, p, w, clk, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e, p
}

func TestQuoteSurgePricing(t *testing.T) {
	tune := tuning.Defaults()
	tune.UnitPurchaseCost = 2
	e, p := newTestEngine(t, tune, &fakeWallet{balance: 1000})
	p.Consume(10) // 90/100: remaining capacity 10% triggers the top surge

	q := e.QuotePurchase(10)
	if !q.Valid {
		t.Fatalf("expected valid quote, got %+v", q)
	}
	if q.ActualAmount != 10 {
		t.Fatalf("expected full grant, got %d", q.ActualAmount)
	}
	if q.BulkMultiplier.String() != "0.9" || q.DemandMultiplier.String() != "1.5" {
		t.Fatalf("multipliers: bulk=%s demand=%s", q.BulkMultiplier, q.DemandMultiplier)
	}
	// 10 * 2 * 0.9 * 1.5 = 27
	if q.TotalCost != 27 {
		t.Fatalf("expected cost 27, got %d", q.TotalCost)
	}
}

func TestQuoteIdempotent(t *testing.T) {
	e, p := newTestEngine(t, tuning.Defaults(), &fakeWallet{balance: 1000})
	p.Consume(40)

	a := e.QuotePurchase(15)
	b := e.QuotePurchase(15)
	if a.TotalCost != b.TotalCost || a.ActualAmount != b.ActualAmount {
		t.Fatalf("quoting must not change state: %+v vs %+v", a, b)
	}
	if p.Current() != 60 {
		t.Fatalf("quote must not touch the pool, got %d", p.Current())
	}
}

func TestBulkTierOrder(t *testing.T) {
	e, p := newTestEngine(t, tuning.Defaults(), &fakeWallet{balance: 1000})
	p.Consume(60) // 40/100, remaining 60%: no surge

	// Tiers are first-match in listed order, so 50 prices at the first
	// tier (0.9), not the nominal 50-unit tier.
	q := e.QuotePurchase(50)
	if q.BulkMultiplier.String() != "0.9" {
		t.Fatalf("expected first listed tier to win, got %s", q.BulkMultiplier)
	}
	if q.TotalCost != 90 { // 50 * 2 * 0.9
		t.Fatalf("expected cost 90, got %d", q.TotalCost)
	}
}

func TestPurchaseClampsToCapacity(t *testing.T) {
	w := &fakeWallet{balance: 1000}
	e, p := newTestEngine(t, tuning.Defaults(), w)
	p.Consume(5) // deficit 5

	res := e.Purchase(8)
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.RequestedAmount != 8 || res.ActualAmount != 5 {
		t.Fatalf("expected grant clamped to 5, got %d", res.ActualAmount)
	}
	if p.Current() != 100 {
		t.Fatalf("expected full pool, got %d", p.Current())
	}
	if res.TransactionID == "" {
		t.Fatalf("successful purchase must carry a transaction id")
	}
}

func TestPurchaseRejections(t *testing.T) {
	tune := tuning.Defaults()
	tune.MaxPurchaseAmount = 10
	e, p := newTestEngine(t, tune, &fakeWallet{balance: 1000})

	if res := e.Purchase(5); res.Success || res.ErrorCode != codes.ErrPoolFull {
		t.Fatalf("full pool: %+v", res)
	}
	p.Consume(50)
	if res := e.Purchase(0); res.Success || res.ErrorCode != codes.ErrBadAmount {
		t.Fatalf("zero amount: %+v", res)
	}
	if res := e.Purchase(11); res.Success || res.ErrorCode != codes.ErrPurchaseCap {
		t.Fatalf("over cap: %+v", res)
	}
}

func TestPurchaseDisabledFlag(t *testing.T) {
	tune := tuning.Defaults()
	tune.Flags.EnablePurchase = false
	e, p := newTestEngine(t, tune, &fakeWallet{balance: 1000})
	p.Consume(50)

	res := e.Purchase(5)
	if res.Success || res.ErrorCode != codes.ErrPurchaseDisabled {
		t.Fatalf("expected disabled rejection, got %+v", res)
	}
}

func TestWalletFailuresLeaveStateUntouched(t *testing.T) {
	w := &fakeWallet{balance: 1}
	e, p := newTestEngine(t, tuning.Defaults(), w)
	p.Consume(50)

	res := e.Purchase(20)
	if res.Success || res.ErrorCode != codes.ErrNoFunds {
		t.Fatalf("expected no-funds rejection, got %+v", res)
	}
	if p.Current() != 50 || w.balance != 1 {
		t.Fatalf("rejected purchase must not mutate: pool=%d balance=%d", p.Current(), w.balance)
	}

	w.balance = 1000
	w.failCharge = true
	res = e.Purchase(20)
	if res.Success || res.ErrorCode != codes.ErrChargeFailed {
		t.Fatalf("expected charge failure, got %+v", res)
	}
	if p.Current() != 50 || w.balance != 1000 {
		t.Fatalf("failed charge must not mutate: pool=%d balance=%d", p.Current(), w.balance)
	}
	if e.Stats().TransactionCount != 0 {
		t.Fatalf("failed purchases must not count, got %+v", e.Stats())
	}
}

func TestMinimumCostFloor(t *testing.T) {
	tune := tuning.Defaults()
	tune.UnitPurchaseCost = 1
	tune.BulkTiers = []tuning.BulkTier{{MinAmount: 1, Multiplier: "0.2"}}
	tune.DemandTiers = nil
	e, p := newTestEngine(t, tune, &fakeWallet{balance: 1000})
	p.Consume(50)

	// 1 * 1 * 0.2 rounds to 0; a non-zero grant never costs less than 1.
	q := e.QuotePurchase(1)
	if q.TotalCost != 1 {
		t.Fatalf("expected floor cost 1, got %d", q.TotalCost)
	}
}

func TestStatsAndListeners(t *testing.T) {
	w := &fakeWallet{balance: 1000}
	e, p := newTestEngine(t, tuning.Defaults(), w)
	p.Consume(60) // 40/100

	var purchased int
	var spent int64
	var failures []string
	e.Subscribe("test", Hooks{
		OnPurchased: func(amount int, cost int64) {
			purchased += amount
			spent += cost
		},
		OnFailed: func(msg string) { failures = append(failures, msg) },
	})

	first := e.Purchase(10) // 10*2*0.9 = 18
	second := e.Purchase(5) // 5*2 = 10
	if !first.Success || !second.Success {
		t.Fatalf("purchases failed: %+v %+v", first, second)
	}
	if first.TransactionID == second.TransactionID {
		t.Fatalf("transaction ids must be unique")
	}

	st := e.Stats()
	if st.TotalPurchasedEnergy != 15 || st.TransactionCount != 2 {
		t.Fatalf("stats: %+v", st)
	}
	if st.TotalSpentCurrency != 28 || spent != 28 {
		t.Fatalf("expected 28 spent, stats=%d listener=%d", st.TotalSpentCurrency, spent)
	}
	if purchased != 15 {
		t.Fatalf("listener purchased=%d", purchased)
	}

	e.Purchase(0)
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure callback, got %d", len(failures))
	}

	e.ResetStatistics()
	if e.Stats().TransactionCount != 0 {
		t.Fatalf("reset must clear stats")
	}

	e.Unsubscribe("test")
	e.Purchase(5)
	if purchased != 15 {
		t.Fatalf("unsubscribed listener must not fire")
	}
}
