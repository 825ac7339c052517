// Package economy sells energy back into the pool at a dynamically
// priced rate: unit cost scaled by a bulk discount and a demand surge.
package economy

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/codes"
	"embercore.gg/internal/energy/events"
	"embercore.gg/internal/energy/pool"
	"embercore.gg/internal/energy/tuning"
)

// Wallet is the currency side of a purchase. Charge is only called after
// HasSufficientFunds reported true, but a charge may still fail (the
// backing store races with other spenders).
type Wallet interface {
	HasSufficientFunds(cost int64) bool
	Charge(cost int64) bool
}

// Quote is a priced offer. Quoting is read-only: the same pool state and
// tuning always produce the same quote.
type Quote struct {
	RequestedAmount  int
	ActualAmount     int // clamped to remaining capacity
	UnitCost         int64
	BulkMultiplier   decimal.Decimal
	DemandMultiplier decimal.Decimal
	TotalCost        int64
	Valid            bool
	ErrorCode        string
	Message          string
}

// Result records one purchase attempt.
type Result struct {
	Quote
	TransactionID string
	Success       bool
	ErrorMessage  string
	Timestamp     time.Time
}

type Stats struct {
	TotalPurchasedEnergy int64
	TotalSpentCurrency   int64
	TransactionCount     int
	LastPurchaseTime     time.Time
}

type Listener interface {
	EnergyPurchased(amount int, cost int64)
	TransactionCompleted(Result)
	TransactionFailed(message string)
}

// Hooks adapts plain functions to Listener. Nil fields are skipped.
type Hooks struct {
	OnPurchased func(amount int, cost int64)
	OnCompleted func(Result)
	OnFailed    func(message string)
}

func (h Hooks) EnergyPurchased(amount int, cost int64) {
	if h.OnPurchased != nil {
		h.OnPurchased(amount, cost)
	}
}

func (h Hooks) TransactionCompleted(r Result) {
	if h.OnCompleted != nil {
		h.OnCompleted(r)
	}
}

func (h Hooks) TransactionFailed(message string) {
	if h.OnFailed != nil {
		h.OnFailed(message)
	}
}

// Engine only mutates the pool after the wallet charge succeeds.
type Engine struct {
	cfg    *tuning.Store
	pool   *pool.Pool
	wallet Wallet
	clk    clock.Clock
	rec    events.Recorder

	stats     Stats
	listeners map[string]Listener
}

func New(cfg *tuning.Store, p *pool.Pool, w Wallet, clk clock.Clock, rec events.Recorder) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("economy: nil tuning store")
	}
	if p == nil {
		return nil, fmt.Errorf("economy: nil pool")
	}
	if w == nil {
		return nil, fmt.Errorf("economy: nil wallet")
	}
	if clk == nil {
		return nil, fmt.Errorf("economy: nil clock")
	}
	return &Engine{
		cfg:       cfg,
		pool:      p,
		wallet:    w,
		clk:       clk,
		rec:       rec,
		listeners: map[string]Listener{},
	}, nil
}

func (e *Engine) Subscribe(id string, l Listener) {
	if id == "" || l == nil {
		return
	}
	e.listeners[id] = l
}

func (e *Engine) Unsubscribe(id string) {
	delete(e.listeners, id)
}

// QuotePurchase prices a purchase without executing it.
func (e *Engine) QuotePurchase(amount int) Quote {
	return e.quote(e.cfg.Current(), amount)
}

func (e *Engine) quote(t tuning.Tuning, amount int) Quote {
	q := Quote{
		RequestedAmount:  amount,
		UnitCost:         t.UnitPurchaseCost,
		BulkMultiplier:   one,
		DemandMultiplier: one,
	}
	if !t.Flags.EnablePurchase {
		q.ErrorCode = codes.ErrPurchaseDisabled
		q.Message = "energy purchases are disabled"
		return q
	}
	if amount <= 0 {
		q.ErrorCode = codes.ErrBadAmount
		q.Message = fmt.Sprintf("invalid amount %d", amount)
		return q
	}
	if amount > t.MaxPurchaseAmount {
		q.ErrorCode = codes.ErrPurchaseCap
		q.Message = fmt.Sprintf("purchase capped at %d, requested %d", t.MaxPurchaseAmount, amount)
		return q
	}
	deficit := e.pool.Deficit()
	if deficit == 0 {
		q.ErrorCode = codes.ErrPoolFull
		q.Message = "pool is already full"
		return q
	}

	q.ActualAmount = amount
	if q.ActualAmount > deficit {
		q.ActualAmount = deficit
	}
	q.BulkMultiplier = bulkMultiplier(t, q.ActualAmount)
	q.DemandMultiplier = demandMultiplier(t, e.pool.Current(), e.pool.Max())
	q.TotalCost = totalCost(q.ActualAmount, t.UnitPurchaseCost, q.BulkMultiplier, q.DemandMultiplier)
	q.Valid = true
	return q
}

// Purchase quotes, charges the wallet, then credits the pool. A failure at
// any step leaves both the wallet and the pool untouched.
func (e *Engine) Purchase(amount int) Result {
	now := e.clk.Now()
	t := e.cfg.Current()

	res := Result{Quote: e.quote(t, amount), Timestamp: now}
	if !res.Valid {
		res.ErrorMessage = res.Message
		return e.finish(res)
	}

	if !e.wallet.HasSufficientFunds(res.TotalCost) {
		res.Valid = false
		res.ErrorCode = codes.ErrNoFunds
		res.ErrorMessage = fmt.Sprintf("insufficient funds for cost %d", res.TotalCost)
		return e.finish(res)
	}
	if !e.wallet.Charge(res.TotalCost) {
		res.Valid = false
		res.ErrorCode = codes.ErrChargeFailed
		res.ErrorMessage = fmt.Sprintf("wallet charge of %d failed", res.TotalCost)
		return e.finish(res)
	}

	e.pool.Add(res.ActualAmount)
	res.Success = true
	res.TransactionID = uuid.NewString()

	e.stats.TotalPurchasedEnergy += int64(res.ActualAmount)
	e.stats.TotalSpentCurrency += res.TotalCost
	e.stats.TransactionCount++
	e.stats.LastPurchaseTime = now
	return e.finish(res)
}

func (e *Engine) Stats() Stats { return e.stats }

// ResetStatistics clears purchase counters. Operator action only.
func (e *Engine) ResetStatistics() {
	e.stats = Stats{}
}

func (e *Engine) finish(res Result) Result {
	e.record(events.Event{
		"type":      "PURCHASE",
		"requested": res.RequestedAmount,
		"granted":   res.ActualAmount,
		"cost":      res.TotalCost,
		"success":   res.Success,
		"code":      res.ErrorCode,
		"txn":       res.TransactionID,
	})
	e.emit(func(l Listener) {
		if res.Success {
			l.EnergyPurchased(res.ActualAmount, res.TotalCost)
		}
		l.TransactionCompleted(res)
		if !res.Success {
			l.TransactionFailed(res.ErrorMessage)
		}
	})
	return res
}

func (e *Engine) record(ev events.Event) {
	if e.rec != nil {
		e.rec.Record(ev)
	}
}

func (e *Engine) emit(fn func(Listener)) {
	if len(e.listeners) == 0 {
		return
	}
	ids := make([]string, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(e.listeners[id])
	}
}
