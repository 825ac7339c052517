// Package pool owns the bounded energy resource. Every mutator clamps the
// pool into [0,max]; nothing in here panics on gameplay input.
package pool

import (
	"fmt"
	"sort"

	"embercore.gg/internal/energy/events"
	"embercore.gg/internal/energy/tuning"
)

// Listener receives pool callbacks. Depleted/full fire exactly on the
// transition, never on repeats.
type Listener interface {
	EnergyChanged(current, max int)
	EnergyDepleted()
	EnergyFull()
}

// Hooks adapts plain functions to Listener. Nil fields are skipped.
type Hooks struct {
	OnChanged  func(current, max int)
	OnDepleted func()
	OnFull     func()
}

func (h Hooks) EnergyChanged(current, max int) {
	if h.OnChanged != nil {
		h.OnChanged(current, max)
	}
}

func (h Hooks) EnergyDepleted() {
	if h.OnDepleted != nil {
		h.OnDepleted()
	}
}

func (h Hooks) EnergyFull() {
	if h.OnFull != nil {
		h.OnFull()
	}
}

type Pool struct {
	cfg *tuning.Store
	rec events.Recorder

	current int
	max     int

	listeners map[string]Listener
}

func New(cfg *tuning.Store, rec events.Recorder) (*Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("pool: nil tuning store")
	}
	t := cfg.Current()
	cur := t.StartEnergy
	if cur > t.MaxEnergy {
		cur = t.MaxEnergy
	}
	return &Pool{
		cfg:       cfg,
		rec:       rec,
		current:   cur,
		max:       t.MaxEnergy,
		listeners: map[string]Listener{},
	}, nil
}

func (p *Pool) Subscribe(id string, l Listener) {
	if id == "" || l == nil {
		return
	}
	p.listeners[id] = l
}

func (p *Pool) Unsubscribe(id string) {
	delete(p.listeners, id)
}

func (p *Pool) Current() int { return p.current }
func (p *Pool) Max() int     { return p.max }

func (p *Pool) Deficit() int { return p.max - p.current }

func (p *Pool) Percentage() float64 {
	return float64(p.current) / float64(p.max)
}

func (p *Pool) IsLow() bool {
	return p.Percentage() <= p.cfg.Current().LowEnergyThreshold
}

func (p *Pool) IsFull() bool { return p.current == p.max }

func (p *Pool) CanUse() bool { return p.current > 0 }

// Consume removes amount from the pool. It fails without mutation when the
// pool cannot cover the amount.
func (p *Pool) Consume(amount int) bool {
	if amount <= 0 {
		p.warn("consume", amount)
		return false
	}
	if amount > p.current {
		return false
	}
	p.applyState(p.current-amount, p.max, "CONSUME")
	return true
}

func (p *Pool) Add(amount int) {
	if amount <= 0 {
		p.warn("add", amount)
		return
	}
	p.applyState(p.current+amount, p.max, "ADD")
}

// SetMax updates capacity. Current energy is preserved, never topped up;
// it only moves when the new capacity is below it.
func (p *Pool) SetMax(newMax int) {
	if newMax <= 0 {
		p.warn("set_max", newMax)
		return
	}
	p.applyState(p.current, newMax, "SET_MAX")
}

func (p *Pool) FullRecharge() {
	p.applyState(p.max, p.max, "FULL_RECHARGE")
}

func (p *Pool) Deplete() {
	p.applyState(0, p.max, "DEPLETE")
}

// SyncFromExternal reconciles the pool from a persisted snapshot.
func (p *Pool) SyncFromExternal(current, max int) {
	if max <= 0 {
		p.warn("sync", max)
		return
	}
	p.applyState(current, max, "SYNC")
}

func (p *Pool) applyState(cur, max int, kind string) {
	if cur < 0 {
		cur = 0
	}
	if cur > max {
		cur = max
	}
	if cur == p.current && max == p.max {
		return
	}

	wasZero := p.current == 0
	wasFull := p.current == p.max
	p.current, p.max = cur, max

	p.record(events.Event{"type": "ENERGY_CHANGED", "kind": kind, "current": cur, "max": max})
	p.emit(func(l Listener) { l.EnergyChanged(cur, max) })

	if cur == 0 && !wasZero {
		p.record(events.Event{"type": "ENERGY_DEPLETED", "kind": kind})
		p.emit(func(l Listener) { l.EnergyDepleted() })
	}
	if cur == max && !wasFull {
		p.record(events.Event{"type": "ENERGY_FULL", "kind": kind, "max": max})
		p.emit(func(l Listener) { l.EnergyFull() })
	}
}

func (p *Pool) warn(op string, amount int) {
	p.record(events.Event{"type": "WARN", "op": op, "amount": amount})
}

func (p *Pool) record(ev events.Event) {
	if p.rec != nil {
		p.rec.Record(ev)
	}
}

func (p *Pool) emit(fn func(Listener)) {
	if len(p.listeners) == 0 {
		return
	}
	ids := make([]string, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(p.listeners[id])
	}
}
