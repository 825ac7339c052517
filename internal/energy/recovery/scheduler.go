// Package recovery translates elapsed wall-clock time into energy, including
// batch catch-up after the player has been away for many intervals.
package recovery

import (
	"fmt"
	"sort"
	"time"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/events"
	"embercore.gg/internal/energy/pool"
	"embercore.gg/internal/energy/tuning"
)

type Listener interface {
	EnergyRecovered(amount int)
	RecoveryTick()
}

// Hooks adapts plain functions to Listener. Nil fields are skipped.
type Hooks struct {
	OnRecovered func(amount int)
	OnTick      func()
}

func (h Hooks) EnergyRecovered(amount int) {
	if h.OnRecovered != nil {
		h.OnRecovered(amount)
	}
}

func (h Hooks) RecoveryTick() {
	if h.OnTick != nil {
		h.OnTick()
	}
}

type Scheduler struct {
	cfg  *tuning.Store
	pool *pool.Pool
	clk  clock.Clock
	rec  events.Recorder

	active bool
	last   time.Time

	totalRecovered int
	tickCount      int

	listeners map[string]Listener
}

func New(cfg *tuning.Store, p *pool.Pool, clk clock.Clock, rec events.Recorder) (*Scheduler, error) {
	if cfg == nil {
		return nil, fmt.Errorf("recovery: nil tuning store")
	}
	if p == nil {
		return nil, fmt.Errorf("recovery: nil pool")
	}
	if clk == nil {
		return nil, fmt.Errorf("recovery: nil clock")
	}
	return &Scheduler{
		cfg:       cfg,
		pool:      p,
		clk:       clk,
		rec:       rec,
		active:    true,
		last:      clk.Now(),
		listeners: map[string]Listener{},
	}, nil
}

func (s *Scheduler) Subscribe(id string, l Listener) {
	if id == "" || l == nil {
		return
	}
	s.listeners[id] = l
}

func (s *Scheduler) Unsubscribe(id string) {
	delete(s.listeners, id)
}

// SetRecoveryActive pauses or resumes scheduling. The recharge anchor is
// kept either way.
func (s *Scheduler) SetRecoveryActive(active bool) {
	s.active = active
}

func (s *Scheduler) Active() bool { return s.active }

func (s *Scheduler) LastRechargeTime() time.Time { return s.last }

func (s *Scheduler) TotalRecovered() int { return s.totalRecovered }

func (s *Scheduler) TickCount() int { return s.tickCount }

func (s *Scheduler) enabled(t tuning.Tuning) bool {
	return s.active && t.Flags.EnableRecovery && t.RechargeAmount > 0 && t.RechargeIntervalSec > 0
}

func (s *Scheduler) CanRechargeNow() bool {
	now := s.clk.Now()
	t := s.cfg.Current()
	if !s.enabled(t) || s.pool.IsFull() {
		return false
	}
	return now.Sub(s.last) >= t.RechargeInterval()
}

// TimeUntilNextRecharge reports how long until the next tick is due. Zero
// means a tick is already pending.
func (s *Scheduler) TimeUntilNextRecharge() time.Duration {
	now := s.clk.Now()
	t := s.cfg.Current()
	rem := t.RechargeInterval() - now.Sub(s.last)
	if rem < 0 {
		rem = 0
	}
	return rem
}

// TryRecover applies a single due tick. The anchor moves to now, so any
// partial progress beyond the consumed interval is dropped.
func (s *Scheduler) TryRecover() bool {
	now := s.clk.Now()
	t := s.cfg.Current()
	if !s.enabled(t) {
		return false
	}
	deficit := s.pool.Deficit()
	if deficit <= 0 {
		return false
	}
	if now.Sub(s.last) < t.RechargeInterval() {
		return false
	}

	grant := t.RechargeAmount
	if grant > deficit {
		grant = deficit
	}
	s.apply(now, 1, grant, "TICK")
	return true
}

// ProcessPendingRecoveries applies all missed ticks in one shot. Tick count
// is computed analytically, never by looping per interval, and the anchor is
// re-set to now minus the leftover partial interval so progress toward the
// next tick survives the batch.
func (s *Scheduler) ProcessPendingRecoveries() int {
	now := s.clk.Now()
	t := s.cfg.Current()
	if !s.enabled(t) {
		return 0
	}
	deficit := s.pool.Deficit()
	if deficit <= 0 {
		return 0
	}
	interval := t.RechargeInterval()
	elapsed := now.Sub(s.last)
	if elapsed < interval {
		return 0
	}

	pending := int(elapsed / interval)
	needed := (deficit + t.RechargeAmount - 1) / t.RechargeAmount
	if pending > needed {
		pending = needed
	}
	grant := pending * t.RechargeAmount
	if grant > deficit {
		grant = deficit
	}

	anchor := now.Add(-(elapsed % interval))
	s.apply(anchor, pending, grant, "CATCHUP")
	return pending
}

// ForceRecharge grants one tick immediately, ignoring the interval.
func (s *Scheduler) ForceRecharge() bool {
	now := s.clk.Now()
	t := s.cfg.Current()
	if !s.enabled(t) {
		return false
	}
	deficit := s.pool.Deficit()
	if deficit <= 0 {
		return false
	}
	grant := t.RechargeAmount
	if grant > deficit {
		grant = deficit
	}
	s.apply(now, 1, grant, "FORCE")
	return true
}

// FullInstantRecharge clears the entire deficit immediately and returns the
// energy granted.
func (s *Scheduler) FullInstantRecharge() int {
	now := s.clk.Now()
	t := s.cfg.Current()
	if !s.enabled(t) {
		return 0
	}
	deficit := s.pool.Deficit()
	if deficit <= 0 {
		return 0
	}
	ticks := (deficit + t.RechargeAmount - 1) / t.RechargeAmount
	s.apply(now, ticks, deficit, "INSTANT")
	return deficit
}

// Reset re-anchors the scheduler to now and zeroes the counters. This is an
// operator action; normal operation never rewinds the anchor.
func (s *Scheduler) Reset() {
	s.last = s.clk.Now()
	s.totalRecovered = 0
	s.tickCount = 0
}

func (s *Scheduler) apply(anchor time.Time, ticks, grant int, source string) {
	s.pool.Add(grant)
	s.last = anchor
	s.tickCount += ticks
	s.totalRecovered += grant

	s.record(events.Event{"type": "RECOVERY", "source": source, "ticks": ticks, "amount": grant})
	s.emit(func(l Listener) {
		l.EnergyRecovered(grant)
		l.RecoveryTick()
	})
}

func (s *Scheduler) record(ev events.Event) {
	if s.rec != nil {
		s.rec.Record(ev)
	}
}

func (s *Scheduler) emit(fn func(Listener)) {
	if len(s.listeners) == 0 {
		return
	}
	ids := make([]string, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fn(s.listeners[id])
	}
}
