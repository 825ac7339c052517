// Package validation gates proposed energy consumption behind a
// priority-ordered rule chain with short-circuit semantics.
package validation

import (
	"fmt"
	"sort"
	"time"

	"embercore.gg/internal/energy/clock"
	"embercore.gg/internal/energy/codes"
	"embercore.gg/internal/energy/events"
	"embercore.gg/internal/energy/pool"
	"embercore.gg/internal/energy/tuning"
)

// historyLimit bounds the rolling result buffer.
const historyLimit = 100

// Context describes the consumption attempt being validated.
type Context struct {
	Action  string
	Source  string
	Payload map[string]any
}

// Result is immutable once produced.
type Result struct {
	RequestedAmount int
	ValidatedAmount int
	Valid           bool
	FailedRule      string
	ErrorCode       string
	Message         string
	Timestamp       time.Time
}

type Request struct {
	Amount  int
	Context Context
}

// BatchResult partitions per-request outcomes. SumCoverable reports whether
// current energy covers every valid request at once; it is informational
// and does not alter the individual results.
type BatchResult struct {
	Valid            []Result
	Invalid          []Result
	TotalValidAmount int
	SumCoverable     bool
}

type Stats struct {
	Total     int
	Succeeded int
	Failed    int
}

func (s Stats) SuccessRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Succeeded) / float64(s.Total)
}

type Listener interface {
	ValidationCompleted(Result)
	ValidationFailed(message string)
}

// Hooks adapts plain functions to Listener. Nil fields are skipped.
type Hooks struct {
	OnCompleted func(Result)
	OnFailed    func(message string)
}

func (h Hooks) ValidationCompleted(r Result) {
	if h.OnCompleted != nil {
		h.OnCompleted(r)
	}
}

func (h Hooks) ValidationFailed(message string) {
	if h.OnFailed != nil {
		h.OnFailed(message)
	}
}

// Pipeline reads the pool, never mutates it.
type Pipeline struct {
	cfg  *tuning.Store
	pool *pool.Pool
	clk  clock.Clock
	rec  events.Recorder

	rules     []Rule
	listeners map[string]Listener

	stats   Stats
	history []Result
}

func New(cfg *tuning.Store, p *pool.Pool, clk clock.Clock, rec events.Recorder) (*Pipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("validation: nil tuning store")
	}
	if p == nil {
		return nil, fmt.Errorf("validation: nil pool")
	}
	if clk == nil {
		return nil, fmt.Errorf("validation: nil clock")
	}
	return &Pipeline{
		cfg:       cfg,
		pool:      p,
		clk:       clk,
		rec:       rec,
		rules:     defaultRules(),
		listeners: map[string]Listener{},
	}, nil
}

func (p *Pipeline) Subscribe(id string, l Listener) {
	if id == "" || l == nil {
		return
	}
	p.listeners[id] = l
}

func (p *Pipeline) Unsubscribe(id string) {
	delete(p.listeners, id)
}

// AddRule registers a rule, replacing any rule with the same name.
func (p *Pipeline) AddRule(r Rule) error {
	if r.Name == "" {
		return fmt.Errorf("validation: rule name required")
	}
	if r.Kind == "" {
		return fmt.Errorf("validation: rule kind required")
	}
	for i := range p.rules {
		if p.rules[i].Name == r.Name {
			p.rules[i] = r
			return nil
		}
	}
	p.rules = append(p.rules, r)
	return nil
}

func (p *Pipeline) RemoveRule(name string) bool {
	for i := range p.rules {
		if p.rules[i].Name == name {
			p.rules = append(p.rules[:i], p.rules[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Pipeline) SetRuleEnabled(name string, enabled bool) bool {
	for i := range p.rules {
		if p.rules[i].Name == name {
			p.rules[i].Enabled = enabled
			return true
		}
	}
	return false
}

func (p *Pipeline) SetRulePriority(name string, priority int) bool {
	for i := range p.rules {
		if p.rules[i].Name == name {
			p.rules[i].Priority = priority
			return true
		}
	}
	return false
}

// Rules returns the rule list sorted in evaluation order.
func (p *Pipeline) Rules() []Rule {
	out := append([]Rule(nil), p.rules...)
	sortRules(out)
	return out
}

func sortRules(rs []Rule) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		return rs[i].Name < rs[j].Name
	})
}

// Validate runs the enabled rules in priority order and stops at the first
// failure.
func (p *Pipeline) Validate(amount int, ctx Context) Result {
	now := p.clk.Now()
	t := p.cfg.Current()
	res := Result{RequestedAmount: amount, Timestamp: now}

	if !t.Flags.EnableValidation {
		res.Valid = true
		res.ValidatedAmount = amount
		return p.finish(res, ctx)
	}
	if amount <= 0 {
		res.ErrorCode = codes.ErrBadAmount
		res.Message = fmt.Sprintf("invalid amount %d", amount)
		return p.finish(res, ctx)
	}

	for _, r := range p.Rules() {
		if !r.Enabled {
			continue
		}
		v := p.safeEval(r, t, amount, ctx)
		if !v.OK {
			res.FailedRule = r.Name
			res.ErrorCode = v.Code
			res.Message = v.Message
			return p.finish(res, ctx)
		}
	}

	res.Valid = true
	res.ValidatedAmount = amount
	return p.finish(res, ctx)
}

// safeEval converts a panicking rule into a failed verdict so one broken
// rule cannot crash the caller.
func (p *Pipeline) safeEval(r Rule, t tuning.Tuning, amount int, ctx Context) (v Verdict) {
	defer func() {
		if rec := recover(); rec != nil {
			v = fail(codes.ErrValidationException, fmt.Sprintf("rule %s: %v", r.Name, rec))
		}
	}()
	return p.evalRule(r, t, amount, ctx)
}

// ValidateBatch evaluates each request independently, then reports whether
// the sum of the valid ones is coverable right now.
func (p *Pipeline) ValidateBatch(reqs []Request) BatchResult {
	var out BatchResult
	for _, req := range reqs {
		res := p.Validate(req.Amount, req.Context)
		if res.Valid {
			out.Valid = append(out.Valid, res)
			out.TotalValidAmount += res.ValidatedAmount
		} else {
			out.Invalid = append(out.Invalid, res)
		}
	}
	out.SumCoverable = p.pool.Current() >= out.TotalValidAmount
	return out
}

func (p *Pipeline) Stats() Stats { return p.stats }

// History returns the bounded recent results, oldest first.
func (p *Pipeline) History() []Result {
	return append([]Result(nil), p.history...)
}

// ResetStatistics clears counters and history. Operator action only.
func (p *Pipeline) ResetStatistics() {
	p.stats = Stats{}
	p.history = nil
}

func (p *Pipeline) finish(res Result, ctx Context) Result {
	p.stats.Total++
	if res.Valid {
		p.stats.Succeeded++
	} else {
		p.stats.Failed++
	}
	p.history = append(p.history, res)
	if len(p.history) > historyLimit {
		p.history = p.history[len(p.history)-historyLimit:]
	}

	p.record(events.Event{
		"type":      "VALIDATION",
		"action":    ctx.Action,
		"source":    ctx.Source,
		"requested": res.RequestedAmount,
		"valid":     res.Valid,
		"rule":      res.FailedRule,
		"code":      res.ErrorCode,
	})
	p.emit(func(l Listener) {
		l.ValidationCompleted(res)
		if !res.Valid {
			l.ValidationFailed(res.Message)
		}
	})
	return res
}

func (p *Pipeline) record(ev events.Event) {
	if p.rec != nil {
		p.rec.Record(ev)
	}
}

func (p *Pipeline) emit(fn func(Listener)) {
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
