package validation

import (
	"fmt"

	"embercore.gg/internal/energy/codes"
	"embercore.gg/internal/energy/tuning"
)

// Kind tags a rule variant. Evaluation dispatches on the kind, so the rule
// set stays an inspectable list instead of a bag of closures.
type Kind string

const (
	KindAvailability Kind = "AVAILABILITY"
	KindActionCap    Kind = "ACTION_CAP"
	KindMinReserve   Kind = "MIN_RESERVE"
	KindDailyLimit   Kind = "DAILY_LIMIT"
	KindCustom       Kind = "CUSTOM"
)

// PoolView is the read-only slice of the pool rules may look at.
type PoolView interface {
	Current() int
	Max() int
}

type Verdict struct {
	OK      bool
	Code    string
	Message string
}

func pass() Verdict { return Verdict{OK: true} }

func fail(code, message string) Verdict {
	return Verdict{Code: code, Message: message}
}

// Predicate backs KindCustom rules. It must be side-effect-free.
type Predicate func(amount int, ctx Context, view PoolView) Verdict

type Rule struct {
	Name     string
	Kind     Kind
	Priority int // ascending = higher precedence
	Enabled  bool

	// Predicate is consulted for KindCustom only.
	Predicate Predicate
}

func defaultRules() []Rule {
	return []Rule{
		{Name: "availability", Kind: KindAvailability, Priority: 1, Enabled: true},
		{Name: "action_cap", Kind: KindActionCap, Priority: 2, Enabled: true},
		{Name: "min_reserve", Kind: KindMinReserve, Priority: 3, Enabled: false},
		{Name: "daily_limit", Kind: KindDailyLimit, Priority: 4, Enabled: false},
	}
}

func (p *Pipeline) evalRule(r Rule, t tuning.Tuning, amount int, ctx Context) Verdict {
	switch r.Kind {
	case KindAvailability:
		if p.pool.Current() < amount {
			return fail(codes.ErrNoEnergy,
				fmt.Sprintf("insufficient energy: have %d, need %d", p.pool.Current(), amount))
		}
		return pass()

	case KindActionCap:
		cap, ok := t.ActionCaps[ctx.Action]
		if ok && amount > cap {
			return fail(codes.ErrActionCap,
				fmt.Sprintf("action %s capped at %d, requested %d", ctx.Action, cap, amount))
		}
		return pass()

	case KindMinReserve:
		// Keep min_reserve_pct of capacity untouched. Integer cross-multiply
		// avoids float drift at band edges.
		if (p.pool.Current()-amount)*100 < t.MinReservePct*p.pool.Max() {
			return fail(codes.ErrMinReserve,
				fmt.Sprintf("would drop below %d%% reserve", t.MinReservePct))
		}
		return pass()

	case KindDailyLimit:
		// Always passes until per-day tracking lands.
		return pass()

	case KindCustom:
		if r.Predicate == nil {
			return pass()
		}
		return r.Predicate(amount, ctx, p.pool)

	default:
		return pass()
	}
}
