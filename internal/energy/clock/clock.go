// Package clock abstracts wall-clock reads so every energy calculation
// inside one logical operation works from a single Now() sample.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Manual is a hand-advanced clock for tests and scripted simulation runs.
type Manual struct {
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time { return m.now }

func (m *Manual) Advance(d time.Duration) { m.now = m.now.Add(d) }

func (m *Manual) Set(t time.Time) { m.now = t }
