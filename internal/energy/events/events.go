// Package events carries the generic audit payloads the energy subsystem
// emits. Recorders are fire-and-forget; a slow or broken sink must never
// fail a gameplay operation.
package events

type Event map[string]any

type Recorder interface {
	Record(Event)
}

// Multi fans an event out to several recorders.
type Multi []Recorder

func (m Multi) Record(ev Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ev)
		}
	}
}

// Buffer keeps recorded events in memory, oldest first.
type Buffer struct {
	Events []Event
}

func (b *Buffer) Record(ev Event) {
	b.Events = append(b.Events, ev)
}

// ByType returns the recorded events whose "type" field matches.
func (b *Buffer) ByType(typ string) []Event {
	var out []Event
	for _, ev := range b.Events {
		if ev["type"] == typ {
			out = append(out, ev)
		}
	}
	return out
}
