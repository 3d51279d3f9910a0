// Package input turns raw hardware edges into clean logical events. Interrupt
// handlers call Edge.Trigger and nothing else; all interpretation, including
// debouncing, happens in Poll on the main loop.
package input

import (
	"sync/atomic"
	"time"
)

// Event is a debounced logical input event.
type Event int

const (
	HomePressed Event = iota + 1
	TimeInPressed
	TimeOutPressed
	EnrollPressed
)

func (e Event) String() string {
	switch e {
	case HomePressed:
		return "home"
	case TimeInPressed:
		return "time-in"
	case TimeOutPressed:
		return "time-out"
	case EnrollPressed:
		return "enroll"
	default:
		return "unknown"
	}
}

// DefaultDebounce rejects contact bounce on mechanical buttons.
const DefaultDebounce = 200 * time.Millisecond

// Edge records raw transitions for one physical button. Trigger is the only
// method safe to call from an interrupt handler: it stores a timestamp and
// returns.
type Edge struct {
	stamp atomic.Int64
}

// Trigger records an edge. Safe for concurrent use; never blocks.
func (e *Edge) Trigger() {
	e.stamp.Store(time.Now().UnixNano())
}

type button struct {
	event    Event
	edge     *Edge
	seen     int64 // last edge consumed by Poll
	accepted int64 // last edge that passed debouncing
}

// Buttons owns the edge sources for the terminal's four mode buttons and
// translates their raw edges into events.
type Buttons struct {
	debounce time.Duration
	buttons  []*button
}

func NewButtons(debounce time.Duration) *Buttons {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	b := Buttons{debounce: debounce}
	for _, event := range []Event{HomePressed, TimeInPressed, TimeOutPressed, EnrollPressed} {
		b.buttons = append(b.buttons, &button{event: event, edge: &Edge{}})
	}
	return &b
}

// Edge returns the interrupt-side handle for the given event's button.
func (b *Buttons) Edge(event Event) *Edge {
	for _, btn := range b.buttons {
		if btn.event == event {
			return btn.edge
		}
	}
	return nil
}

// Poll returns the next debounced event, if any. Non-blocking. Each raw edge
// is consumed exactly once; an edge within the debounce interval of the
// previously accepted edge for the same button is dropped.
func (b *Buttons) Poll() (Event, bool) {
	for _, btn := range b.buttons {
		stamp := btn.edge.stamp.Load()
		if stamp == btn.seen {
			continue
		}
		btn.seen = stamp
		if stamp-btn.accepted < int64(b.debounce) {
			continue
		}
		btn.accepted = stamp
		return btn.event, true
	}
	return 0, false
}
