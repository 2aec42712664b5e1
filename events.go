// Package main - events.go
//
// Events are the bot's observable history: what the workers decided and
// when. Components record them through an EventSink; the bot fans them out
// to the journal, the session store and the status feed.
//
// Recording is fire-and-forget. A sink that cannot keep up drops events
// rather than slowing a worker down.
package main

import (
	"sync"
	"time"
)

// EventKind names an event type
type EventKind string

const (
	EventSessionStart    EventKind = "session_start"
	EventSessionStop     EventKind = "session_stop"
	EventWaypointReached EventKind = "waypoint_reached"
	EventWaypointSkipped EventKind = "waypoint_skipped"
	EventJump            EventKind = "jump"
	EventLevelChange     EventKind = "level_change"
	EventObstacle        EventKind = "obstacle"
	EventCombat          EventKind = "combat"
	EventAttack          EventKind = "attack"
	EventLoot            EventKind = "loot"
	EventHeal            EventKind = "heal"
	EventLevelUp         EventKind = "level_up"
	EventAction          EventKind = "action"
	EventActionError     EventKind = "action_error"
)

// Event is one entry of the bot's history.
type Event struct {
	Time     time.Time   `json:"time"`
	Kind     EventKind   `json:"kind"`
	Index    int         `json:"index,omitempty"`
	Position *Coordinate `json:"position,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

// NewEvent creates an event stamped now
func NewEvent(kind EventKind, detail string) Event {
	return Event{Time: time.Now(), Kind: kind, Detail: detail}
}

// At attaches a position
func (e Event) At(c Coordinate) Event {
	e.Position = &c
	return e
}

// WithIndex attaches a waypoint index
func (e Event) WithIndex(i int) Event {
	e.Index = i
	return e
}

// EventSink receives events.
type EventSink interface {
	Record(e Event)
}

// MultiSink fans events out to several sinks.
type MultiSink []EventSink

// Record forwards e to every sink
func (m MultiSink) Record(e Event) {
	for _, s := range m {
		if s != nil {
			s.Record(e)
		}
	}
}

type nopSink struct{}

func (nopSink) Record(Event) {}

func orNopSink(s EventSink) EventSink {
	if s == nil {
		return nopSink{}
	}
	return s
}

// EventBuffer keeps the most recent events in memory.
type EventBuffer struct {
	events []Event
	size   int
	mu     sync.Mutex
}

// NewEventBuffer creates a buffer holding up to size events
func NewEventBuffer(size int) *EventBuffer {
	return &EventBuffer{size: size}
}

// Record appends e, dropping the oldest entry when full
func (b *EventBuffer) Record(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
	if len(b.events) > b.size {
		b.events = b.events[len(b.events)-b.size:]
	}
}

// Events returns a copy of the buffered events, oldest first
func (b *EventBuffer) Events() []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Event, len(b.events))
	copy(out, b.events)
	return out
}

// Kinds returns just the event kinds, oldest first
func (b *EventBuffer) Kinds() []EventKind {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]EventKind, len(b.events))
	for i, e := range b.events {
		out[i] = e.Kind
	}
	return out
}

// Status is a point-in-time view of the bot for the tray, the status feed
// and the browser overlay.
type Status struct {
	State       string        `json:"state"`
	Combat      string        `json:"combat"`
	Waypoint    int           `json:"waypoint"`
	Instruction string        `json:"instruction"`
	Position    Coordinate    `json:"position"`
	Obstacles   int           `json:"obstacles"`
	Stats       StatsSnapshot `json:"stats"`
	Time        time.Time     `json:"time"`
}
