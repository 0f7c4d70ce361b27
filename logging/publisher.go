package logging

import (
	"context"
	"time"
)

// EventType names a structured gameplay event, namespaced by subsystem,
// e.g. "guardian.captured".
type EventType string

// Severity orders events for sink filtering.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// EntityKind classifies the actors referenced by events.
type EntityKind string

const (
	EntityKindUnknown  EntityKind = "unknown"
	EntityKindOwner    EntityKind = "owner"
	EntityKindGuardian EntityKind = "guardian"
	EntityKindCreature EntityKind = "creature"
	EntityKindWorld    EntityKind = "world"
)

// EntityRef points at an actor without owning it.
type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// Event is one structured record flowing through the router to the sinks.
type Event struct {
	Type     EventType      `json:"type"`
	Tick     uint64         `json:"tick"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

// Event categories.
const (
	CategoryLifecycle   = "lifecycle"
	CategoryCombat      = "combat"
	CategoryPersistence = "persistence"
	CategorySystem      = "system"
)

// Publisher accepts events for asynchronous delivery. Implementations must
// never block the simulation tick.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

// NopPublisher returns a publisher that drops every event.
func NopPublisher() Publisher {
	return nopPublisher{}
}

// WithExtra returns a copy of the event carrying one more extra field.
func (e Event) WithExtra(key string, value any) Event {
	extra := make(map[string]any, len(e.Extra)+1)
	for k, v := range e.Extra {
		extra[k] = v
	}
	extra[key] = value
	e.Extra = extra
	return e
}
