// Package logging provides a small structured-event router shared by every
// subsystem in this module: the parser, the tailing reader, the directory
// watcher, the event processor, signal handlers, and the overlay bridge all
// publish through the same Publisher interface instead of calling the
// standard library logger directly, so a slow or misbehaving sink can never
// block the hot parse/process path.
package logging

import (
	"context"
	"time"
)

// EventType provides a namespaced identifier for a logged occurrence.
type EventType string

// Severity expresses the importance of a logged event.
type Severity int

const (
	// SeverityDebug is verbose diagnostic detail (e.g. a skipped malformed line).
	SeverityDebug Severity = iota
	// SeverityInfo is routine operational detail.
	SeverityInfo
	// SeverityWarn indicates a recoverable anomaly.
	SeverityWarn
	// SeverityError indicates a failure that likely needs attention.
	SeverityError
)

// Category groups events by subsystem for filtering.
type Category string

// Event describes a single occurrence worth recording.
type Event struct {
	Type     EventType
	Seq      uint64         // monotonic sequence (line number when one is known, else router-assigned)
	Time     time.Time
	Actor    EntityRef
	Targets  []EntityRef
	Severity Severity
	Category Category
	Payload  any
	Extra    map[string]any
	TraceID  string
}

// EntityKind differentiates the referenced entity.
type EntityKind string

const (
	EntityPlayer    EntityKind = "player"
	EntityNpc       EntityKind = "npc"
	EntityCompanion EntityKind = "companion"
	EntitySystem    EntityKind = "system"
)

// EntityRef identifies an entity involved in an event.
type EntityRef struct {
	ID   string
	Kind EntityKind
}

// Publisher emits events without blocking the caller's hot path.
type Publisher interface {
	Publish(ctx context.Context, event Event)
}

// NopPublisher is a Publisher that drops all events.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, Event) {}

// WithFields attaches static metadata to every event emitted by the Publisher.
func WithFields(base Publisher, fields map[string]any) Publisher {
	if base == nil {
		return NopPublisher{}
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldsPublisher{base: base, fields: copied}
}

type fieldsPublisher struct {
	base   Publisher
	fields map[string]any
}

func (p *fieldsPublisher) Publish(ctx context.Context, event Event) {
	if len(p.fields) > 0 {
		if event.Extra == nil {
			event.Extra = make(map[string]any, len(p.fields))
		}
		for k, v := range p.fields {
			if _, exists := event.Extra[k]; !exists {
				event.Extra[k] = v
			}
		}
	}
	p.base.Publish(ctx, event)
}
