package sinks

import (
	"context"
	"sync"

	"combatlogd/logging"
)

// Memory collects events for assertions in tests, with helpers for the
// queries those tests actually make: "did a parse.line_skipped ever
// arrive", "how many handler events fired".
type Memory struct {
	mu     sync.Mutex
	events []logging.Event
}

// NewMemory constructs an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

// Write satisfies logging.Sink.
func (m *Memory) Write(event logging.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := event
	if event.Extra != nil {
		copied.Extra = make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied.Extra[k] = v
		}
	}
	if event.Targets != nil {
		copied.Targets = append([]logging.EntityRef(nil), event.Targets...)
	}
	m.events = append(m.events, copied)
	return nil
}

// Close satisfies logging.Sink.
func (m *Memory) Close(context.Context) error { return nil }

// Events returns a snapshot of collected events.
func (m *Memory) Events() []logging.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make([]logging.Event, len(m.events))
	copy(copied, m.events)
	return copied
}

// OfType returns every collected event with the given type, in arrival
// order.
func (m *Memory) OfType(t logging.EventType) []logging.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []logging.Event
	for _, ev := range m.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// CountByCategory returns how many collected events each category holds.
func (m *Memory) CountByCategory() map[logging.Category]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[logging.Category]int)
	for _, ev := range m.events {
		counts[ev.Category]++
	}
	return counts
}
