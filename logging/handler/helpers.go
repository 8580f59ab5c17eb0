// Package handler defines the logging events emitted around pluggable
// SignalHandler dispatch.
package handler

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventAttached is emitted when a handler is registered with the
	// event processor.
	EventAttached logging.EventType = "handler.attached"
	// EventPanicRecovered is emitted when a handler panics during signal
	// dispatch; the panic is contained to that handler and does not stop
	// the processor or other handlers.
	EventPanicRecovered logging.EventType = "handler.panic_recovered"
	// EventSlow is emitted when a handler's signal processing exceeds the
	// configured latency budget, which can stall the signal dispatch loop
	// since handlers run synchronously in registration order.
	EventSlow logging.EventType = "handler.slow"
)

// AttachedPayload names the newly registered handler.
type AttachedPayload struct {
	Name string `json:"name"`
}

// PanicRecoveredPayload captures the recovered panic value and the signal
// being dispatched when it occurred.
type PanicRecoveredPayload struct {
	Name       string `json:"name"`
	SignalType string `json:"signalType"`
	Recovered  string `json:"recovered"`
}

// SlowPayload reports a handler invocation that exceeded its budget.
type SlowPayload struct {
	Name       string `json:"name"`
	SignalType string `json:"signalType"`
	DurationMs int64  `json:"durationMs"`
	BudgetMs   int64  `json:"budgetMs"`
}

// Attached publishes a handler.attached event.
func Attached(ctx context.Context, pub logging.Publisher, payload AttachedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAttached,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryHandler,
		Payload:  payload,
	})
}

// PanicRecovered publishes a handler.panic_recovered event at error
// severity; it never re-panics or propagates to the processor.
func PanicRecovered(ctx context.Context, pub logging.Publisher, payload PanicRecoveredPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPanicRecovered,
		Severity: logging.SeverityError,
		Category: logging.CategoryHandler,
		Payload:  payload,
	})
}

// Slow publishes a handler.slow event at warn severity.
func Slow(ctx context.Context, pub logging.Publisher, payload SlowPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSlow,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryHandler,
		Payload:  payload,
	})
}
