// Package parse defines the logging events emitted while turning raw log
// lines into CombatEvent values.
package parse

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventLineSkipped is emitted when a line does not match any known
	// combat log grammar and is dropped.
	EventLineSkipped logging.EventType = "parse.line_skipped"
	// EventUnknownEventType is emitted when a line parses structurally but
	// names an event type the parser does not recognize.
	EventUnknownEventType logging.EventType = "parse.unknown_event_type"
	// EventFieldCountMismatch is emitted when a known event type is parsed
	// with an unexpected number of fields, usually signaling a log format
	// version change.
	EventFieldCountMismatch logging.EventType = "parse.field_count_mismatch"
)

// LineSkippedPayload captures enough of the offending line to diagnose it
// without re-reading the file.
type LineSkippedPayload struct {
	Line   string `json:"line"`
	Reason string `json:"reason"`
}

// UnknownEventTypePayload names the unrecognized event type token.
type UnknownEventTypePayload struct {
	EventType string `json:"eventType"`
}

// FieldCountMismatchPayload records the field count seen against what the
// parser expected for the named event type.
type FieldCountMismatchPayload struct {
	EventType string `json:"eventType"`
	Expected  int    `json:"expected"`
	Got       int    `json:"got"`
}

// LineSkipped publishes a parse.line_skipped event at debug severity; a
// single malformed line is routine noise in a long-running tail, not an
// operator-facing problem.
func LineSkipped(ctx context.Context, pub logging.Publisher, seq uint64, payload LineSkippedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLineSkipped,
		Seq:      seq,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryParse,
		Payload:  payload,
	})
}

// UnknownEventType publishes a parse.unknown_event_type event at debug
// severity.
func UnknownEventType(ctx context.Context, pub logging.Publisher, seq uint64, payload UnknownEventTypePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnknownEventType,
		Seq:      seq,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryParse,
		Payload:  payload,
	})
}

// FieldCountMismatch publishes a parse.field_count_mismatch event at warn
// severity: unlike an unrecognized event type, this usually indicates the
// parser's grammar for a known event has gone stale.
func FieldCountMismatch(ctx context.Context, pub logging.Publisher, seq uint64, payload FieldCountMismatchPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFieldCountMismatch,
		Seq:      seq,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryParse,
		Payload:  payload,
	})
}
