// Package overlay defines the logging events emitted by the overlay bridge
// that fans encounter state out to subscribed UI clients.
package overlay

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventClientConnected is emitted when a UI client subscribes to the
	// overlay bridge.
	EventClientConnected logging.EventType = "overlay.client_connected"
	// EventClientDisconnected is emitted when a subscribed client's
	// channel is closed or its connection drops.
	EventClientDisconnected logging.EventType = "overlay.client_disconnected"
	// EventMessageDropped is emitted when a client's bounded send channel
	// is full and the oldest queued message is dropped to make room for
	// the newest one.
	EventMessageDropped logging.EventType = "overlay.message_dropped"
)

// ClientConnectedPayload names the newly connected client.
type ClientConnectedPayload struct {
	ClientID string `json:"clientId"`
}

// ClientDisconnectedPayload names the disconnected client and why.
type ClientDisconnectedPayload struct {
	ClientID string `json:"clientId"`
	Reason   string `json:"reason,omitempty"`
}

// MessageDroppedPayload reports a backpressure drop for a client.
type MessageDroppedPayload struct {
	ClientID    string `json:"clientId"`
	MessageType string `json:"messageType"`
}

// ClientConnected publishes an overlay.client_connected event.
func ClientConnected(ctx context.Context, pub logging.Publisher, payload ClientConnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientConnected,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryOverlay,
		Payload:  payload,
	})
}

// ClientDisconnected publishes an overlay.client_disconnected event.
func ClientDisconnected(ctx context.Context, pub logging.Publisher, payload ClientDisconnectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventClientDisconnected,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryOverlay,
		Payload:  payload,
	})
}

// MessageDropped publishes an overlay.message_dropped event at warn
// severity: never silent, since sustained drops mean a client is falling
// behind the encounter.
func MessageDropped(ctx context.Context, pub logging.Publisher, payload MessageDroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageDropped,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryOverlay,
		Payload:  payload,
	})
}
