// Package config defines the logging events emitted around persisted
// AppConfig load/save.
package config

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventLoadFailed is emitted when reading the persisted config fails;
	// the caller falls back to platform defaults and continues.
	EventLoadFailed logging.EventType = "config.load_failed"
	// EventSaveFailed is emitted when writing the persisted config fails;
	// surfaced as a toast-level UI message but never stops the session.
	EventSaveFailed logging.EventType = "config.save_failed"
	// EventSaved is emitted on a successful config write.
	EventSaved logging.EventType = "config.saved"
)

// LoadFailedPayload names the config path and the underlying error.
type LoadFailedPayload struct {
	Path string `json:"path"`
	Err  string `json:"err"`
}

// SaveFailedPayload names the config path and the underlying error.
type SaveFailedPayload struct {
	Path string `json:"path"`
	Err  string `json:"err"`
}

// SavedPayload names the config path written.
type SavedPayload struct {
	Path string `json:"path"`
}

// LoadFailed publishes a config.load_failed event at warn severity.
func LoadFailed(ctx context.Context, pub logging.Publisher, payload LoadFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventLoadFailed,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryConfig,
		Payload:  payload,
	})
}

// SaveFailed publishes a config.save_failed event at error severity.
func SaveFailed(ctx context.Context, pub logging.Publisher, payload SaveFailedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSaveFailed,
		Severity: logging.SeverityError,
		Category: logging.CategoryConfig,
		Payload:  payload,
	})
}

// Saved publishes a config.saved event at info severity.
func Saved(ctx context.Context, pub logging.Publisher, payload SavedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSaved,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryConfig,
		Payload:  payload,
	})
}
