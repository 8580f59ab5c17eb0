// Package watcher defines the logging events emitted by the log directory
// watcher.
package watcher

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventFileDetected is emitted when a new candidate log file appears
	// in the watched directory.
	EventFileDetected logging.EventType = "watcher.file_detected"
	// EventFileSwitched is emitted when the watcher moves the active
	// reader from one file to a newer one.
	EventFileSwitched logging.EventType = "watcher.file_switched"
	// EventWaitingForData is emitted while a newly created file still has
	// zero size, before the reader attaches to it.
	EventWaitingForData logging.EventType = "watcher.waiting_for_data"
	// EventWatchError is emitted when the underlying filesystem watch
	// fails, e.g. the directory was removed out from under the watcher.
	EventWatchError logging.EventType = "watcher.watch_error"
)

// FileDetectedPayload names the newly observed path.
type FileDetectedPayload struct {
	Path string `json:"path"`
}

// FileSwitchedPayload names the previous and new active file.
type FileSwitchedPayload struct {
	FromPath string `json:"fromPath,omitempty"`
	ToPath   string `json:"toPath"`
}

// WaitingForDataPayload reports how many polls have elapsed waiting for a
// file to become non-empty.
type WaitingForDataPayload struct {
	Path    string `json:"path"`
	PollNum int    `json:"pollNum"`
}

// WatchErrorPayload names the watched directory and the underlying error.
type WatchErrorPayload struct {
	Dir string `json:"dir"`
	Err string `json:"err"`
}

// FileDetected publishes a watcher.file_detected event.
func FileDetected(ctx context.Context, pub logging.Publisher, payload FileDetectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFileDetected,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryWatcher,
		Payload:  payload,
	})
}

// FileSwitched publishes a watcher.file_switched event.
func FileSwitched(ctx context.Context, pub logging.Publisher, payload FileSwitchedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventFileSwitched,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryWatcher,
		Payload:  payload,
	})
}

// WaitingForData publishes a watcher.waiting_for_data event at debug
// severity.
func WaitingForData(ctx context.Context, pub logging.Publisher, payload WaitingForDataPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWaitingForData,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryWatcher,
		Payload:  payload,
	})
}

// WatchError publishes a watcher.watch_error event at error severity.
func WatchError(ctx context.Context, pub logging.Publisher, payload WatchErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventWatchError,
		Severity: logging.SeverityError,
		Category: logging.CategoryWatcher,
		Payload:  payload,
	})
}
