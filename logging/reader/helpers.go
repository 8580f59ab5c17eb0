// Package reader defines the logging events emitted by the bulk mmap reader
// and the incremental tailing reader.
package reader

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventBulkScanStarted is emitted when a parallel bulk parse of an
	// existing log file begins.
	EventBulkScanStarted logging.EventType = "reader.bulk_scan_started"
	// EventBulkScanCompleted is emitted when a bulk parse finishes,
	// reporting how many lines and bytes were processed.
	EventBulkScanCompleted logging.EventType = "reader.bulk_scan_completed"
	// EventTailStarted is emitted when incremental tailing begins at a
	// given byte offset (zero for a fresh file, nonzero after a bulk scan
	// or checkpoint resume).
	EventTailStarted logging.EventType = "reader.tail_started"
	// EventPartialLineBuffered is emitted when a read returns a line with
	// no trailing newline, meaning the writer has not finished the line
	// yet; the partial bytes are held until the next poll completes it.
	EventPartialLineBuffered logging.EventType = "reader.partial_line_buffered"
	// EventReadError is emitted when the reader's underlying file handle
	// returns an unrecoverable error.
	EventReadError logging.EventType = "reader.read_error"
)

// BulkScanStartedPayload names the file and its size at scan start.
type BulkScanStartedPayload struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// BulkScanCompletedPayload reports bulk scan throughput.
type BulkScanCompletedPayload struct {
	Path        string `json:"path"`
	Lines       int    `json:"lines"`
	Events      int    `json:"events"`
	DurationMs  int64  `json:"durationMs"`
	WorkerCount int    `json:"workerCount"`
}

// TailStartedPayload records where tailing resumed from.
type TailStartedPayload struct {
	Path       string `json:"path"`
	ByteOffset int64  `json:"byteOffset"`
	Resumed    bool   `json:"resumed"`
}

// PartialLineBufferedPayload reports the size of the held partial line.
type PartialLineBufferedPayload struct {
	Path string `json:"path"`
	Size int    `json:"size"`
}

// ReadErrorPayload names the file and the underlying error text.
type ReadErrorPayload struct {
	Path string `json:"path"`
	Err  string `json:"err"`
}

// BulkScanStarted publishes a reader.bulk_scan_started event.
func BulkScanStarted(ctx context.Context, pub logging.Publisher, payload BulkScanStartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBulkScanStarted,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryReader,
		Payload:  payload,
	})
}

// BulkScanCompleted publishes a reader.bulk_scan_completed event.
func BulkScanCompleted(ctx context.Context, pub logging.Publisher, payload BulkScanCompletedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventBulkScanCompleted,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryReader,
		Payload:  payload,
	})
}

// TailStarted publishes a reader.tail_started event.
func TailStarted(ctx context.Context, pub logging.Publisher, payload TailStartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTailStarted,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryReader,
		Payload:  payload,
	})
}

// PartialLineBuffered publishes a reader.partial_line_buffered event at
// debug severity; this is routine when tailing a line being written.
func PartialLineBuffered(ctx context.Context, pub logging.Publisher, payload PartialLineBufferedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventPartialLineBuffered,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryReader,
		Payload:  payload,
	})
}

// ReadError publishes a reader.read_error event at error severity: a
// fatal read error means the directory watcher must select the next
// newest file.
func ReadError(ctx context.Context, pub logging.Publisher, payload ReadErrorPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventReadError,
		Severity: logging.SeverityError,
		Category: logging.CategoryReader,
		Payload:  payload,
	})
}
