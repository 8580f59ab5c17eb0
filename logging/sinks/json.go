package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"
	"time"

	"combatlogd/logging"
)

// record is the flattened on-disk shape of one event in the support
// bundle: stable lower-case keys, RFC3339 nanosecond time, entity refs
// collapsed to "kind:id" strings. A support bundle is read by humans
// and ad-hoc jq, not round-tripped back into logging.Event, so the
// shape favors greppability over fidelity.
type record struct {
	Time     string         `json:"time"`
	Seq      uint64         `json:"seq"`
	Category string         `json:"category"`
	Severity string         `json:"severity"`
	Type     string         `json:"type"`
	Actor    string         `json:"actor,omitempty"`
	Targets  []string       `json:"targets,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
	TraceID  string         `json:"traceId,omitempty"`
}

func severityLabel(sev logging.Severity) string {
	switch sev {
	case logging.SeverityDebug:
		return "debug"
	case logging.SeverityInfo:
		return "info"
	case logging.SeverityWarn:
		return "warn"
	case logging.SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

func entityLabel(ref logging.EntityRef) string {
	switch {
	case ref.ID == "" && ref.Kind == "":
		return ""
	case ref.ID == "":
		return string(ref.Kind)
	case ref.Kind == "":
		return ref.ID
	default:
		return string(ref.Kind) + ":" + ref.ID
	}
}

func toRecord(event logging.Event) record {
	rec := record{
		Time:     event.Time.Format(time.RFC3339Nano),
		Seq:      event.Seq,
		Category: string(event.Category),
		Severity: severityLabel(event.Severity),
		Type:     string(event.Type),
		Actor:    entityLabel(event.Actor),
		Payload:  event.Payload,
		TraceID:  event.TraceID,
	}
	for _, target := range event.Targets {
		if label := entityLabel(target); label != "" {
			rec.Targets = append(rec.Targets, label)
		}
	}
	if len(event.Extra) > 0 {
		rec.Extra = make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			rec.Extra[k] = v
		}
	}
	return rec
}

// JSONSink appends one record per line to the support-bundle file,
// batching writes so a busy encounter doesn't turn into per-event
// fsync traffic.
type JSONSink struct {
	mu       sync.Mutex
	writer   *bufio.Writer
	file     *os.File
	buffer   []record
	ticker   *time.Ticker
	shutdown chan struct{}
}

func NewJSONSink(cfg logging.JSONConfig) (*JSONSink, error) {
	if cfg.FilePath == "" {
		cfg.FilePath = "events.jsonl"
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	maxBatch := cfg.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 32
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 2 * time.Second
	}
	sink := &JSONSink{
		writer:   bufio.NewWriter(file),
		file:     file,
		buffer:   make([]record, 0, maxBatch),
		ticker:   time.NewTicker(flushInterval),
		shutdown: make(chan struct{}),
	}
	go sink.loop()
	return sink, nil
}

func (s *JSONSink) loop() {
	for {
		select {
		case <-s.ticker.C:
			s.Flush()
		case <-s.shutdown:
			return
		}
	}
}

func (s *JSONSink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer = append(s.buffer, toRecord(event))
	if len(s.buffer) >= cap(s.buffer) {
		return s.flushLocked()
	}
	return nil
}

func (s *JSONSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *JSONSink) flushLocked() error {
	if len(s.buffer) == 0 {
		return nil
	}
	encoder := json.NewEncoder(s.writer)
	encoder.SetEscapeHTML(false)
	for _, rec := range s.buffer {
		if err := encoder.Encode(rec); err != nil {
			return err
		}
	}
	s.buffer = s.buffer[:0]
	return s.writer.Flush()
}

func (s *JSONSink) Close(ctx context.Context) error {
	close(s.shutdown)
	s.ticker.Stop()
	flushErr := s.Flush()
	s.mu.Lock()
	defer s.mu.Unlock()
	var closeErr error
	if s.file != nil {
		closeErr = s.file.Close()
	}
	if flushErr != nil && closeErr != nil {
		return errors.Join(flushErr, closeErr)
	}
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
