package logging

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// Sink consumes events produced by the router.
type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

// The categories every subsystem in this module publishes under. The
// router keeps one published-events counter per category so telemetry
// can tell a flood of parse noise from a burst of watcher errors
// without re-reading the event stream.
const (
	CategoryParse     Category = "parse"
	CategoryReader    Category = "reader"
	CategoryWatcher   Category = "watcher"
	CategoryProcessor Category = "processor"
	CategoryHandler   Category = "handler"
	CategoryOverlay   Category = "overlay"
	CategoryConfig    Category = "config"
)

// knownCategories fixes the metric layout; events published under any
// other category land in the "other" bucket rather than growing the map.
var knownCategories = []Category{
	CategoryParse, CategoryReader, CategoryWatcher, CategoryProcessor,
	CategoryHandler, CategoryOverlay, CategoryConfig,
}

// numKnownCategories mirrors len(knownCategories) as a compile-time
// constant so it can size the byCategory array below.
const numKnownCategories = 7

// Metrics tracks the router's counters: totals, per-category published
// counts, warn/error severities, and the parse-debug events suppressed
// by sampling.
type Metrics struct {
	publishedTotal       atomic.Uint64
	droppedTotal         atomic.Uint64
	sinkErrorsTotal      atomic.Uint64
	sinkDisabledTotal    atomic.Uint64
	warnTotal            atomic.Uint64
	errorTotal           atomic.Uint64
	parseDebugSuppressed atomic.Uint64

	byCategory [numKnownCategories + 1]atomic.Uint64 // last slot is "other"
}

func categorySlot(c Category) int {
	for i, known := range knownCategories {
		if c == known {
			return i
		}
	}
	return len(knownCategories)
}

func (m *Metrics) count(event Event) {
	m.publishedTotal.Add(1)
	m.byCategory[categorySlot(event.Category)].Add(1)
	switch event.Severity {
	case SeverityWarn:
		m.warnTotal.Add(1)
	case SeverityError:
		m.errorTotal.Add(1)
	}
}

// Snapshot returns a copy of the metrics counters, keyed the way the
// telemetry sampler exposes them.
func (m *Metrics) Snapshot() map[string]uint64 {
	snapshot := map[string]uint64{
		"published_total":              m.publishedTotal.Load(),
		"dropped_total":                m.droppedTotal.Load(),
		"sink_errors_total":            m.sinkErrorsTotal.Load(),
		"sink_disabled_total":          m.sinkDisabledTotal.Load(),
		"warn_total":                   m.warnTotal.Load(),
		"error_total":                  m.errorTotal.Load(),
		"parse_debug_suppressed_total": m.parseDebugSuppressed.Load(),
	}
	for i, cat := range knownCategories {
		snapshot[string(cat)+"_events_total"] = m.byCategory[i].Load()
	}
	snapshot["other_events_total"] = m.byCategory[len(knownCategories)].Load()
	return snapshot
}

// sinkWorker is one enabled sink plus the bounded channel and goroutine
// that isolate it from the hot publish path.
type sinkWorker struct {
	name string
	sink Sink
	ch   chan Event
	wg   sync.WaitGroup
}

// Router fans published events out to the enabled sinks. Every sink has
// its own bounded queue: a sink stalled on disk I/O drops its own
// backlog without slowing the parse/process pipeline or its sibling
// sinks.
type Router struct {
	cfg      Config
	clock    Clock
	fallback *log.Logger
	inbox    chan Event
	workers  []*sinkWorker
	wg       sync.WaitGroup
	shutdown chan struct{}
	metrics  Metrics

	seq        atomic.Uint64
	parseDebug atomic.Uint64

	onceStop    sync.Once
	workersStop sync.Once
}

// NewRouter constructs a Router over the enabled subset of available
// sinks. A configured sink with no available implementation is counted
// as disabled and skipped, not an error, so a missing optional sink
// never blocks startup.
func NewRouter(cfg Config, clock Clock, fallback *log.Logger, available map[string]Sink) (*Router, error) {
	if cfg.BufferSize <= 0 {
		return nil, errors.New("logging: buffer size must be positive")
	}
	if fallback == nil {
		fallback = log.Default()
	}
	if clock == nil {
		clock = SystemClock{}
	}

	r := &Router{
		cfg:      cfg,
		clock:    clock,
		fallback: fallback,
		inbox:    make(chan Event, cfg.BufferSize),
		shutdown: make(chan struct{}),
	}

	seen := make(map[string]struct{}, len(cfg.EnabledSinks))
	for _, name := range cfg.EnabledSinks {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		sink, ok := available[name]
		if !ok {
			r.metrics.sinkDisabledTotal.Add(1)
			fallback.Printf("logging: sink %q unavailable", name)
			continue
		}
		w := &sinkWorker{name: name, sink: sink, ch: make(chan Event, cfg.BufferSize)}
		w.wg.Add(1)
		go w.run(fallback)
		r.workers = append(r.workers, w)
	}

	r.wg.Add(1)
	go r.dispatch()

	return r, nil
}

func (w *sinkWorker) run(fallback *log.Logger) {
	defer w.wg.Done()
	for event := range w.ch {
		if err := w.sink.Write(event); err != nil {
			fallback.Printf("logging: sink %s write failed: %v", w.name, err)
		}
	}
}

func (r *Router) dispatch() {
	defer r.wg.Done()
	for {
		select {
		case <-r.shutdown:
			r.drainInbox()
			r.stopWorkers()
			return
		case event, ok := <-r.inbox:
			if !ok {
				r.stopWorkers()
				return
			}
			r.fanOut(event)
		}
	}
}

func (r *Router) drainInbox() {
	for {
		select {
		case event, ok := <-r.inbox:
			if !ok {
				return
			}
			r.fanOut(event)
		default:
			return
		}
	}
}

func (r *Router) stopWorkers() {
	r.workersStop.Do(func() {
		for _, w := range r.workers {
			close(w.ch)
		}
		for _, w := range r.workers {
			w.wg.Wait()
		}
	})
}

func (r *Router) fanOut(event Event) {
	for _, w := range r.workers {
		select {
		case w.ch <- event:
		default:
			r.metrics.droppedTotal.Add(1)
			r.fallback.Printf("logging: sink %s dropping event %s (buffer full)", w.name, event.Type)
		}
	}
}

// admit decides whether an event reaches the sinks at all: severity
// floor, category allowlist, and the parse-debug sampling valve. A
// suppressed parse event is still counted so byte-conservation style
// diagnostics stay exact even when the per-line noise is sampled away.
func (r *Router) admit(event Event) bool {
	if event.Severity < r.cfg.MinSeverity {
		return false
	}
	if len(r.cfg.Categories) > 0 {
		allowed := false
		for _, cat := range r.cfg.Categories {
			if cat == event.Category {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	if event.Category == CategoryParse && event.Severity == SeverityDebug && r.cfg.ParseDebugSampleEvery > 1 {
		if r.parseDebug.Add(1)%uint64(r.cfg.ParseDebugSampleEvery) != 1 {
			r.metrics.parseDebugSuppressed.Add(1)
			return false
		}
	}
	return true
}

// stamp fills in the fields a publisher may leave zero: the time, a
// router-assigned sequence number (line numbers win when the caller has
// one), and the configured static metadata.
func (r *Router) stamp(event *Event) {
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	if event.Seq == 0 {
		event.Seq = r.seq.Add(1)
	}
	if len(r.cfg.Metadata) == 0 {
		return
	}
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(r.cfg.Metadata))
	}
	for k, v := range r.cfg.Metadata {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
}

// Publish implements Publisher.
func (r *Router) Publish(ctx context.Context, event Event) {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
	if !r.admit(event) {
		return
	}
	r.stamp(&event)

	select {
	case r.inbox <- event:
		r.metrics.count(event)
	default:
		r.metrics.droppedTotal.Add(1)
		r.fallback.Printf("logging: dropping event %s (router buffer full)", event.Type)
	}
}

// Close signals the router to flush outstanding events and stop all
// sinks.
func (r *Router) Close(ctx context.Context) error {
	var err error
	r.onceStop.Do(func() {
		close(r.shutdown)
		close(r.inbox)
		r.wg.Wait()
		for _, w := range r.workers {
			if cerr := w.sink.Close(ctx); cerr != nil {
				err = errors.Join(err, fmt.Errorf("sink %s: %w", w.name, cerr))
				r.metrics.sinkErrorsTotal.Add(1)
			}
		}
	})
	return err
}

// MetricsSnapshot exposes a copy of the router counters.
func (r *Router) MetricsSnapshot() map[string]uint64 {
	return r.metrics.Snapshot()
}
