package reader

import (
	"context"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sync/errgroup"

	"combatlogd/internal/logline"
	loggingpkg "combatlogd/logging"
	parselog "combatlogd/logging/parse"
	readerlog "combatlogd/logging/reader"
)

// BulkResult is the output of ReadLogFile: every event parsed from the
// file's complete lines, and the byte offset through the last complete
// line, which is the offset a subsequent TailFile call should seek to.
type BulkResult struct {
	Events     []logline.CombatEvent
	FileSize   int64
	LinesTotal int
}

type lineRange struct {
	start, end int
	lineNumber uint64
}

// ReadLogFile memory-maps path, splits it into complete CR-LF-terminated
// lines, and parses those lines in parallel over work-stealing line
// ranges. It is used once per file switch to catch up to the file's
// current end before tailing begins.
func ReadLogFile(ctx context.Context, path string, parser *logline.Parser, pub loggingpkg.Publisher) (BulkResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return BulkResult{}, &Error{Kind: KindOpenFile, Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return BulkResult{}, &Error{Kind: KindOpenFile, Path: path, Err: err}
	}
	if info.Size() == 0 {
		return BulkResult{}, nil
	}

	readerlog.BulkScanStarted(ctx, pub, readerlog.BulkScanStartedPayload{Path: path, Size: info.Size()})
	start := time.Now()

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return BulkResult{}, &Error{Kind: KindMemoryMap, Path: path, Err: err}
	}
	defer mapped.Unmap()

	data := []byte(mapped)
	ranges := splitCompleteLines(data)

	var consumed int64
	if len(ranges) > 0 {
		consumed = int64(ranges[len(ranges)-1].end + 2) // past the CR-LF terminator
	}

	events, err := parseRangesParallel(ctx, data, ranges, parser, pub)
	if err != nil {
		return BulkResult{}, err
	}

	readerlog.BulkScanCompleted(ctx, pub, readerlog.BulkScanCompletedPayload{
		Path:        path,
		Lines:       len(ranges),
		Events:      len(events),
		DurationMs:  time.Since(start).Milliseconds(),
		WorkerCount: workerCount(len(ranges)),
	})

	return BulkResult{Events: events, FileSize: consumed, LinesTotal: len(ranges)}, nil
}

// splitCompleteLines finds every CR-LF-terminated line in data. A
// trailing fragment with no terminator (the writer has not finished it
// yet) is excluded; tailing picks it up once it completes.
func splitCompleteLines(data []byte) []lineRange {
	var ranges []lineRange
	start := 0
	var lineNo uint64
	for i := 0; i+1 < len(data); i++ {
		if data[i] == '\r' && data[i+1] == '\n' {
			lineNo++
			ranges = append(ranges, lineRange{start: start, end: i, lineNumber: lineNo})
			start = i + 2
			i++
		}
	}
	return ranges
}

func workerCount(lines int) int {
	workers := runtime.GOMAXPROCS(0)
	if workers < 1 {
		workers = 1
	}
	if workers > lines {
		workers = lines
	}
	if workers < 1 {
		workers = 1
	}
	return workers
}

// parseRangesParallel parses each line range, distributing ranges across
// workers via a shared channel of range indexes (work-stealing): idle workers keep
// pulling the next unclaimed range rather than owning a fixed slice, so an
// uneven distribution of malformed/short lines doesn't strand one worker
// with all the expensive ranges.
func parseRangesParallel(ctx context.Context, data []byte, ranges []lineRange, parser *logline.Parser, pub loggingpkg.Publisher) ([]logline.CombatEvent, error) {
	if len(ranges) == 0 {
		return nil, nil
	}

	workers := workerCount(len(ranges))
	perWorker := make([][]logline.CombatEvent, workers)

	g, gctx := errgroup.WithContext(ctx)
	var cursor = make(chan int, len(ranges))
	for i := range ranges {
		cursor <- i
	}
	close(cursor)

	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			var local []logline.CombatEvent
			for idx := range cursor {
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}
				r := ranges[idx]
				line := decodeLegacy(data[r.start:r.end])
				ev, err := parser.Parse(r.lineNumber, line)
				if err != nil {
					if perr, ok := err.(*logline.ParseError); ok {
						parselog.LineSkipped(ctx, pub, r.lineNumber, parselog.LineSkippedPayload{
							Line:   line,
							Reason: perr.Kind.String(),
						})
					}
					continue
				}
				local = append(local, ev)
			}
			perWorker[w] = local
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []logline.CombatEvent
	for _, chunk := range perWorker {
		all = append(all, chunk...)
	}
	// Work-stealing parses ranges out of order; the event processor is
	// stateful (effect lifecycle, HP thresholds), so events must be
	// applied in the file's byte order regardless of parse order.
	sort.Slice(all, func(i, j int) bool { return all[i].LineNumber < all[j].LineNumber })
	return all, nil
}
