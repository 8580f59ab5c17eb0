package reader

import (
	"context"
	"io"
	"os"
	"time"

	"combatlogd/internal/logline"
	loggingpkg "combatlogd/logging"
	parselog "combatlogd/logging/parse"
	readerlog "combatlogd/logging/reader"
)

const (
	tailPollInterval = 100 * time.Millisecond
	tailReadChunk    = 4096
)

// EventFunc receives one successfully parsed event from a tailing reader.
// The caller is responsible for applying it under the owning session's
// write lock.
type EventFunc func(logline.CombatEvent)

// TailFile opens path, seeks to startOffset, and loops reading
// newly-appended bytes until ctx is canceled. Completed CR-LF-terminated
// lines are parsed and delivered to onEvent in order; an incomplete
// trailing line is held across polls until a subsequent read completes
// it. A zero-byte read sleeps tailPollInterval and retries without
// closing the file; only an outright read error ends the tail.
func TailFile(ctx context.Context, path string, startOffset int64, parser *logline.Parser, onEvent EventFunc, pub loggingpkg.Publisher) error {
	f, err := os.Open(path)
	if err != nil {
		return &Error{Kind: KindOpenFile, Path: path, Err: err}
	}
	defer f.Close()

	if startOffset > 0 {
		if _, err := f.Seek(startOffset, io.SeekStart); err != nil {
			return &Error{Kind: KindSeek, Path: path, Err: err}
		}
	}

	readerlog.TailStarted(ctx, pub, readerlog.TailStartedPayload{
		Path:       path,
		ByteOffset: startOffset,
		Resumed:    startOffset > 0,
	})

	var pending []byte
	buf := make([]byte, tailReadChunk)
	var lineNo uint64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		n, err := f.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			pending, lineNo = drainCompleteLines(ctx, pending, parser, onEvent, pub, lineNo)
		}
		if err != nil {
			if err == io.EOF {
				if len(pending) > 0 {
					readerlog.PartialLineBuffered(ctx, pub, readerlog.PartialLineBufferedPayload{Path: path, Size: len(pending)})
				}
				if !sleepOrDone(ctx, tailPollInterval) {
					return nil
				}
				continue
			}
			readerlog.ReadError(ctx, pub, readerlog.ReadErrorPayload{Path: path, Err: err.Error()})
			return &Error{Kind: KindReadFile, Path: path, Err: err}
		}
		if n == 0 {
			if !sleepOrDone(ctx, tailPollInterval) {
				return nil
			}
		}
	}
}

// drainCompleteLines splits every CR-LF-terminated line out of pending,
// parses and delivers each, and returns the unconsumed remainder.
func drainCompleteLines(ctx context.Context, pending []byte, parser *logline.Parser, onEvent EventFunc, pub loggingpkg.Publisher, lineNo uint64) ([]byte, uint64) {
	start := 0
	for i := 0; i+1 < len(pending); i++ {
		if pending[i] != '\r' || pending[i+1] != '\n' {
			continue
		}
		lineNo++
		line := decodeLegacy(pending[start:i])
		ev, err := parser.Parse(lineNo, line)
		if err != nil {
			if perr, ok := err.(*logline.ParseError); ok {
				parselog.LineSkipped(ctx, pub, lineNo, parselog.LineSkippedPayload{Line: line, Reason: perr.Kind.String()})
			}
		} else if onEvent != nil {
			onEvent(ev)
		}
		start = i + 2
		i++
	}
	if start == 0 {
		return pending, lineNo
	}
	remainder := append([]byte(nil), pending[start:]...)
	return remainder, lineNo
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
