package dirindex

import (
	"context"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"

	loggingpkg "combatlogd/logging"
	watcherlog "combatlogd/logging/watcher"
)

// EventKind tags the kind of DirectoryEvent the watcher emits.
type EventKind int

const (
	EventNewFile EventKind = iota
	EventFileModified
	EventFileRemoved
	EventDirectoryIndexed
	EventMessage
	EventError
)

// DirectoryEvent is one occurrence the watcher reports. Only the fields
// relevant to Kind are populated.
type DirectoryEvent struct {
	Kind   EventKind
	Path   string
	Count  int
	Newest string
	Text   string
	Err    error
}

const (
	newFileWaitTimeout = 60 * time.Second
	newFilePollEvery   = 250 * time.Millisecond
)

// Watch watches dir for combat log file creation, modification, and
// removal, emitting DirectoryEvent values on the returned channel until
// ctx is canceled. On startup it emits DirectoryIndexed once with the
// result of BuildIndex.
//
// One goroutine owns the fsnotify.Watcher and forwards translated,
// filtered events to a single consumer channel rather than exposing the
// raw fsnotify stream.
func Watch(ctx context.Context, dir string, pub loggingpkg.Publisher) (<-chan DirectoryEvent, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	out := make(chan DirectoryEvent, 32)

	go func() {
		defer close(out)
		defer fsw.Close()

		if metas, err := BuildIndex(dir); err != nil {
			watcherlog.WatchError(ctx, pub, watcherlog.WatchErrorPayload{Dir: dir, Err: err.Error()})
			emit(ctx, out, DirectoryEvent{Kind: EventError, Err: err})
		} else {
			newest := ""
			if len(metas) > 0 {
				newest = metas[len(metas)-1].Path
			}
			emit(ctx, out, DirectoryEvent{Kind: EventDirectoryIndexed, Count: len(metas), Newest: newest})
		}

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				handleFsEvent(ctx, ev, pub, out)
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				watcherlog.WatchError(ctx, pub, watcherlog.WatchErrorPayload{Dir: dir, Err: err.Error()})
				emit(ctx, out, DirectoryEvent{Kind: EventError, Err: err})
			}
		}
	}()

	return out, nil
}

func handleFsEvent(ctx context.Context, ev fsnotify.Event, pub loggingpkg.Publisher, out chan DirectoryEvent) {
	name := filepathBase(ev.Name)
	if !IsCombatLogFile(name) {
		return
	}

	switch {
	case ev.Has(fsnotify.Create):
		watcherlog.FileDetected(ctx, pub, watcherlog.FileDetectedPayload{Path: ev.Name})
		go waitForNonZeroSize(ctx, ev.Name, pub, out)
	case ev.Has(fsnotify.Write):
		emit(ctx, out, DirectoryEvent{Kind: EventFileModified, Path: ev.Name})
	case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
		emit(ctx, out, DirectoryEvent{Kind: EventFileRemoved, Path: ev.Name})
	}
}

// waitForNonZeroSize polls a newly created file's size for up to 60s
// before emitting NewFile: the game creates the file before writing
// anything to it, so a reader attaching immediately would only see an
// empty file and no useful session metadata.
func waitForNonZeroSize(ctx context.Context, path string, pub loggingpkg.Publisher, out chan DirectoryEvent) {
	deadline := time.Now().Add(newFileWaitTimeout)
	poll := 0
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		default:
		}
		info, err := os.Stat(path)
		if err == nil && info.Size() > 0 {
			emit(ctx, out, DirectoryEvent{Kind: EventNewFile, Path: path})
			return
		}
		poll++
		watcherlog.WaitingForData(ctx, pub, watcherlog.WaitingForDataPayload{Path: path, PollNum: poll})
		select {
		case <-ctx.Done():
			return
		case <-time.After(newFilePollEvery):
		}
	}
	emit(ctx, out, DirectoryEvent{Kind: EventMessage, Path: path, Text: "timed out waiting for file to become non-empty"})
}

func emit(ctx context.Context, out chan DirectoryEvent, ev DirectoryEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}

func filepathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' || p[i] == '\\' {
			return p[i+1:]
		}
	}
	return p
}
