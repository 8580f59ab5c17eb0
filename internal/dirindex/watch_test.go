package dirindex

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// waitFor drains events until one of the wanted kind arrives for path
// (empty path matches any), or the deadline passes.
func waitFor(t *testing.T, ch <-chan DirectoryEvent, kind EventKind, path string) DirectoryEvent {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for kind %d", kind)
			}
			if ev.Kind == kind && (path == "" || ev.Path == path) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", kind)
		}
	}
}

func TestWatchEmitsInitialIndexThenNewFile(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Watch(ctx, dir, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	idx := waitFor(t, ch, EventDirectoryIndexed, "")
	if idx.Count != 0 {
		t.Fatalf("initial index count = %d, want 0", idx.Count)
	}

	// NewFile is only emitted once the file has content, so write it in
	// one shot; the watcher's size poll picks it up.
	path := filepath.Join(dir, "combat_2026-07-30_20_00_00_000000.txt")
	if err := os.WriteFile(path, []byte("x\r\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	waitFor(t, ch, EventNewFile, path)

	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	waitFor(t, ch, EventFileRemoved, path)
}

func TestWatchIgnoresNonCombatFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := Watch(ctx, dir, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitFor(t, ch, EventDirectoryIndexed, "")

	other := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(other, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	combat := filepath.Join(dir, "combat_2026-07-30_21_00_00_000000.txt")
	if err := os.WriteFile(combat, []byte("y\r\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// The combat file's NewFile must arrive without any event for the
	// non-conforming name slipping through first.
	for {
		ev := waitFor(t, ch, EventNewFile, "")
		if ev.Path == other {
			t.Fatalf("watcher emitted NewFile for non-combat file %q", other)
		}
		if ev.Path == combat {
			return
		}
	}
}

func TestWatchMissingDirectoryFails(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := Watch(ctx, filepath.Join(t.TempDir(), "absent"), nil); err == nil {
		t.Fatalf("expected an error watching a missing directory")
	}
}
