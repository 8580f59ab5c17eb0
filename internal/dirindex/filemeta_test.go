package dirindex

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseFileName(t *testing.T) {
	ts, ok := ParseFileName("combat_2026-07-29_13_45_02_123456.txt")
	if !ok {
		t.Fatalf("expected a match")
	}
	want := time.Date(2026, 7, 29, 13, 45, 2, 123456000, time.Local)
	if !ts.Equal(want) {
		t.Fatalf("ts = %v, want %v", ts, want)
	}

	if _, ok := ParseFileName("notes.txt"); ok {
		t.Fatalf("expected no match for a non-conforming name")
	}
}

func TestBuildIndexAssignsSessionNumbersAndExtractsCharacter(t *testing.T) {
	dir := t.TempDir()

	write := func(name, line string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(line), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	disciplineLine := "[13:45:02.000000] [@Hero#1|(0,0,0,0)|(900/1000)] [=] [DisciplineChanged:0] [] [()]\r\n"
	write("combat_2026-01-15_10_00_00_000000.txt", disciplineLine)
	write("combat_2026-01-15_11_00_00_000000.txt", disciplineLine)
	write("ignored.txt", "not a log file")

	metas, err := BuildIndex(dir)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(metas) != 2 {
		t.Fatalf("metas = %d, want 2", len(metas))
	}
	for _, m := range metas {
		if !m.CharacterKnown || m.CharacterName != "Hero" {
			t.Fatalf("meta = %+v, want CharacterName=Hero", m)
		}
	}
	if metas[0].SessionNumber != 1 || metas[1].SessionNumber != 2 {
		t.Fatalf("session numbers = %d, %d; want 1, 2", metas[0].SessionNumber, metas[1].SessionNumber)
	}
}

func TestBuildIndexHandlesEmptyFileGracefully(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "combat_2026-01-15_10_00_00_000000.txt")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	metas, err := BuildIndex(dir)
	if err != nil {
		t.Fatalf("BuildIndex: %v", err)
	}
	if len(metas) != 1 || metas[0].CharacterKnown {
		t.Fatalf("metas = %+v, want one entry with CharacterKnown=false", metas)
	}
}
