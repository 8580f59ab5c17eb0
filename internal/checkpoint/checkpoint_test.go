package checkpoint

import (
	"path/filepath"
	"testing"

	"combatlogd/internal/session"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.msgpack")
	want := State{
		Path:               "/logs/combat_2026-01-01_00_00_00_000000.txt",
		ByteOffset:         4096,
		EncounterIDCounter: 7,
		Player:             session.PlayerInfo{Name: "Vrook", LogID: 42, ClassID: 1001},
	}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("Load() = %+v, want %+v", got, want)
	}
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.msgpack")
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error loading a missing checkpoint")
	}
}

func TestSaveOverwritesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.msgpack")
	first := State{Path: "a.txt", ByteOffset: 1, EncounterIDCounter: 1}
	second := State{Path: "b.txt", ByteOffset: 2, EncounterIDCounter: 2}

	if err := Save(path, first); err != nil {
		t.Fatalf("Save first: %v", err)
	}
	if err := Save(path, second); err != nil {
		t.Fatalf("Save second: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != second {
		t.Fatalf("Load() = %+v, want %+v", got, second)
	}
}
