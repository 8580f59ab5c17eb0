package columnar

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"combatlogd/internal/eventproc"
)

func TestWritePathCreatesSessionDirectory(t *testing.T) {
	dataDir := t.TempDir()

	path, err := WritePath(dataDir, "combat_2026-01-01_00_00_00_000000.txt", 3)
	if err != nil {
		t.Fatalf("WritePath: %v", err)
	}

	want := filepath.Join(dataDir, "combat_2026-01-01_00_00_00_000000.txt", "0003.parquet")
	if path != want {
		t.Fatalf("path = %q, want %q", path, want)
	}
	if info, err := os.Stat(filepath.Dir(path)); err != nil || !info.IsDir() {
		t.Fatalf("session directory not created: %v", err)
	}
}

func TestWriteEncounterRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	path, err := WritePath(dataDir, "sess", 1)
	if err != nil {
		t.Fatalf("WritePath: %v", err)
	}

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rows := []eventproc.RowEvent{
		{
			EncounterID: 1, LineNumber: 1, Timestamp: base,
			SourceID: 100, TargetID: 200, ActionID: 9001, EffectID: 0,
			DmgAmount: 1000, DmgEffective: 900, DmgAbsorbed: 100,
			IsCrit: true, PhaseID: "p1", CombatTimeSecs: 0,
		},
		{
			EncounterID: 1, LineNumber: 2, Timestamp: base.Add(time.Second),
			SourceID: 200, TargetID: 100, ActionID: 9002,
			HealAmount: 500, HealEffective: 450,
			PhaseID: "", CombatTimeSecs: 1,
		},
	}
	phaseNames := map[string]string{"p1": "Phase One"}

	if err := WriteEncounter(path, rows, phaseNames); err != nil {
		t.Fatalf("WriteEncounter: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat output file: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected non-empty parquet file")
	}
}

func TestWriteEncounterEmptyRows(t *testing.T) {
	dataDir := t.TempDir()
	path, err := WritePath(dataDir, "sess", 2)
	if err != nil {
		t.Fatalf("WritePath: %v", err)
	}
	if err := WriteEncounter(path, nil, nil); err != nil {
		t.Fatalf("WriteEncounter with no rows: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected file to exist even with zero rows: %v", err)
	}
}
