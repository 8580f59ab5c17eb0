package session

import (
	"testing"

	"combatlogd/internal/encounter"
)

func TestEncounterIDsMonotonicAndSeenNpcResetsOnNewEncounter(t *testing.T) {
	c := NewCache()

	e1 := c.StartNewEncounter()
	c.NoteNpcInstance(42)
	if !c.SeenNpcInstances[42] {
		t.Fatalf("expected 42 to be marked seen")
	}

	e2 := c.StartNewEncounter()
	if e2.EncounterID <= e1.EncounterID {
		t.Fatalf("encounter ids not strictly increasing: %d -> %d", e1.EncounterID, e2.EncounterID)
	}
	if c.SeenNpcInstances[42] {
		t.Fatalf("SeenNpcInstances should reset on a new encounter")
	}
}

func TestRingEvictsOldestButHistoryKeepsSummaries(t *testing.T) {
	c := NewCacheWithRingSize(2)
	e1 := c.StartNewEncounter()
	c.StartNewEncounter()
	c.StartNewEncounter() // should evict e1 from the live ring

	for _, enc := range []*encounter.Encounter{e1} {
		found := false
		if c.Current() == enc {
			found = true
		}
		if found {
			t.Fatalf("e1 should have been evicted from the ring")
		}
	}

	c.FinalizeCurrent(encounter.Summary{EncounterID: e1.EncounterID, DisplayName: "Pull 1"})
	if len(c.History) != 1 || c.History[0].DisplayName != "Pull 1" {
		t.Fatalf("history = %+v, want one summary named Pull 1", c.History)
	}
}

func TestNoteNpcInstanceKeyedByLogIDNotClassID(t *testing.T) {
	c := NewCache()
	c.StartNewEncounter()
	if !c.NoteNpcInstance(1) {
		t.Fatalf("first sighting of log id 1 should report firstSeen=true")
	}
	if c.NoteNpcInstance(1) {
		t.Fatalf("second sighting of log id 1 should report firstSeen=false")
	}
	if !c.NoteNpcInstance(2) {
		t.Fatalf("a distinct spawn (different log id, possibly same class) must be treated as first-seen")
	}
}
