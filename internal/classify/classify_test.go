package classify

import (
	"testing"

	"combatlogd/internal/rules"
)

func TestClassifyKnownBossDrivesLabel(t *testing.T) {
	counter := NewPullCounter()
	bosses := []rules.BossEntry{{ClassID: 42, Name: "Brontes", ContentType: string(ContentRaid)}}

	in := Input{
		AreaID:        9001,
		AreaName:      "Dread Fortress",
		FirstSeenNPCs: []int64{7, 42, 9},
		BossDefs:      bosses,
	}
	result := Classify(in, counter)
	if result.BossName != "Brontes" {
		t.Fatalf("BossName = %q, want Brontes", result.BossName)
	}
	if result.DisplayName != "Brontes Pull 1" {
		t.Fatalf("DisplayName = %q, want %q", result.DisplayName, "Brontes Pull 1")
	}
	if result.PhaseType != ContentRaid {
		t.Fatalf("PhaseType = %q, want %q", result.PhaseType, ContentRaid)
	}

	second := Classify(in, counter)
	if second.DisplayName != "Brontes Pull 2" {
		t.Fatalf("second pull DisplayName = %q, want %q", second.DisplayName, "Brontes Pull 2")
	}
}

func TestClassifyFirstBossSeenWins(t *testing.T) {
	counter := NewPullCounter()
	bosses := []rules.BossEntry{
		{ClassID: 1, Name: "Dash'roode", ContentType: string(ContentFlashpoint)},
		{ClassID: 2, Name: "Colonel Vorgoth", ContentType: string(ContentFlashpoint)},
	}
	in := Input{FirstSeenNPCs: []int64{2, 1}, BossDefs: bosses}
	result := Classify(in, counter)
	if result.BossName != "Colonel Vorgoth" {
		t.Fatalf("expected the first-seen boss (class 2) to win, got %q", result.BossName)
	}
}

func TestClassifyKnownPvPArea(t *testing.T) {
	counter := NewPullCounter()
	RegisterPvPArea(31337)
	result := Classify(Input{AreaID: 31337, AreaName: "Novare Coast"}, counter)
	if result.PhaseType != ContentPvP {
		t.Fatalf("PhaseType = %q, want %q", result.PhaseType, ContentPvP)
	}
	if result.DisplayName != "PvP 1" {
		t.Fatalf("DisplayName = %q, want %q", result.DisplayName, "PvP 1")
	}
}

func TestClassifyAreaNameContentType(t *testing.T) {
	counter := NewPullCounter()
	result := Classify(Input{AreaID: 55, AreaName: "The Foundry Flashpoint"}, counter)
	if result.PhaseType != ContentFlashpoint {
		t.Fatalf("PhaseType = %q, want %q", result.PhaseType, ContentFlashpoint)
	}
}

func TestClassifyOpenWorldFallback(t *testing.T) {
	counter := NewPullCounter()
	result := Classify(Input{AreaID: 99, AreaName: "Tython"}, counter)
	if result.PhaseType != ContentOpenWorld {
		t.Fatalf("PhaseType = %q, want %q", result.PhaseType, ContentOpenWorld)
	}
	if result.DisplayName != "OpenWorld 1" {
		t.Fatalf("DisplayName = %q, want %q", result.DisplayName, "OpenWorld 1")
	}
}

func TestPullCounterResetsOnAreaChange(t *testing.T) {
	counter := NewPullCounter()
	bosses := []rules.BossEntry{{ClassID: 42, Name: "Brontes", ContentType: string(ContentRaid)}}
	in := Input{FirstSeenNPCs: []int64{42}, BossDefs: bosses}

	first := Classify(in, counter)
	if first.DisplayName != "Brontes Pull 1" {
		t.Fatalf("DisplayName = %q, want Pull 1", first.DisplayName)
	}

	counter.ResetForArea(1)
	second := Classify(in, counter)
	if second.DisplayName != "Brontes Pull 1" {
		t.Fatalf("after area reset, DisplayName = %q, want Pull 1 again", second.DisplayName)
	}

	third := Classify(in, counter)
	if third.DisplayName != "Brontes Pull 2" {
		t.Fatalf("without a reset, DisplayName = %q, want Pull 2", third.DisplayName)
	}

	// ResetForArea is a no-op when the generation hasn't actually changed.
	counter.ResetForArea(1)
	fourth := Classify(in, counter)
	if fourth.DisplayName != "Brontes Pull 3" {
		t.Fatalf("redundant reset should not clear counts; got %q", fourth.DisplayName)
	}
}
