package rules

import (
	"os"
	"path/filepath"
	"testing"

	"combatlogd/internal/signal"
)

const sampleYAML = `
shield_effects: [9001, 9002]
bosses:
  - class_id: 500
    name: "Tideworn Devourer"
    content_type: "Raid"
entity_aliases:
  tank: [100, 101]
timers:
  - id: shield-wall
    name: "Shield Wall"
    enabled: true
    duration_secs: 8
    can_be_refreshed: false
    repeats: true
    trigger:
      kind: AbilityCast
      ability_ids: [777]
phases:
  - id: p2
    name: "Phase 2"
    start_trigger:
      kind: BossHpBelow
      percent: 50
counters:
  - id: stacks
    name: "Stacks"
    increment_on:
      kind: EffectApplied
      effect_ids: [9001]
    decrement_on:
      kind: EffectRemoved
      effect_ids: [9001]
    initial_value: 0
`

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp yaml: %v", err)
	}
	return path
}

func TestLoadFileParsesAllSections(t *testing.T) {
	path := writeTempYAML(t, sampleYAML)

	rs, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if len(rs.Timers) != 1 || rs.Timers[0].ID != "shield-wall" {
		t.Fatalf("timers = %+v", rs.Timers)
	}
	if !rs.Timers[0].Repeats || rs.Timers[0].CanBeRefreshed {
		t.Fatalf("timer flags not parsed correctly: %+v", rs.Timers[0])
	}
	if len(rs.Phases) != 1 || rs.Phases[0].StartTrigger.Kind != TriggerBossHpBelow {
		t.Fatalf("phases = %+v", rs.Phases)
	}
	if len(rs.Counters) != 1 || rs.Counters[0].DecrementOn == nil {
		t.Fatalf("counters = %+v", rs.Counters)
	}
	if got := rs.Counters[0].EffectiveResetOn(); got.Kind != TriggerCombatEnd {
		t.Fatalf("expected default reset-on CombatEnd, got %+v", got)
	}
	if ids, ok := rs.EntityAliases["tank"]; !ok || len(ids) != 2 {
		t.Fatalf("entity_aliases[tank] = %+v", rs.EntityAliases["tank"])
	}
}

func TestLoadFileMissingFile(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestShieldSetAndBossClassIDs(t *testing.T) {
	rs, err := LoadFile(writeTempYAML(t, sampleYAML))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	shields := rs.ShieldSet()
	if !shields[9001] || !shields[9002] || shields[1] {
		t.Fatalf("ShieldSet() = %+v", shields)
	}

	bosses := rs.BossClassIDs()
	entry, ok := bosses[500]
	if !ok || entry.Name != "Tideworn Devourer" || entry.ContentType != "Raid" {
		t.Fatalf("BossClassIDs()[500] = %+v, ok=%v", entry, ok)
	}
}

func TestEvaluateSimpleTriggers(t *testing.T) {
	cases := []struct {
		name string
		t    Trigger
		sig  signal.Signal
		want bool
	}{
		{
			name: "combat start matches",
			t:    Trigger{Kind: TriggerCombatStart},
			sig:  signal.Signal{Kind: signal.KindCombatStarted},
			want: true,
		},
		{
			name: "combat start does not match combat end",
			t:    Trigger{Kind: TriggerCombatStart},
			sig:  signal.Signal{Kind: signal.KindCombatEnded},
			want: false,
		},
		{
			name: "boss hp below threshold crossed",
			t:    Trigger{Kind: TriggerBossHpBelow, Percent: 50},
			sig: signal.Signal{
				Kind:    signal.KindBossHpChanged,
				Payload: signal.BossHpChangedPayload{EntityID: 500, OldPercent: 51, NewPercent: 49},
			},
			want: true,
		},
		{
			name: "boss hp still above threshold",
			t:    Trigger{Kind: TriggerBossHpBelow, Percent: 50},
			sig: signal.Signal{
				Kind:    signal.KindBossHpChanged,
				Payload: signal.BossHpChangedPayload{EntityID: 500, OldPercent: 80, NewPercent: 70},
			},
			want: false,
		},
		{
			name: "ability cast with empty id list matches anything",
			t:    Trigger{Kind: TriggerAbilityCast},
			sig: signal.Signal{
				Kind:    signal.KindAbilityActivated,
				Payload: signal.AbilityActivatedPayload{AbilityID: 42, SourceID: 1},
			},
			want: true,
		},
		{
			name: "ability cast with explicit id list excludes mismatch",
			t:    Trigger{Kind: TriggerAbilityCast, AbilityIDs: []int64{777}},
			sig: signal.Signal{
				Kind:    signal.KindAbilityActivated,
				Payload: signal.AbilityActivatedPayload{AbilityID: 42, SourceID: 1},
			},
			want: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Evaluate(tc.t, tc.sig); got != tc.want {
				t.Fatalf("Evaluate() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestEvaluateAllOfAndAnyOf(t *testing.T) {
	allOf := Trigger{
		Kind: TriggerAllOf,
		Children: []Trigger{
			{Kind: TriggerCombatStart},
			{Kind: TriggerCombatEnd},
		},
	}
	if Evaluate(allOf, signal.Signal{Kind: signal.KindCombatStarted}) {
		t.Fatalf("AllOf with an unsatisfied child should not match a single signal")
	}

	anyOf := Trigger{
		Kind: TriggerAnyOf,
		Children: []Trigger{
			{Kind: TriggerCombatStart},
			{Kind: TriggerCombatEnd},
		},
	}
	if !Evaluate(anyOf, signal.Signal{Kind: signal.KindCombatEnded}) {
		t.Fatalf("AnyOf should match when any child matches")
	}

	if Evaluate(Trigger{Kind: TriggerAllOf}, signal.Signal{Kind: signal.KindCombatStarted}) {
		t.Fatalf("AllOf with no children should never match")
	}
}

func TestMatchFilter(t *testing.T) {
	localPlayer := FilterContext{EntityID: 1, IsPlayer: true, IsLocalPlayer: true}
	otherPlayer := FilterContext{EntityID: 2, IsPlayer: true}
	boss := FilterContext{EntityID: 500, IsNpc: true, IsBoss: true}

	localFilter := &EntityFilter{Kind: FilterLocalPlayer}
	if !MatchFilter(localFilter, localPlayer) {
		t.Fatalf("expected local player to match FilterLocalPlayer")
	}
	if MatchFilter(localFilter, otherPlayer) {
		t.Fatalf("expected other player to not match FilterLocalPlayer")
	}

	if !MatchFilter(&EntityFilter{Kind: FilterBoss}, boss) {
		t.Fatalf("expected boss to match FilterBoss")
	}
	if MatchFilter(nil, otherPlayer) != true {
		t.Fatalf("a nil filter must match everything")
	}

	byName := &EntityFilter{Kind: FilterSelector, Selector: []SelectorItem{{Name: strPtr("Thogun")}}}
	ctx := FilterContext{EntityID: 9, Name: "Thogun"}
	if !MatchFilter(byName, ctx) {
		t.Fatalf("expected case-insensitive name match to succeed")
	}
}

func strPtr(s string) *string { return &s }

func TestEvaluateWithSourceAndTargetFilters(t *testing.T) {
	resolve := func(id int64) FilterContext {
		return FilterContext{EntityID: id, IsPlayer: id < 100, IsNpc: id >= 100, IsLocalPlayer: id == 1}
	}

	cast := Trigger{Kind: TriggerAbilityCast, AbilityIDs: []int64{77},
		SourceFilter: &EntityFilter{Kind: FilterLocalPlayer}}
	localCast := signal.Signal{Kind: signal.KindAbilityActivated,
		Payload: signal.AbilityActivatedPayload{AbilityID: 77, SourceID: 1}}
	otherCast := signal.Signal{Kind: signal.KindAbilityActivated,
		Payload: signal.AbilityActivatedPayload{AbilityID: 77, SourceID: 2}}

	if !EvaluateWith(cast, localCast, resolve) {
		t.Fatalf("local player's cast should satisfy the source filter")
	}
	if EvaluateWith(cast, otherCast, resolve) {
		t.Fatalf("another player's cast should not satisfy the source filter")
	}
	if !EvaluateWith(cast, otherCast, nil) {
		t.Fatalf("with no resolver the filter imposes no constraint")
	}

	applied := Trigger{Kind: TriggerEffectApplied, EffectIDs: []int64{900},
		TargetFilter: &EntityFilter{Kind: FilterAnyNpc}}
	onNpc := signal.Signal{Kind: signal.KindEffectApplied,
		Payload: signal.EffectAppliedPayload{EffectID: 900, SourceID: 1, TargetID: 500}}
	onPlayer := signal.Signal{Kind: signal.KindEffectApplied,
		Payload: signal.EffectAppliedPayload{EffectID: 900, SourceID: 1, TargetID: 2}}

	if !EvaluateWith(applied, onNpc, resolve) {
		t.Fatalf("an NPC target should satisfy the AnyNpc target filter")
	}
	if EvaluateWith(applied, onPlayer, resolve) {
		t.Fatalf("a player target should not satisfy the AnyNpc target filter")
	}
}

func TestEvaluateWithThreadsResolverThroughComposites(t *testing.T) {
	resolve := func(id int64) FilterContext {
		return FilterContext{EntityID: id, IsPlayer: true, IsLocalPlayer: id == 1}
	}
	composite := Trigger{Kind: TriggerAnyOf, Children: []Trigger{
		{Kind: TriggerCombatEnd},
		{Kind: TriggerAbilityCast, AbilityIDs: []int64{5},
			SourceFilter: &EntityFilter{Kind: FilterLocalPlayer}},
	}}
	otherCast := signal.Signal{Kind: signal.KindAbilityActivated,
		Payload: signal.AbilityActivatedPayload{AbilityID: 5, SourceID: 9}}
	localCast := signal.Signal{Kind: signal.KindAbilityActivated,
		Payload: signal.AbilityActivatedPayload{AbilityID: 5, SourceID: 1}}

	if EvaluateWith(composite, otherCast, resolve) {
		t.Fatalf("the composite's filtered child should reject a non-local source")
	}
	if !EvaluateWith(composite, localCast, resolve) {
		t.Fatalf("the composite's filtered child should accept the local source")
	}
}
