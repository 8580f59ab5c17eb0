package eventproc

import (
	"context"
	"testing"
	"time"

	"combatlogd/internal/istr"
	"combatlogd/internal/logline"
	"combatlogd/internal/rules"
	"combatlogd/internal/session"
	"combatlogd/internal/signal"
)

func castEvent(in *istr.Interner, at time.Time, abilityID int64, source, target logline.Entity) logline.CombatEvent {
	ev := newEvent(in, at, "Cast", source, target)
	ev.Action.ID = abilityID
	return ev
}

func phaseRuleLoader(rs *rules.RuleSet) AreaRuleLoader {
	return func(areaID int64, areaName string) AreaRules {
		return AreaRules{RuleSet: rs}
	}
}

func enterCombatAt(t *testing.T, in *istr.Interner, p *Processor, cache *session.Cache, at time.Time, who logline.Entity) {
	t.Helper()
	area := newEvent(in, at, logline.ActionAreaEntered, who, logline.Entity{Name: in.Intern("Arena"), ClassID: 7, Type: logline.EntityEmpty})
	p.Process(context.Background(), cache, area)
	combat := newEvent(in, at, logline.ActionEnterCombat, who, who)
	p.Process(context.Background(), cache, combat)
}

// TestPhasePrecededByStillActivePredecessor walks an out-of-order cast
// stream through two phases where the second requires the first as its
// predecessor: the gating cast before the predecessor ever ran must not
// activate anything, and the same cast while the predecessor is still
// the active phase must.
func TestPhasePrecededByStillActivePredecessor(t *testing.T) {
	rs := &rules.RuleSet{Phases: []rules.PhaseDefinition{
		{ID: "K1", Name: "Kephess", StartTrigger: rules.Trigger{Kind: rules.TriggerAbilityCast, AbilityIDs: []int64{101}}},
		{ID: "W2", Name: "Walkers", PrecededBy: "K1", StartTrigger: rules.Trigger{Kind: rules.TriggerAbilityCast, AbilityIDs: []int64{202}}},
	}}

	in := istr.New()
	cache := session.NewCache()
	p := New(in, "session-1", phaseRuleLoader(rs), nil, nil, nil)
	now := time.Now()

	tank := player(in, 1, "Tank")
	boss := npc(in, 500, 42, "Kephess")
	enterCombatAt(t, in, p, cache, now, tank)
	enc := cache.Current()

	p.Process(context.Background(), cache, castEvent(in, now.Add(time.Second), 202, tank, boss))
	if enc.Phase.ActivePhase != "" {
		t.Fatalf("W2's cast before K1 ever ran activated phase %q, want none", enc.Phase.ActivePhase)
	}

	p.Process(context.Background(), cache, castEvent(in, now.Add(2*time.Second), 101, tank, boss))
	if enc.Phase.ActivePhase != "K1" {
		t.Fatalf("active phase = %q after K1's cast, want K1", enc.Phase.ActivePhase)
	}

	sigs := p.Process(context.Background(), cache, castEvent(in, now.Add(3*time.Second), 202, tank, boss))
	if enc.Phase.ActivePhase != "W2" {
		t.Fatalf("active phase = %q after W2's cast with K1 active, want W2", enc.Phase.ActivePhase)
	}
	var sawW2 bool
	for _, s := range sigs {
		if s.Kind == signal.KindPhaseChanged {
			if pay, ok := s.Payload.(signal.PhaseChangedPayload); ok && pay.PhaseID == "W2" {
				sawW2 = true
			}
		}
	}
	if !sawW2 {
		t.Fatalf("expected a PhaseChanged{W2} signal among %+v", sigs)
	}
}

// TestPhasePrecededByClosedPredecessor covers the other leg of the
// guard: the predecessor's end trigger already closed it, so the
// requirement is satisfied through the recorded previous phase rather
// than the active one.
func TestPhasePrecededByClosedPredecessor(t *testing.T) {
	end := rules.Trigger{Kind: rules.TriggerAbilityCast, AbilityIDs: []int64{150}}
	rs := &rules.RuleSet{Phases: []rules.PhaseDefinition{
		{ID: "K1", StartTrigger: rules.Trigger{Kind: rules.TriggerAbilityCast, AbilityIDs: []int64{101}}, EndTrigger: &end},
		{ID: "W2", PrecededBy: "K1", StartTrigger: rules.Trigger{Kind: rules.TriggerAbilityCast, AbilityIDs: []int64{202}}},
	}}

	in := istr.New()
	cache := session.NewCache()
	p := New(in, "session-1", phaseRuleLoader(rs), nil, nil, nil)
	now := time.Now()

	tank := player(in, 1, "Tank")
	boss := npc(in, 500, 42, "Kephess")
	enterCombatAt(t, in, p, cache, now, tank)
	enc := cache.Current()

	p.Process(context.Background(), cache, castEvent(in, now.Add(time.Second), 101, tank, boss))
	p.Process(context.Background(), cache, castEvent(in, now.Add(2*time.Second), 150, tank, boss))
	if enc.Phase.ActivePhase != "" || enc.Phase.PrecededBy != "K1" {
		t.Fatalf("after K1's end trigger: active=%q preceded=%q, want \"\"/K1", enc.Phase.ActivePhase, enc.Phase.PrecededBy)
	}

	p.Process(context.Background(), cache, castEvent(in, now.Add(3*time.Second), 202, tank, boss))
	if enc.Phase.ActivePhase != "W2" {
		t.Fatalf("active phase = %q after W2's cast with K1 closed, want W2", enc.Phase.ActivePhase)
	}
}

// TestPhaseStartTriggerSourceFilter pins the filter wiring end to end:
// a start trigger guarded by a LocalPlayer source filter ignores the
// same cast from anyone else.
func TestPhaseStartTriggerSourceFilter(t *testing.T) {
	rs := &rules.RuleSet{Phases: []rules.PhaseDefinition{
		{ID: "P1", StartTrigger: rules.Trigger{
			Kind:         rules.TriggerAbilityCast,
			AbilityIDs:   []int64{303},
			SourceFilter: &rules.EntityFilter{Kind: rules.FilterLocalPlayer},
		}},
	}}

	in := istr.New()
	cache := session.NewCache()
	cache.Player.LogID = 1
	cache.PlayerInitialized = true
	p := New(in, "session-1", phaseRuleLoader(rs), nil, nil, nil)
	now := time.Now()

	local := player(in, 1, "Me")
	other := player(in, 2, "Stranger")
	boss := npc(in, 500, 42, "Kephess")
	enterCombatAt(t, in, p, cache, now, local)
	enc := cache.Current()

	p.Process(context.Background(), cache, castEvent(in, now.Add(time.Second), 303, other, boss))
	if enc.Phase.ActivePhase != "" {
		t.Fatalf("a stranger's cast activated phase %q despite the LocalPlayer source filter", enc.Phase.ActivePhase)
	}

	p.Process(context.Background(), cache, castEvent(in, now.Add(2*time.Second), 303, local, boss))
	if enc.Phase.ActivePhase != "P1" {
		t.Fatalf("active phase = %q after the local player's cast, want P1", enc.Phase.ActivePhase)
	}
}
