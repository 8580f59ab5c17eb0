package eventproc

import (
	"context"
	"testing"
	"time"

	"combatlogd/internal/encounter"
	"combatlogd/internal/istr"
	"combatlogd/internal/logline"
	"combatlogd/internal/session"
	"combatlogd/internal/signal"
)

func newEvent(in *istr.Interner, at time.Time, action string, source, target logline.Entity) logline.CombatEvent {
	return logline.CombatEvent{
		Timestamp: at,
		Source:    source,
		Target:    target,
		Action:    logline.Action{Name: in.Intern(action)},
	}
}

func player(in *istr.Interner, logID int64, name string) logline.Entity {
	return logline.Entity{Name: in.Intern(name), LogID: logID, Type: logline.EntityPlayer, HealthCur: 100, HealthMax: 100}
}

func npc(in *istr.Interner, logID, classID int64, name string) logline.Entity {
	return logline.Entity{Name: in.Intern(name), LogID: logID, ClassID: classID, Type: logline.EntityNpc, HealthCur: 1000, HealthMax: 1000}
}

func TestProcessorAreaEnterCombatAndAbilityCast(t *testing.T) {
	in := istr.New()
	cache := session.NewCache()
	p := New(in, "session-1", nil, nil, nil, nil)
	now := time.Now()

	boss := npc(in, 500, 42, "Brontes")
	tank := player(in, 1, "Tank")

	areaEv := newEvent(in, now, logline.ActionAreaEntered, tank, logline.Entity{Name: in.Intern("Dread Fortress"), ClassID: 9001, Type: logline.EntityEmpty})
	sigs := p.Process(context.Background(), cache, areaEv)
	if len(sigs) != 1 || sigs[0].Kind != signal.KindAreaEntered {
		t.Fatalf("expected one AreaEntered signal, got %+v", sigs)
	}

	combatEv := newEvent(in, now.Add(time.Second), logline.ActionEnterCombat, tank, tank)
	sigs = p.Process(context.Background(), cache, combatEv)
	if len(sigs) != 1 || sigs[0].Kind != signal.KindCombatStarted {
		t.Fatalf("expected one CombatStarted signal, got %+v", sigs)
	}
	if cache.Current() == nil {
		t.Fatal("expected an active encounter after EnterCombat")
	}

	castEv := newEvent(in, now.Add(2*time.Second), "Force Lightning", tank, boss)
	castEv.Action.ID = 700
	castEv.Details.DmgAmount = 500
	castEv.Details.DmgEffective = 500
	sigs = p.Process(context.Background(), cache, castEv)

	var sawAbility bool
	for _, s := range sigs {
		if s.Kind == signal.KindAbilityActivated {
			sawAbility = true
			payload, ok := s.Payload.(signal.AbilityActivatedPayload)
			if !ok || payload.AbilityID != 700 || payload.SourceID != 1 {
				t.Fatalf("unexpected AbilityActivated payload: %+v", s.Payload)
			}
		}
	}
	if !sawAbility {
		t.Fatalf("expected an AbilityActivated signal among %+v", sigs)
	}

	exitEv := newEvent(in, now.Add(3*time.Second), logline.ActionExitCombat, tank, tank)
	sigs = p.Process(context.Background(), cache, exitEv)
	if len(sigs) != 1 || sigs[0].Kind != signal.KindCombatEnded {
		t.Fatalf("expected one CombatEnded signal, got %+v", sigs)
	}
	if cache.Current().State() != encounter.Ended {
		t.Fatalf("expected the encounter to be Ended after ExitCombat, got %v", cache.Current().State())
	}
}

func TestProcessorApplyAndRemoveEffect(t *testing.T) {
	in := istr.New()
	cache := session.NewCache()
	p := New(in, "session-1", nil, nil, nil, nil)
	now := time.Now()

	tank := player(in, 1, "Tank")
	cache.EnterArea(1, "Area", 0, "", now)
	p.Process(context.Background(), cache, newEvent(in, now, logline.ActionEnterCombat, tank, tank))

	applyEv := newEvent(in, now.Add(time.Second), logline.ActionApplyEffect, tank, tank)
	applyEv.Effect.EffectID = 900
	sigs := p.Process(context.Background(), cache, applyEv)
	if len(sigs) != 1 || sigs[0].Kind != signal.KindEffectApplied {
		t.Fatalf("expected EffectApplied, got %+v", sigs)
	}

	removeEv := newEvent(in, now.Add(2*time.Second), logline.ActionRemoveEffect, tank, tank)
	removeEv.Effect.EffectID = 900
	sigs = p.Process(context.Background(), cache, removeEv)
	if len(sigs) != 1 || sigs[0].Kind != signal.KindEffectRemoved {
		t.Fatalf("expected EffectRemoved, got %+v", sigs)
	}
}

func TestProcessorPersistsOnFinalize(t *testing.T) {
	in := istr.New()
	cache := session.NewCache()
	now := time.Now()

	var persistedSessionID string
	var persistedSummary encounter.Summary
	var persistedRows int
	persist := func(sessionID string, summary encounter.Summary, events []RowEvent) {
		persistedSessionID = sessionID
		persistedSummary = summary
		persistedRows = len(events)
	}
	p := New(in, "session-42", nil, persist, nil, nil)

	tank := player(in, 1, "Tank")
	boss := npc(in, 500, 42, "Brontes")
	cache.EnterArea(1, "Dread Fortress", 0, "", now)
	p.Process(context.Background(), cache, newEvent(in, now, logline.ActionEnterCombat, tank, tank))

	castEv := newEvent(in, now.Add(time.Second), "Force Lightning", tank, boss)
	castEv.Action.ID = 700
	castEv.Details.DmgAmount = 200
	castEv.Details.DmgEffective = 200
	p.Process(context.Background(), cache, castEv)

	p.Process(context.Background(), cache, newEvent(in, now.Add(2*time.Second), logline.ActionExitCombat, tank, tank))

	if persistedSessionID != "session-42" {
		t.Fatalf("persist called with sessionID %q, want session-42", persistedSessionID)
	}
	if persistedSummary.EncounterID == 0 || persistedSummary.DisplayName == "" {
		t.Fatalf("expected a finalized summary with an id and display name, got %+v", persistedSummary)
	}
	if persistedRows != 1 {
		t.Fatalf("expected 1 buffered row event (the ability cast), got %d", persistedRows)
	}
}
