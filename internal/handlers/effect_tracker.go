package handlers

import (
	"time"

	"combatlogd/internal/overlaydata"
	"combatlogd/internal/signal"
)

// NameResolver looks up the display name for an entity or effect id. It is
// injected at construction rather than captured implicitly, since a
// handler must never reach back into the interner or the encounter it
// reacts to.
type NameResolver func(id int64) string

type effectKey struct {
	effectID int64
	targetID int64
}

type activeEffect struct {
	effectID  int64
	sourceID  int64
	targetID  int64
	appliedAt time.Time
	isShield  bool
}

// EffectTracker owns the live "what buffs/debuffs are on the raid right
// now" view, rebuilt by the caller whenever the active rule set changes,
// like TimerManager. It reacts only to EffectApplied/EffectRemoved signals.
type EffectTracker struct {
	entityName NameResolver
	effectName NameResolver
	combatRef  time.Time
	active     map[effectKey]*activeEffect
}

// NewEffectTracker builds a tracker that resolves display names through
// the provided resolvers. combatRef is the encounter's EnterCombatTime,
// used to compute EffectRow.AppliedAt as combat-relative seconds.
func NewEffectTracker(entityName, effectName NameResolver, combatRef time.Time) *EffectTracker {
	return &EffectTracker{
		entityName: entityName,
		effectName: effectName,
		combatRef:  combatRef,
		active:     make(map[effectKey]*activeEffect),
	}
}

// OnSignal updates the active-effect set from sig. It produces no
// further signals; effect tracking is purely observational overlay
// state, unlike TimerManager which can chain new timers.
func (t *EffectTracker) OnSignal(sig signal.Signal) {
	switch p := sig.Payload.(type) {
	case signal.EffectAppliedPayload:
		key := effectKey{effectID: p.EffectID, targetID: p.TargetID}
		t.active[key] = &activeEffect{
			effectID: p.EffectID, sourceID: p.SourceID, targetID: p.TargetID,
			appliedAt: sig.Timestamp, isShield: p.IsShield,
		}
	case signal.EffectRemovedPayload:
		key := effectKey{effectID: p.EffectID, targetID: p.TargetID}
		delete(t.active, key)
	}
}

// Rows renders the current active-effect set as overlay rows, sorted by
// (target name, effect name) for stable display ordering.
func (t *EffectTracker) Rows() []overlaydata.EffectRow {
	rows := make([]overlaydata.EffectRow, 0, len(t.active))
	for _, e := range t.active {
		rows = append(rows, overlaydata.EffectRow{
			EffectID:   e.effectID,
			Name:       t.effectName(e.effectID),
			TargetID:   e.targetID,
			TargetName: t.entityName(e.targetID),
			AppliedAt:  e.appliedAt.Sub(t.combatRef).Seconds(),
			IsShield:   e.isShield,
		})
	}
	sortEffectRows(rows)
	return rows
}

func sortEffectRows(rows []overlaydata.EffectRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			a, b := rows[j-1], rows[j]
			if a.TargetName < b.TargetName || (a.TargetName == b.TargetName && a.Name <= b.Name) {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
}
