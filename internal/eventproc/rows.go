package eventproc

import (
	"time"

	"combatlogd/internal/encounter"
	"combatlogd/internal/logline"
)

// RowEvent is one flattened combat line, shaped for columnar
// persistence. It carries only scalar fields so it maps directly onto a
// parquet row group without an intermediate reflection step. PhaseID,
// PhaseName and CombatTimeSecs are derived at flatten time from the
// encounter's state at the moment of the event, not stored on the event
// itself.
type RowEvent struct {
	EncounterID    uint64
	LineNumber     uint64
	Timestamp      time.Time
	SourceID       int64
	TargetID       int64
	ActionID       int64
	EffectID       int64
	DmgAmount      int64
	DmgEffective   int64
	DmgAbsorbed    int64
	HealAmount     int64
	HealEffective  int64
	IsCrit         bool
	PhaseID        string
	CombatTimeSecs float64
}

// NewRowEvent flattens ev into a RowEvent, tagging it with enc's id (0 if
// no encounter is open, e.g. a pre-combat area line), the phase active at
// the time of the event, and the elapsed combat time. PhaseID is the
// rule file's phase id (rules.PhaseDefinition.ID); resolving it to a
// display name requires the loaded RuleSet, which the columnar writer
// does separately at finalization rather than here.
func NewRowEvent(ev logline.CombatEvent, enc *encounter.Encounter) RowEvent {
	var encounterID uint64
	var phaseID string
	var combatTimeSecs float64
	if enc != nil {
		encounterID = enc.EncounterID
		phaseID = enc.Phase.ActivePhase
		if !enc.EnterCombatTime.IsZero() {
			combatTimeSecs = ev.Timestamp.Sub(enc.EnterCombatTime).Seconds()
		}
	}
	return RowEvent{
		EncounterID:    encounterID,
		LineNumber:     ev.LineNumber,
		Timestamp:      ev.Timestamp,
		SourceID:       ev.Source.LogID,
		TargetID:       ev.Target.LogID,
		ActionID:       ev.Action.ID,
		EffectID:       ev.Effect.EffectID,
		DmgAmount:      ev.Details.DmgAmount,
		DmgEffective:   ev.Details.DmgEffective,
		DmgAbsorbed:    ev.Details.DmgAbsorbed,
		HealAmount:     ev.Details.HealAmount,
		HealEffective:  ev.Details.HealEffective,
		IsCrit:         ev.Details.IsCrit,
		PhaseID:        phaseID,
		CombatTimeSecs: combatTimeSecs,
	}
}
