package eventproc

import (
	"combatlogd/internal/encounter"
	"combatlogd/internal/rules"
	"combatlogd/internal/signal"
)

// evaluatePhases implements the phase half of the fixed-point
// evaluation: for each candidate signal, walk the phases in definition
// order, checking the active phase's end trigger (closing it) and every
// other phase's start trigger, honoring preceded_by and an optional
// counter guard.
func (p *Processor) evaluatePhases(enc *encounter.Encounter, candidates []signal.Signal, resolve rules.EntityResolver) []signal.Signal {
	if p.current.RuleSet == nil {
		return nil
	}
	var out []signal.Signal
	for _, sig := range candidates {
		for _, ph := range p.current.RuleSet.Phases {
			if enc.Phase.ActivePhase == ph.ID {
				if ph.EndTrigger != nil && rules.EvaluateWith(*ph.EndTrigger, sig, resolve) {
					enc.Phase.PrecededBy = enc.Phase.ActivePhase
					enc.Phase.ActivePhase = ""
					out = append(out, signal.Signal{
						Kind: signal.KindPhaseEndTriggered, Timestamp: sig.Timestamp, EncounterID: enc.EncounterID,
						Payload: signal.PhaseEndTriggeredPayload{PhaseID: ph.ID},
					})
				}
				continue
			}
			// The most recent phase is the one still active, or, when an
			// end trigger already closed it, the one in PrecededBy. The
			// guard's required predecessor must match whichever applies.
			if ph.PrecededBy != "" {
				prev := enc.Phase.ActivePhase
				if prev == "" {
					prev = enc.Phase.PrecededBy
				}
				if ph.PrecededBy != prev {
					continue
				}
			}
			if ph.CounterGuard != nil && !counterGuardSatisfied(enc, *ph.CounterGuard) {
				continue
			}
			if !rules.EvaluateWith(ph.StartTrigger, sig, resolve) {
				continue
			}
			enc.Phase.PrecededBy = enc.Phase.ActivePhase
			enc.Phase.ActivePhase = ph.ID
			enc.Phase.LastPhaseTime = sig.Timestamp
			out = append(out, signal.Signal{
				Kind: signal.KindPhaseChanged, Timestamp: sig.Timestamp, EncounterID: enc.EncounterID,
				Payload: signal.PhaseChangedPayload{PhaseID: ph.ID},
			})
		}
	}
	return out
}

// counterGuardSatisfied evaluates a counter_condition guard against the
// encounter's current counter values rather than against a signal: guards
// describe a state to be in ("pulls == 2"), not an occurrence to react
// to. Only CounterReaches and its AllOf/AnyOf compositions are
// meaningful here; any other trigger kind imposes no constraint.
func counterGuardSatisfied(enc *encounter.Encounter, t rules.Trigger) bool {
	switch t.Kind {
	case rules.TriggerCounterReaches:
		return enc.Counters[t.CounterID] == t.Value
	case rules.TriggerNever:
		return false
	case rules.TriggerAllOf:
		for _, child := range t.Children {
			if !counterGuardSatisfied(enc, child) {
				return false
			}
		}
		return len(t.Children) > 0
	case rules.TriggerAnyOf:
		for _, child := range t.Children {
			if counterGuardSatisfied(enc, child) {
				return true
			}
		}
		return false
	default:
		return true
	}
}
