package eventproc

import (
	"combatlogd/internal/encounter"
	"combatlogd/internal/rules"
	"combatlogd/internal/signal"
)

// evaluateCounters implements the counter half of rule evaluation: for each
// candidate signal, test every configured counter's increment/decrement/
// reset triggers and emit a CounterChanged signal whenever the value
// actually moves. Reset is checked last so a line that both increments
// and resets a counter in the same rule file (unusual, but not
// forbidden) lands on the reset value.
func (p *Processor) evaluateCounters(enc *encounter.Encounter, candidates []signal.Signal, resolve rules.EntityResolver) []signal.Signal {
	if p.current.RuleSet == nil {
		return nil
	}
	var out []signal.Signal
	for _, sig := range candidates {
		for _, c := range p.current.RuleSet.Counters {
			old, ok := enc.Counters[c.ID]
			if !ok {
				old = c.InitialValue
			}
			next := old
			changed := false

			if rules.EvaluateWith(c.IncrementOn, sig, resolve) {
				next++
				changed = true
			} else if c.DecrementOn != nil && rules.EvaluateWith(*c.DecrementOn, sig, resolve) {
				next--
				changed = true
			}
			if rules.EvaluateWith(c.EffectiveResetOn(), sig, resolve) {
				if c.SetValue != nil {
					next = *c.SetValue
				} else {
					next = c.InitialValue
				}
				changed = true
			}

			if !changed {
				continue
			}
			enc.Counters[c.ID] = next
			if next == old {
				continue
			}
			out = append(out, signal.Signal{
				Kind: signal.KindCounterChanged, Timestamp: sig.Timestamp, EncounterID: enc.EncounterID,
				Payload: signal.CounterChangedPayload{CounterID: c.ID, Old: int(old), New: int(next)},
			})
		}
	}
	return out
}
