package encounter

import "time"

// PendingAbsorption is an absorbed-damage amount whose attributable
// shield could not be determined at the time the damage event arrived
// (two or more shields were simultaneously active on the target). It is
// resolved when one of those shields is later removed, or swept up at
// encounter finalization.
type PendingAbsorption struct {
	Timestamp time.Time
	Absorbed  int64
}

// OnDamageAbsorbed attributes an absorbed-damage
// amount on targetID at time ts to whichever shield caused it.
//
// It returns the source credited, or 0 if the amount was deferred to
// pending[T] (N>=2 active shields) or silently dropped (N=0 and no
// shield on the target closed within GraceWindowOtherActive before ts).
func (e *Encounter) OnDamageAbsorbed(targetID, absorbed, dmgEffective int64, ts time.Time) int64 {
	if absorbed <= 0 {
		return 0
	}

	var active []*EffectInstance
	for _, inst := range e.Effects[targetID] {
		if inst.IsShield && !inst.HasAbsorbed && inst.AppliedAt.Before(ts) && inst.ActiveAt(ts) {
			active = append(active, inst)
		}
	}

	switch len(active) {
	case 0:
		if closed := e.recentlyClosedShield(targetID, ts); closed != nil {
			e.accumulator(closed.SourceID).ShieldingGiven += absorbed
			return closed.SourceID
		}
		return 0 // no shield closed on this target within the grace window; unattributable remnant, dropped by design.

	case 1:
		shield := active[0]
		e.accumulator(shield.SourceID).ShieldingGiven += absorbed
		if !shield.Active() && dmgEffective > 0 {
			shield.HasAbsorbed = true
		}
		return shield.SourceID

	default:
		e.Pending[targetID] = append(e.Pending[targetID], PendingAbsorption{Timestamp: ts, Absorbed: absorbed})
		return 0
	}
}

// recentlyClosedShield finds the shield on targetID whose RemovedAt falls
// within GraceWindowOtherActive before ts (the "inside" grace window for
// the N=0 case).
func (e *Encounter) recentlyClosedShield(targetID int64, ts time.Time) *EffectInstance {
	var best *EffectInstance
	for _, inst := range e.Effects[targetID] {
		if !inst.IsShield || inst.Active() {
			continue
		}
		if inst.RemovedAt.After(ts) {
			continue
		}
		if ts.Sub(inst.RemovedAt) > GraceWindowOtherActive {
			continue
		}
		if best == nil || inst.RemovedAt.After(best.RemovedAt) {
			best = inst
		}
	}
	return best
}

// OnShieldRemoved: when removedShield closes on
// targetID at ts, resolve any pending absorptions whose timestamp is at
// or before ts, or within the applicable grace window after it. The
// grace window is short (500ms) if another shield remains active on the
// target, long (3000ms) otherwise: a lone shield closing is the last
// plausible explanation for absorption the target shows soon after.
func (e *Encounter) OnShieldRemoved(removedShield *EffectInstance, ts time.Time) {
	targetID := removedShield.TargetID
	pending := e.Pending[targetID]
	if len(pending) == 0 {
		return
	}

	otherActive := len(e.ActiveShields(targetID, ts)) > 0
	grace := GraceWindowAloneActive
	if otherActive {
		grace = GraceWindowOtherActive
	}

	var resolved, kept []PendingAbsorption
	var sum int64
	for _, p := range pending {
		if !p.Timestamp.After(ts) || p.Timestamp.Sub(ts) <= grace {
			resolved = append(resolved, p)
			sum += p.Absorbed
		} else {
			kept = append(kept, p)
		}
	}
	if sum > 0 {
		e.accumulator(removedShield.SourceID).ShieldingGiven += sum
	}
	if len(kept) == 0 {
		delete(e.Pending, targetID)
	} else {
		e.Pending[targetID] = kept
	}
}

// FinalizePendingAbsorptions: at encounter end,
// attribute every target's remaining pending sum to that target's most
// recently removed shield. Targets with pending absorptions but no
// removed shield on record have their remainder silently dropped, the
// "no source ever seen" remnant.
func (e *Encounter) FinalizePendingAbsorptions(at time.Time) {
	for targetID, pending := range e.Pending {
		if len(pending) == 0 {
			continue
		}
		var sum int64
		for _, p := range pending {
			sum += p.Absorbed
		}
		if shield := e.MostRecentlyRemovedShield(targetID, at); shield != nil && sum > 0 {
			e.accumulator(shield.SourceID).ShieldingGiven += sum
		}
		delete(e.Pending, targetID)
	}
}
