package encounter

// MetricAccumulator holds one entity's running totals for a single
// encounter.
type MetricAccumulator struct {
	DamageDealt          int64
	DamageDealtEffective int64
	DamageHitCount       int64
	DamageCritCount      int64

	DamageReceived          int64
	DamageReceivedEffective int64
	DamageAbsorbed          int64
	AttacksReceived         int64

	DefenseCount       int64
	ShieldRollCount    int64
	ShieldRollAbsorbed int64

	HealingDone      int64
	HealingEffective int64
	HealCount        int64
	HealCritCount    int64

	HealingReceived          int64
	HealingReceivedEffective int64

	ShieldingGiven int64

	Actions         int64
	ThreatGenerated float64
	TauntCount      int64
}

// DamageEvent is the subset of a CombatEvent's details relevant to
// ApplyDamage.
type DamageEvent struct {
	SourceID      int64
	TargetID      int64
	Amount        int64
	Effective     int64
	IsCrit        bool
	Absorbed      int64
	IsNaturalRoll bool  // defense_type_id-distinguished roll, not an effect shield
	IsDefenseOnly bool  // avoid-type present, no damage
}

// ApplyDamage updates source and target accumulators. Shield
// attribution for any absorbed amount is handled separately by the
// caller via OnDamageAbsorbed (shielding.go), since it needs visibility
// into the encounter's effect book, not just the two accumulators.
func (e *Encounter) ApplyDamage(ev DamageEvent) {
	source := e.accumulator(ev.SourceID)
	target := e.accumulator(ev.TargetID)

	if ev.IsDefenseOnly {
		target.DefenseCount++
		return
	}

	source.DamageDealt += ev.Amount
	source.DamageDealtEffective += ev.Effective
	source.DamageHitCount++
	if ev.IsCrit {
		source.DamageCritCount++
	}

	target.DamageReceived += ev.Amount
	target.DamageReceivedEffective += ev.Effective
	target.AttacksReceived++
	if ev.Absorbed > 0 {
		target.DamageAbsorbed += ev.Absorbed
	}

	if ev.IsNaturalRoll && ev.Absorbed > 0 {
		target.ShieldRollCount++
		target.ShieldRollAbsorbed += ev.Absorbed
	}
}

// HealEvent is the subset of a CombatEvent's details relevant to
// ApplyHealing.
type HealEvent struct {
	SourceID  int64
	TargetID  int64
	Amount    int64
	Effective int64
	IsCrit    bool
}

// ApplyHealing updates source and target accumulators. Effective healing
// is bounded by what was actually healed; the difference from Amount is
// overheal, derivable by subtraction rather than tracked.
func (e *Encounter) ApplyHealing(ev HealEvent) {
	source := e.accumulator(ev.SourceID)
	target := e.accumulator(ev.TargetID)

	source.HealingDone += ev.Amount
	source.HealingEffective += ev.Effective
	source.HealCount++
	if ev.IsCrit {
		source.HealCritCount++
	}

	target.HealingReceived += ev.Amount
	target.HealingReceivedEffective += ev.Effective
}

// ApplyThreat accumulates a source's generated threat (f32 on the wire,
// f64 in the accumulator).
func (e *Encounter) ApplyThreat(sourceID int64, threat float32) {
	e.accumulator(sourceID).ThreatGenerated += float64(threat)
}

// NoteAction increments the source's action count, used for generic
// ability-cast bookkeeping independent of damage/healing.
func (e *Encounter) NoteAction(sourceID int64) {
	e.accumulator(sourceID).Actions++
}
