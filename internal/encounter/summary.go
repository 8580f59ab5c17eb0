package encounter

import "time"

// Summary is what survives after an encounter finalizes: a byte
// -identical-on-rerun snapshot of its metrics plus the classification
// fields computed externally by internal/classify.
type Summary struct {
	EncounterID     uint64
	EnterCombatTime time.Time
	ExitCombatTime  time.Time
	DurationSecs    float64
	Success         bool
	AllPlayersDead  bool
	DisplayName     string
	PhaseType       string
	BossName        string
	Metrics         map[int64]MetricAccumulator
}

// Finalize flushes pending shield absorptions, expires any still-active
// effects, and snapshots accumulated metrics into a Summary. Classifying
// the encounter (display name, phase type, boss name) is the caller's
// responsibility (internal/classify) since it needs the boss registry,
// which this package does not own.
func (e *Encounter) Finalize(displayName, phaseType, bossName string) Summary {
	at := e.ExitCombatTime
	e.ExpireEffectsOnEncounterEnd(at)
	e.FinalizePendingAbsorptions(at)

	metrics := make(map[int64]MetricAccumulator, len(e.Accumulated))
	for id, acc := range e.Accumulated {
		metrics[id] = *acc
	}

	return Summary{
		EncounterID:     e.EncounterID,
		EnterCombatTime: e.EnterCombatTime,
		ExitCombatTime:  e.ExitCombatTime,
		DurationSecs:    e.ExitCombatTime.Sub(e.EnterCombatTime).Seconds(),
		Success:         !e.AllPlayersDead,
		AllPlayersDead:  e.AllPlayersDead,
		DisplayName:     displayName,
		PhaseType:       phaseType,
		BossName:        bossName,
		Metrics:         metrics,
	}
}
