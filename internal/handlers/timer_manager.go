// Package handlers implements the signal-handler capability:
// stateful consumers that react to one signal.Signal at a time, own their
// private state, and never call back into the event processor or each
// other. Each handler drives its own state machine from the loaded rule
// tables and emits further signal.Signal values rather than mutating
// shared state directly.
package handlers

import (
	"strconv"
	"time"

	"combatlogd/internal/rules"
	"combatlogd/internal/signal"
)

// TimerState is one state of the per-(definition,key) timer state
// machine: Idle -> Armed -> Running -> (Alerting?) ->
// Expired -> (Chain).
type TimerState int

const (
	TimerIdle TimerState = iota
	TimerArmed
	TimerRunning
	TimerAlerting
	TimerExpired
)

func (s TimerState) String() string {
	switch s {
	case TimerIdle:
		return "Idle"
	case TimerArmed:
		return "Armed"
	case TimerRunning:
		return "Running"
	case TimerAlerting:
		return "Alerting"
	case TimerExpired:
		return "Expired"
	default:
		return "Unknown"
	}
}

// TimerInstance is one running (definition, key) pair.
type TimerInstance struct {
	DefinitionID string
	Key          string
	State        TimerState
	StartedAt    time.Time
	ExpiresAt    time.Time
	Alerted      bool
	RunCount     int
}

type instanceKey struct {
	definitionID string
	key          string
}

// TimerManager owns every active TimerInstance for one rule set. It is
// rebuilt by the caller whenever the active rule set changes; it holds no reference
// back to the processor or the encounter itself,
type TimerManager struct {
	ruleSet   *rules.RuleSet
	resolve   rules.EntityResolver
	instances map[instanceKey]*TimerInstance
}

// NewTimerManager builds a manager bound to one loaded rule set. resolve
// backs the source/target filters on timer definitions and their
// triggers; nil leaves those filters unconstrained.
func NewTimerManager(rs *rules.RuleSet, resolve rules.EntityResolver) *TimerManager {
	return &TimerManager{ruleSet: rs, resolve: resolve, instances: make(map[instanceKey]*TimerInstance)}
}

// Instances returns a snapshot of all live (non-Idle) timer instances,
// sorted by (definitionID, key) for deterministic overlay rendering.
func (m *TimerManager) Instances() []TimerInstance {
	out := make([]TimerInstance, 0, len(m.instances))
	for _, inst := range m.instances {
		out = append(out, *inst)
	}
	sortInstances(out)
	return out
}

// OnSignal evaluates every enabled timer definition's trigger against sig,
// arming/starting/chaining instances as needed, and returns the
// TimerStarted signals produced. Because a TimerStarted can itself satisfy
// another timer's TimerStarts trigger, this runs to a fixed point within the
// call: freshly produced signals are fed back in until no new timer
// reacts, mirroring the processor's counter fixed-point rule.
func (m *TimerManager) OnSignal(sig signal.Signal, now time.Time) []signal.Signal {
	var produced []signal.Signal
	pending := []signal.Signal{sig}

	for len(pending) > 0 {
		current := pending[0]
		pending = pending[1:]

		fresh := m.reactToOne(current, now)
		if len(fresh) == 0 {
			continue
		}
		produced = append(produced, fresh...)
		pending = append(pending, fresh...)
	}
	return produced
}

func (m *TimerManager) reactToOne(sig signal.Signal, now time.Time) []signal.Signal {
	var out []signal.Signal
	for i := range m.ruleSet.Timers {
		def := &m.ruleSet.Timers[i]
		if !def.Enabled {
			continue
		}
		if !rules.EvaluateWith(def.Trigger, sig, m.resolve) {
			continue
		}
		if !m.entitiesMatch(def, sig) {
			continue
		}
		out = append(out, m.startOrRefresh(def, sig, now)...)
	}
	return out
}

func (m *TimerManager) startOrRefresh(def *rules.TimerDefinition, sig signal.Signal, now time.Time) []signal.Signal {
	key := deriveKey(sig)
	ik := instanceKey{definitionID: def.ID, key: key}
	inst, exists := m.instances[ik]

	if exists && (inst.State == TimerRunning || inst.State == TimerAlerting) {
		if !def.CanBeRefreshed {
			return nil
		}
	}

	start := sig.Timestamp
	if start.IsZero() {
		start = now
	}
	runCount := 0
	if exists {
		runCount = inst.RunCount
	}
	inst = &TimerInstance{
		DefinitionID: def.ID,
		Key:          key,
		State:        TimerRunning,
		StartedAt:    start,
		ExpiresAt:    start.Add(time.Duration(def.DurationSecs * float64(time.Second))),
		RunCount:     runCount + 1,
	}
	m.instances[ik] = inst

	return []signal.Signal{{
		Kind:      signal.KindTimerStarted,
		Timestamp: start,
		Payload:   signal.TimerStartedPayload{DefinitionID: def.ID, Key: key},
	}}
}

// Tick advances every Running instance against now, emitting at most one
// TimerAlert per run and a TimerExpires (plus a chained restart for
// repeats, or an enqueued trigger for triggers_timer) on expiry.
func (m *TimerManager) Tick(now time.Time) []signal.Signal {
	var out []signal.Signal
	for ik, inst := range m.instances {
		def := m.definitionByID(ik.definitionID)
		if def == nil || (inst.State != TimerRunning && inst.State != TimerAlerting) {
			continue
		}

		remaining := inst.ExpiresAt.Sub(now)
		if def.AlertAtSecs != nil && !inst.Alerted && remaining <= time.Duration(*def.AlertAtSecs*float64(time.Second)) && remaining > 0 {
			inst.Alerted = true
			inst.State = TimerAlerting
			out = append(out, signal.Signal{
				Kind:      signal.KindTimerAlert,
				Timestamp: now,
				Payload: signal.TimerAlertPayload{
					DefinitionID:  def.ID,
					Key:           ik.key,
					RemainingSecs: remaining.Seconds(),
				},
			})
			continue
		}

		if now.Before(inst.ExpiresAt) {
			continue
		}

		inst.State = TimerExpired
		expirySig := signal.Signal{
			Kind:      signal.KindTimerExpires,
			Timestamp: now,
			Payload:   signal.TimerExpiresPayload{DefinitionID: def.ID, Key: ik.key},
		}
		out = append(out, expirySig)
		out = append(out, m.reactToOne(expirySig, now)...)

		if def.Repeats {
			inst.State = TimerRunning
			inst.StartedAt = now
			inst.ExpiresAt = now.Add(time.Duration(def.DurationSecs * float64(time.Second)))
			inst.Alerted = false
			inst.RunCount++
			out = append(out, signal.Signal{
				Kind:      signal.KindTimerStarted,
				Timestamp: now,
				Payload:   signal.TimerStartedPayload{DefinitionID: def.ID, Key: ik.key},
			})
		}
		if def.TriggersTimer != nil {
			if next := m.definitionByID(*def.TriggersTimer); next != nil && next.Enabled {
				out = append(out, m.startOrRefresh(next, signal.Signal{Timestamp: now}, now)...)
			}
		}
	}
	return out
}

// entitiesMatch applies the definition-level Source/Target filters to
// the entities the triggering signal carries. A signal with no source
// (or no target) leaves the corresponding filter unconstrained, so
// CombatStart-triggered timers with a target filter still arm.
func (m *TimerManager) entitiesMatch(def *rules.TimerDefinition, sig signal.Signal) bool {
	if (def.Source == nil && def.Target == nil) || m.resolve == nil {
		return true
	}
	var sourceID, targetID int64
	var hasSource, hasTarget bool
	switch p := sig.Payload.(type) {
	case signal.AbilityActivatedPayload:
		sourceID, hasSource = p.SourceID, true
	case signal.EffectAppliedPayload:
		sourceID, hasSource = p.SourceID, true
		targetID, hasTarget = p.TargetID, true
	case signal.EffectRemovedPayload:
		sourceID, hasSource = p.SourceID, true
		targetID, hasTarget = p.TargetID, true
	case signal.EntityDeathPayload:
		targetID, hasTarget = p.LogID, true
	case signal.NpcFirstSeenPayload:
		targetID, hasTarget = p.LogID, true
	case signal.BossHpChangedPayload:
		targetID, hasTarget = p.EntityID, true
	}
	if def.Source != nil && hasSource && !rules.MatchFilter(def.Source, m.resolve(sourceID)) {
		return false
	}
	if def.Target != nil && hasTarget && !rules.MatchFilter(def.Target, m.resolve(targetID)) {
		return false
	}
	return true
}

func (m *TimerManager) definitionByID(id string) *rules.TimerDefinition {
	for i := range m.ruleSet.Timers {
		if m.ruleSet.Timers[i].ID == id {
			return &m.ruleSet.Timers[i]
		}
	}
	return nil
}

// deriveKey extracts the per-target disambiguator a timer instance keys
// on, when the triggering signal carries a target-like id.
func deriveKey(sig signal.Signal) string {
	switch p := sig.Payload.(type) {
	case signal.EffectAppliedPayload:
		return strconv.FormatInt(p.TargetID, 10)
	case signal.EffectRemovedPayload:
		return strconv.FormatInt(p.TargetID, 10)
	case signal.AbilityActivatedPayload:
		return strconv.FormatInt(p.SourceID, 10)
	case signal.BossHpChangedPayload:
		return strconv.FormatInt(p.EntityID, 10)
	default:
		return ""
	}
}

func sortInstances(s []TimerInstance) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0; j-- {
			a, b := s[j-1], s[j]
			if a.DefinitionID < b.DefinitionID || (a.DefinitionID == b.DefinitionID && a.Key <= b.Key) {
				break
			}
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
