// Package rules implements the declarative Trigger/EntityFilter sum
// types and the Timer/Phase/Counter/Challenge definitions parsed from
// YAML encounter rule files: data describing behavior, loaded once,
// consulted by stateful managers that live elsewhere (internal/handlers).
package rules

// TriggerKind names one of the unified Trigger sum's variants. It is a
// plain string type so YAML rule files can name it directly (`kind:
// CombatStart`) without a custom unmarshaler.
type TriggerKind string

const (
	TriggerCombatStart     TriggerKind = "CombatStart"
	TriggerCombatEnd       TriggerKind = "CombatEnd"
	TriggerAbilityCast     TriggerKind = "AbilityCast"
	TriggerEffectApplied   TriggerKind = "EffectApplied"
	TriggerEffectRemoved   TriggerKind = "EffectRemoved"
	TriggerTimerStarts     TriggerKind = "TimerStarts"
	TriggerTimerExpires    TriggerKind = "TimerExpires"
	TriggerBossHpBelow     TriggerKind = "BossHpBelow"
	TriggerPhaseEntered    TriggerKind = "PhaseEntered"
	TriggerPhaseEnded      TriggerKind = "PhaseEnded"
	TriggerAnyPhaseChange  TriggerKind = "AnyPhaseChange"
	TriggerCounterReaches  TriggerKind = "CounterReaches"
	TriggerEntityFirstSeen TriggerKind = "EntityFirstSeen"
	TriggerEntityDeath     TriggerKind = "EntityDeath"
	TriggerManual          TriggerKind = "Manual"
	TriggerNever           TriggerKind = "Never"
	TriggerAllOf           TriggerKind = "AllOf"
	TriggerAnyOf           TriggerKind = "AnyOf"
)

// FilterKind names one of the EntityFilter variants.
type FilterKind string

const (
	FilterLocalPlayer              FilterKind = "LocalPlayer"
	FilterOtherPlayers             FilterKind = "OtherPlayers"
	FilterAnyPlayer                FilterKind = "AnyPlayer"
	FilterGroupMembers             FilterKind = "GroupMembers"
	FilterGroupMembersExceptLocal  FilterKind = "GroupMembersExceptLocal"
	FilterAnyCompanion             FilterKind = "AnyCompanion"
	FilterAnyPlayerOrCompanion     FilterKind = "AnyPlayerOrCompanion"
	FilterAnyNpc                   FilterKind = "AnyNpc"
	FilterBoss                     FilterKind = "Boss"
	FilterNpcExceptBoss            FilterKind = "NpcExceptBoss"
	FilterSelector                 FilterKind = "Selector"
	FilterAny                      FilterKind = "Any"
)

// SelectorItem is one entry of a Selector filter's OR-matched list: an
// explicit entity id, or a display name resolved first via the
// encounter's roster and then by case-insensitive match.
type SelectorItem struct {
	ID   *int64  `yaml:"id,omitempty"`
	Name *string `yaml:"name,omitempty"`
}

// EntityFilter narrows a Trigger's source/target match.
type EntityFilter struct {
	Kind     FilterKind     `yaml:"kind"`
	Selector []SelectorItem `yaml:"selector,omitempty"`
}

// Trigger is the unified condition sum type shared by timers, phases,
// and counters.
type Trigger struct {
	Kind TriggerKind `yaml:"kind"`

	// AbilityCast / EffectApplied / EffectRemoved
	AbilityIDs   []int64       `yaml:"ability_ids,omitempty"`
	EffectIDs    []int64       `yaml:"effect_ids,omitempty"`
	SourceFilter *EntityFilter `yaml:"source_filter,omitempty"`
	TargetFilter *EntityFilter `yaml:"target_filter,omitempty"`

	// TimerStarts / TimerExpires
	TimerID string `yaml:"timer_id,omitempty"`

	// BossHpBelow
	Percent float64 `yaml:"percent,omitempty"`
	Entity  string  `yaml:"entity,omitempty"`

	// PhaseEntered / PhaseEnded
	PhaseID string `yaml:"phase_id,omitempty"`

	// CounterReaches
	CounterID string `yaml:"counter_id,omitempty"`
	Value     int64  `yaml:"value,omitempty"`

	// EntityFirstSeen
	NpcID *int64 `yaml:"npc_id,omitempty"`
	Name  string `yaml:"name,omitempty"`

	// AllOf / AnyOf
	Children []Trigger `yaml:"children,omitempty"`
}
