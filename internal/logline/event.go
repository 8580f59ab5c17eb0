// Package logline parses combat log lines into structured CombatEvent
// values and interns their repeated name strings.
//
// The wire grammar for the outer segments (time/source/target/ability
// /effect/details/charges brackets, and the three entity forms) is fixed
// by the log format this system tails. The inner punctuation of the
// ability/effect/details segments is not externally mandated beyond "a
// name and numeric ids" and "comma-separated keyed fragments"; this
// package picks one concrete, round-trippable grammar for them (see
// Serialize) and documents it here rather than inventing silent variants
// per call site.
package logline

import (
	"time"

	"combatlogd/internal/istr"
)

// EntityType distinguishes the four entity forms a bracketed segment can
// take.
type EntityType int

const (
	EntityEmpty EntityType = iota
	EntitySelfReference
	EntityPlayer
	EntityNpc
	EntityCompanion
)

// Entity is a parsed source or target reference.
type Entity struct {
	Name      istr.ID
	ClassID   int64
	LogID     int64
	Type      EntityType
	HealthCur int64
	HealthMax int64
}

// Action names the ability or lifecycle marker a line reports.
type Action struct {
	Name istr.ID
	ID   int64
}

// EffectInfo carries the status-effect metadata present on
// APPLYEFFECT/REMOVEEFFECT/MODIFYCHARGES lines; it is the zero value on
// lines that do not describe an effect.
type EffectInfo struct {
	TypeName       istr.ID
	TypeID         int64
	EffectName     istr.ID
	EffectID       int64
	DifficultyName istr.ID
	DifficultyID   int64
	DisciplineName istr.ID
	DisciplineID   int64
}

// Details carries the numeric payload of a combat line.
type Details struct {
	DmgAmount     int64
	IsCrit        bool
	IsReflect     bool
	DmgEffective  int64
	DmgType       istr.ID
	DmgTypeID     int64
	DefenseTypeID int64
	DmgAbsorbed   int64
	Threat        float32
	HealAmount    int64
	HealEffective int64
	Charges       int64
	AbilityID     int64
	Spend         float32
}

// CombatEvent is one parsed log line.
type CombatEvent struct {
	LineNumber uint64
	Timestamp  time.Time
	Source     Entity
	Target     Entity
	Action     Action
	Effect     EffectInfo
	Details    Details
}

// Well-known action names the event processor matches on to drive combat
// lifecycle, area, and effect transitions. Ability-cast lines carry an
// arbitrary ability name instead of one of these.
const (
	ActionEnterCombat      = "EnterCombat"
	ActionExitCombat       = "ExitCombat"
	ActionAreaEntered      = "AreaEntered"
	ActionApplyEffect      = "ApplyEffect"
	ActionRemoveEffect     = "RemoveEffect"
	ActionModifyCharges    = "ModifyCharges"
	ActionDisciplineChange = "DisciplineChanged"
	ActionDeath            = "Death"
)
