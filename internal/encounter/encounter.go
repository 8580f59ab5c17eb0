// Package encounter implements CombatEncounter: the per-encounter
// accumulator for entity metrics, effect lifecycle, shielding
// attribution, and phase/counter/HP state, plus its finalization into a
// Summary. Effect lifecycle follows an apply/remove/expire hook shape
// across the full entity roster.
package encounter

import "time"

// State is the lifecycle stage of a CombatEncounter. Transitions only
// ever move forward: NotStarted -> InCombat -> Ended.
type State int

const (
	NotStarted State = iota
	InCombat
	Ended
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case InCombat:
		return "InCombat"
	case Ended:
		return "Ended"
	default:
		return "Unknown"
	}
}

// Grace windows for shielding attribution (see shielding.go). Named
// module-level constants, per the design note calling out that these
// values are empirical and should be parameterizable rather than baked
// into the arithmetic.
const (
	GraceWindowAloneActive = 3000 * time.Millisecond
	GraceWindowOtherActive = 500 * time.Millisecond
)

// PhaseState tracks the currently active phase and the phase that
// preceded it, satisfying phase guards that require a specific
// predecessor (preceded_by).
type PhaseState struct {
	ActivePhase   string    // "" means no active phase
	PrecededBy    string    // the phase active immediately before ActivePhase
	LastPhaseTime time.Time
}

// EntityKind classifies a roster entry for filter evaluation.
type EntityKind int

const (
	EntityUnknown EntityKind = iota
	EntityPlayer
	EntityCompanion
	EntityNpc
)

// EntityInfo is what the encounter remembers about one log id: enough
// for EntityFilter evaluation (player/companion/npc, class id, display
// name) without reaching back into parser state.
type EntityInfo struct {
	Kind    EntityKind
	ClassID int64
	Name    string
}

// NPCState mirrors a tracked entity's health, refreshed whenever it
// appears as the target of an event.
type NPCState struct {
	ClassID   int64
	HealthCur int64
	HealthMax int64
	LastSeen  time.Time
}

// HPPercent returns current/max as a 0-100 percentage, or 100 if MaxHP is
// not yet known.
func (n NPCState) HPPercent() float64 {
	if n.HealthMax <= 0 {
		return 100
	}
	return float64(n.HealthCur) / float64(n.HealthMax) * 100
}

// Encounter is the per-encounter accumulator: entity roster, effects
// book, pending-absorption buffers,
// phase/counter/HP state.
type Encounter struct {
	// EncounterID is the monotonically increasing encounter identity.
	EncounterID uint64

	state           State
	EnterCombatTime time.Time
	ExitCombatTime  time.Time

	Accumulated map[int64]*MetricAccumulator
	Effects     map[int64][]*EffectInstance
	Pending     map[int64][]PendingAbsorption

	Phase    PhaseState
	Counters map[string]int64

	NPCs           map[int64]*NPCState
	// FirstSeenOrder lists NPC class ids in the order their first
	// instance was observed, used by classification to find the
	// earliest-seen boss.
	FirstSeenOrder []int64
	firstSeenSet   map[int64]bool

	// Roster maps a display name to the set of entity-class-ids observed
	// under that name, used for Name-based EntityFilter selectors.
	Roster map[string]map[int64]bool

	// Entities maps each observed log id to its identity facts, used to
	// resolve source/target filters on triggers and timer definitions.
	Entities map[int64]EntityInfo

	AllPlayersDead bool

	// PlayerIDs and DeadPlayerIDs track the "all players dead" wipe
	// condition: every player log_id seen this encounter, and the subset
	// that has died.
	PlayerIDs     map[int64]bool
	DeadPlayerIDs map[int64]bool
}

// New constructs an empty encounter in NotStarted state.
func New(id uint64) *Encounter {
	return &Encounter{
		EncounterID:   id,
		state:         NotStarted,
		Accumulated:   make(map[int64]*MetricAccumulator),
		Effects:       make(map[int64][]*EffectInstance),
		Pending:       make(map[int64][]PendingAbsorption),
		Counters:      make(map[string]int64),
		NPCs:          make(map[int64]*NPCState),
		firstSeenSet:  make(map[int64]bool),
		Roster:        make(map[string]map[int64]bool),
		Entities:      make(map[int64]EntityInfo),
		PlayerIDs:     make(map[int64]bool),
		DeadPlayerIDs: make(map[int64]bool),
	}
}

// State reports the encounter's current lifecycle stage.
func (e *Encounter) State() State { return e.state }

// EnterCombat transitions NotStarted -> InCombat. Calling it again while
// already InCombat is a no-op: a second EnterCombat effect on another
// participant reuses the current encounter rather than starting a new
// one.
func (e *Encounter) EnterCombat(at time.Time) {
	if e.state != NotStarted {
		return
	}
	e.state = InCombat
	e.EnterCombatTime = at
}

// ExitCombat transitions InCombat -> Ended. It is idempotent once Ended.
func (e *Encounter) ExitCombat(at time.Time, allPlayersDead bool) {
	if e.state == Ended {
		return
	}
	e.state = Ended
	e.ExitCombatTime = at
	e.AllPlayersDead = allPlayersDead
}

// accumulator returns (creating if necessary) the MetricAccumulator for
// entityID.
func (e *Encounter) accumulator(entityID int64) *MetricAccumulator {
	acc, ok := e.Accumulated[entityID]
	if !ok {
		acc = &MetricAccumulator{}
		e.Accumulated[entityID] = acc
	}
	return acc
}

// NoteEntitySeen records a roster alias and, the first time a given
// classID is observed (under any name), appends classID to FirstSeenOrder
// for later boss classification.
func (e *Encounter) NoteEntitySeen(name string, classID int64) {
	if name != "" {
		classes, ok := e.Roster[name]
		if !ok {
			classes = make(map[int64]bool)
			e.Roster[name] = classes
		}
		classes[classID] = true
	}
	if !e.firstSeenSet[classID] {
		e.firstSeenSet[classID] = true
		e.FirstSeenOrder = append(e.FirstSeenOrder, classID)
	}
}

// NoteEntityInfo records (or refreshes) the identity facts for one log
// id. Later observations win so a renamed or re-classified entity
// converges on its latest form.
func (e *Encounter) NoteEntityInfo(logID int64, kind EntityKind, classID int64, name string) {
	if logID == 0 {
		return
	}
	e.Entities[logID] = EntityInfo{Kind: kind, ClassID: classID, Name: name}
}

// NotePlayerSeen records a player as part of this encounter's roster for
// wipe detection.
func (e *Encounter) NotePlayerSeen(logID int64) {
	e.PlayerIDs[logID] = true
}

// NotePlayerDeath records a player death and reports whether every known
// player in this encounter is now dead (the "wipe" condition).
func (e *Encounter) NotePlayerDeath(logID int64) (allDead bool) {
	if !e.PlayerIDs[logID] {
		e.PlayerIDs[logID] = true
	}
	e.DeadPlayerIDs[logID] = true
	return len(e.PlayerIDs) > 0 && len(e.DeadPlayerIDs) >= len(e.PlayerIDs)
}

// UpdateBossHP mirrors a tracked entity's HP into the NPCs map and
// reports the old and new HP percentage so the caller can decide whether
// any configured threshold was crossed. An entity not tracked before
// starts from 100%, and its first update always reports changed.
func (e *Encounter) UpdateBossHP(entityID, classID, cur, max int64, at time.Time) (oldPct, newPct float64, changed bool) {
	npc, ok := e.NPCs[entityID]
	if !ok {
		npc = &NPCState{ClassID: classID}
		e.NPCs[entityID] = npc
		oldPct = 100
	} else {
		oldPct = npc.HPPercent()
	}
	npc.HealthCur = cur
	npc.HealthMax = max
	npc.LastSeen = at
	newPct = npc.HPPercent()
	return oldPct, newPct, !ok || oldPct != newPct
}
