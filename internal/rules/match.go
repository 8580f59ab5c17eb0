package rules

import (
	"strconv"
	"strings"

	"combatlogd/internal/signal"
)

// FilterContext carries the entity-relationship facts MatchFilter needs
// to evaluate an EntityFilter against one concrete entity, since the
// filter kinds (LocalPlayer, GroupMembers, Boss, ...) are relative to the
// session, not decidable from the entity alone.
type FilterContext struct {
	EntityID      int64
	Name          string
	IsPlayer      bool
	IsCompanion   bool
	IsNpc         bool
	IsBoss        bool
	IsLocalPlayer bool
	IsGroupMember bool
	Roster        map[string]map[int64]bool
}

// EntityResolver resolves a signal's raw entity id into the
// FilterContext MatchFilter needs. Implementations are built by whoever
// owns the session state (the processor, or the glue layer on behalf of
// handlers); the rules package itself never reaches into an encounter.
type EntityResolver func(entityID int64) FilterContext

// MatchFilter reports whether ctx satisfies f. A nil filter matches
// everything (an absent source/target filter on a trigger imposes no
// constraint).
func MatchFilter(f *EntityFilter, ctx FilterContext) bool {
	if f == nil {
		return true
	}
	switch f.Kind {
	case FilterAny:
		return true
	case FilterLocalPlayer:
		return ctx.IsLocalPlayer
	case FilterOtherPlayers:
		return ctx.IsPlayer && !ctx.IsLocalPlayer
	case FilterAnyPlayer:
		return ctx.IsPlayer
	case FilterGroupMembers:
		return ctx.IsGroupMember
	case FilterGroupMembersExceptLocal:
		return ctx.IsGroupMember && !ctx.IsLocalPlayer
	case FilterAnyCompanion:
		return ctx.IsCompanion
	case FilterAnyPlayerOrCompanion:
		return ctx.IsPlayer || ctx.IsCompanion
	case FilterAnyNpc:
		return ctx.IsNpc
	case FilterBoss:
		return ctx.IsBoss
	case FilterNpcExceptBoss:
		return ctx.IsNpc && !ctx.IsBoss
	case FilterSelector:
		return matchSelector(f.Selector, ctx)
	default:
		return false
	}
}

// matchSelector implements the OR-semantics Selector filter: an explicit
// id match, or a name resolved first via the roster and then by
// case-insensitive literal match.
func matchSelector(items []SelectorItem, ctx FilterContext) bool {
	for _, item := range items {
		if item.ID != nil && *item.ID == ctx.EntityID {
			return true
		}
		if item.Name != nil {
			if classes, ok := ctx.Roster[*item.Name]; ok {
				_ = classes // presence in the roster under this name is enough
				return true
			}
			if strings.EqualFold(*item.Name, ctx.Name) {
				return true
			}
		}
	}
	return false
}

// Evaluate reports whether sig satisfies t, matching filter-bearing
// variants (AbilityCast, EffectApplied/Removed) on their id/kind fields
// only. It is EvaluateWith with no resolver, for call sites that have no
// session state to resolve entities against.
func Evaluate(t Trigger, sig signal.Signal) bool {
	return EvaluateWith(t, sig, nil)
}

// EvaluateWith reports whether sig satisfies t's condition, or
// recursively combines Children for AllOf/AnyOf. Filter-bearing variants
// (AbilityCast, EffectApplied/Removed) additionally check their
// source_filter/target_filter against the signal's entities through
// resolve; a nil resolve leaves those filters unconstrained, since
// Signal payloads carry raw ids, not resolved FilterContext values.
func EvaluateWith(t Trigger, sig signal.Signal, resolve EntityResolver) bool {
	switch t.Kind {
	case TriggerNever:
		return false
	case TriggerManual:
		return false // only fires via explicit manual invocation, never from a signal
	case TriggerCombatStart:
		return sig.Kind == signal.KindCombatStarted
	case TriggerCombatEnd:
		return sig.Kind == signal.KindCombatEnded
	case TriggerAnyPhaseChange:
		return sig.Kind == signal.KindPhaseChanged || sig.Kind == signal.KindPhaseEndTriggered
	case TriggerPhaseEntered:
		p, ok := sig.Payload.(signal.PhaseChangedPayload)
		return sig.Kind == signal.KindPhaseChanged && ok && p.PhaseID == t.PhaseID
	case TriggerPhaseEnded:
		p, ok := sig.Payload.(signal.PhaseEndTriggeredPayload)
		return sig.Kind == signal.KindPhaseEndTriggered && ok && p.PhaseID == t.PhaseID
	case TriggerCounterReaches:
		p, ok := sig.Payload.(signal.CounterChangedPayload)
		return sig.Kind == signal.KindCounterChanged && ok && p.CounterID == t.CounterID && int64(p.New) == t.Value
	case TriggerTimerStarts:
		p, ok := sig.Payload.(signal.TimerStartedPayload)
		return sig.Kind == signal.KindTimerStarted && ok && p.DefinitionID == t.TimerID
	case TriggerTimerExpires:
		p, ok := sig.Payload.(signal.TimerExpiresPayload)
		return sig.Kind == signal.KindTimerExpires && ok && p.DefinitionID == t.TimerID
	case TriggerBossHpBelow:
		p, ok := sig.Payload.(signal.BossHpChangedPayload)
		if sig.Kind != signal.KindBossHpChanged || !ok {
			return false
		}
		if t.Entity != "" && strconv.FormatInt(p.EntityID, 10) != t.Entity {
			return false
		}
		return p.NewPercent <= t.Percent
	case TriggerEntityFirstSeen:
		p, ok := sig.Payload.(signal.NpcFirstSeenPayload)
		if sig.Kind != signal.KindNpcFirstSeen || !ok {
			return false
		}
		if t.NpcID != nil && *t.NpcID != p.ClassID {
			return false
		}
		return true
	case TriggerEntityDeath:
		return sig.Kind == signal.KindEntityDeath
	case TriggerAbilityCast:
		p, ok := sig.Payload.(signal.AbilityActivatedPayload)
		if sig.Kind != signal.KindAbilityActivated || !ok {
			return false
		}
		if !int64InSet(t.AbilityIDs, p.AbilityID) {
			return false
		}
		return filterMatches(t.SourceFilter, p.SourceID, resolve)
	case TriggerEffectApplied:
		p, ok := sig.Payload.(signal.EffectAppliedPayload)
		if sig.Kind != signal.KindEffectApplied || !ok {
			return false
		}
		if !int64InSet(t.EffectIDs, p.EffectID) {
			return false
		}
		return filterMatches(t.SourceFilter, p.SourceID, resolve) &&
			filterMatches(t.TargetFilter, p.TargetID, resolve)
	case TriggerEffectRemoved:
		p, ok := sig.Payload.(signal.EffectRemovedPayload)
		if sig.Kind != signal.KindEffectRemoved || !ok {
			return false
		}
		if !int64InSet(t.EffectIDs, p.EffectID) {
			return false
		}
		return filterMatches(t.SourceFilter, p.SourceID, resolve) &&
			filterMatches(t.TargetFilter, p.TargetID, resolve)
	case TriggerAllOf:
		for _, child := range t.Children {
			if !EvaluateWith(child, sig, resolve) {
				return false
			}
		}
		return len(t.Children) > 0
	case TriggerAnyOf:
		for _, child := range t.Children {
			if EvaluateWith(child, sig, resolve) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// filterMatches applies f to the entity behind id. With no resolver
// there is nothing to resolve against, so the filter imposes no
// constraint, matching Evaluate's ids-only contract.
func filterMatches(f *EntityFilter, id int64, resolve EntityResolver) bool {
	if f == nil || resolve == nil {
		return true
	}
	return MatchFilter(f, resolve(id))
}

func int64InSet(set []int64, v int64) bool {
	if len(set) == 0 {
		return true // an empty id list imposes no constraint
	}
	for _, id := range set {
		if id == v {
			return true
		}
	}
	return false
}
