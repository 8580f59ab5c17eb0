// Package eventproc implements the event processor: the
// single authority that reads one logline.CombatEvent, mutates
// session.Cache and its current encounter, and returns the ordered
// []signal.Signal the rest of the pipeline (phase/counter evaluation,
// then handler dispatch) consumes. Sequencing is strict: direct
// mutation first, then phase/counter signals computed from what just
// happened, never interleaved with it.
package eventproc

import (
	"context"

	"combatlogd/internal/classify"
	"combatlogd/internal/encounter"
	"combatlogd/internal/istr"
	"combatlogd/internal/logline"
	"combatlogd/internal/rules"
	"combatlogd/internal/session"
	"combatlogd/internal/signal"
	loggingpkg "combatlogd/logging"
	processorlog "combatlogd/logging/processor"
)

// maxFixedPointIterations bounds the phase/counter re-evaluation loop:
// a runaway cycle of counters re-triggering each other stops here
// rather than looping forever.
const maxFixedPointIterations = 8

// AreaRules is what the processor needs for one area: the loaded rule
// set (phases/counters/timers/challenges/shields) and the boss registry
// copied into each new encounter, matching the "shared immutably across
// the session, copied by value into each new encounter" ownership rule.
type AreaRules struct {
	RuleSet  *rules.RuleSet
	BossDefs []rules.BossEntry
}

// AreaRuleLoader lazily resolves the rule set for an area on first
// entry. A nil loader leaves the processor with an empty
// ruleset for every area, which is valid (no timers/phases/counters
// configured) but registers no bosses, so encounters are classified
// only from the area (PvP registry or area-name substring), otherwise
// as OpenWorld.
type AreaRuleLoader func(areaID int64, areaName string) AreaRules

// Persister receives a finalized encounter.Summary for columnar
// persistence. It is called synchronously from Process at the moment of
// finalization rather than batched.
type Persister func(sessionID string, summary encounter.Summary, events []RowEvent)

// GroupView answers group-membership queries for filter evaluation. The
// raid registry handler implements it; the processor only ever reads
// through this interface, never mutates.
type GroupView interface {
	IsMember(logID int64) bool
}

// Processor is the event processor: a small amount of per-session state
// (the current area's rules, a pull counter, the current encounter's rows)
// plus the pure transformation from CombatEvent to signals.
type Processor struct {
	interner    *istr.Interner
	loadArea    AreaRuleLoader
	persist     Persister
	pub         loggingpkg.Publisher
	sessionID   string
	pullCounter *classify.PullCounter
	group       GroupView

	current AreaRules

	// bossHpPercents caches the distinct BossHpBelow thresholds referenced
	// anywhere in the current area's rules, recomputed on area entry, so
	// onGenericEvent's per-event threshold check doesn't walk every
	// trigger tree on every HP update.
	bossHpPercents []float64

	// rowBuffer accumulates the current encounter's per-event columnar
	// rows; reset on every StartNewEncounter.
	rowBuffer []RowEvent
}

// New constructs a Processor. sessionID identifies the tailed file for
// columnar output paths. group may be nil, in which case GroupMembers
// filters fall back to matching only the local player.
func New(interner *istr.Interner, sessionID string, loadArea AreaRuleLoader, persist Persister, pub loggingpkg.Publisher, group GroupView) *Processor {
	return &Processor{
		interner:    interner,
		loadArea:    loadArea,
		persist:     persist,
		pub:         pub,
		sessionID:   sessionID,
		pullCounter: classify.NewPullCounter(),
		group:       group,
	}
}

func (p *Processor) name(id istr.ID) string {
	return p.interner.MustResolve(id)
}

// BuildFilterContext assembles the rules.FilterContext for one log id:
// identity facts from the encounter's entity book, boss-ness from the
// area's boss table, local-player and group membership from the caller.
// It is shared by the processor's own fixed-point evaluation and by the
// glue layer, which builds the same context for handler-side filter
// checks.
func BuildFilterContext(enc *encounter.Encounter, bosses []rules.BossEntry, group GroupView, localPlayer int64, id int64) rules.FilterContext {
	ctx := rules.FilterContext{EntityID: id}
	if enc != nil {
		info := enc.Entities[id]
		ctx.Name = info.Name
		ctx.IsPlayer = info.Kind == encounter.EntityPlayer
		ctx.IsCompanion = info.Kind == encounter.EntityCompanion
		ctx.IsNpc = info.Kind == encounter.EntityNpc
		ctx.IsBoss = ctx.IsNpc && isBossClass(bosses, info.ClassID)
		ctx.Roster = enc.Roster
	}
	ctx.IsLocalPlayer = localPlayer != 0 && id == localPlayer
	if group != nil {
		ctx.IsGroupMember = group.IsMember(id)
	} else {
		ctx.IsGroupMember = ctx.IsLocalPlayer
	}
	return ctx
}

// filterResolver binds BuildFilterContext to this processor's current
// area and session for one evaluation pass.
func (p *Processor) filterResolver(cache *session.Cache, enc *encounter.Encounter) rules.EntityResolver {
	localPlayer := int64(0)
	if cache.PlayerInitialized {
		localPlayer = cache.Player.LogID
	}
	return func(id int64) rules.FilterContext {
		return BuildFilterContext(enc, p.current.BossDefs, p.group, localPlayer, id)
	}
}

// resolvedEntity normalizes a logline.Entity, substituting the source
// entity in place of a SelfReference target.
func resolvedEntity(ev *logline.CombatEvent, which logline.Entity) logline.Entity {
	if which.Type == logline.EntitySelfReference {
		return ev.Source
	}
	return which
}

// Process is the single entry point: apply ev to cache, returning every
// signal the event (and the phase/counter evaluation it triggers)
// produces, in a fixed order:
// direct signals, then phase changes, then counter changes.
func (p *Processor) Process(ctx context.Context, cache *session.Cache, ev logline.CombatEvent) []signal.Signal {
	direct := p.processDirect(ctx, cache, ev)
	if p.current.RuleSet == nil || len(direct) == 0 {
		return direct
	}

	enc := cache.Current()
	if enc == nil {
		return direct
	}

	derived := p.runFixedPoint(cache, enc, direct)
	return append(direct, derived...)
}

// runFixedPoint alternates phase and counter evaluation, feeding freshly
// produced signals back in as new candidates, until neither produces
// anything new or the iteration cap is hit.
func (p *Processor) runFixedPoint(cache *session.Cache, enc *encounter.Encounter, candidates []signal.Signal) []signal.Signal {
	resolve := p.filterResolver(cache, enc)
	var all []signal.Signal
	round := candidates
	for i := 0; i < maxFixedPointIterations && len(round) > 0; i++ {
		phaseSigs := p.evaluatePhases(enc, round, resolve)
		counterSigs := p.evaluateCounters(enc, append(append([]signal.Signal{}, round...), phaseSigs...), resolve)

		fresh := append(phaseSigs, counterSigs...)
		if len(fresh) == 0 {
			break
		}
		all = append(all, fresh...)
		round = fresh
	}
	return all
}

// processDirect emits the direct signals for one event: combat
// lifecycle, area changes, entity tracking, effect tracking, damage and
// healing, and boss HP mirroring.
func (p *Processor) processDirect(ctx context.Context, cache *session.Cache, ev logline.CombatEvent) []signal.Signal {
	action := p.name(ev.Action.Name)
	source := ev.Source
	target := resolvedEntity(&ev, ev.Target)

	switch action {
	case logline.ActionAreaEntered:
		return p.onAreaEntered(ctx, cache, ev)
	case logline.ActionEnterCombat:
		return p.onEnterCombat(cache, ev)
	case logline.ActionExitCombat:
		return p.onExitCombat(ctx, cache, ev, false)
	case logline.ActionDeath:
		return p.onDeath(ctx, cache, ev, target)
	case logline.ActionApplyEffect:
		return p.onApplyEffect(cache, ev, source, target)
	case logline.ActionRemoveEffect:
		return p.onRemoveEffect(cache, ev, target)
	case logline.ActionModifyCharges:
		return p.onModifyCharges(cache, ev, target)
	case logline.ActionDisciplineChange:
		if !cache.PlayerInitialized {
			cache.Player.Name = p.name(source.Name)
			cache.Player.LogID = source.LogID
			cache.Player.ClassID = source.ClassID
			cache.PlayerInitialized = true
		}
		return nil
	default:
		return p.onGenericEvent(ctx, cache, ev, source, target)
	}
}

func (p *Processor) onAreaEntered(ctx context.Context, cache *session.Cache, ev logline.CombatEvent) []signal.Signal {
	if cur := cache.Current(); cur != nil && cur.State() == encounter.InCombat {
		return append(p.onExitCombat(ctx, cache, ev, false), p.onAreaEntered(ctx, cache, ev)...)
	}

	areaID := ev.Target.ClassID // area events carry the area id/name in the target slot in this wire grammar
	areaName := p.name(ev.Target.Name)
	cache.EnterArea(areaID, areaName, ev.Effect.DifficultyID, p.name(ev.Effect.DifficultyName), ev.Timestamp)

	if p.loadArea != nil {
		p.current = p.loadArea(areaID, areaName)
	} else {
		p.current = AreaRules{}
	}
	cache.BossDefs = make([]session.BossEncounterDefinition, 0, len(p.current.BossDefs))
	for _, b := range p.current.BossDefs {
		cache.BossDefs = append(cache.BossDefs, session.BossEncounterDefinition{ClassID: b.ClassID, Name: b.Name, ContentType: b.ContentType})
	}
	if p.current.RuleSet != nil {
		p.bossHpPercents = p.current.RuleSet.CollectBossHpPercents()
		processorlog.AreaRulesLoaded(ctx, p.pub, processorlog.AreaRulesLoadedPayload{
			AreaID: areaID, Timers: len(p.current.RuleSet.Timers), Phases: len(p.current.RuleSet.Phases),
			Counters: len(p.current.RuleSet.Counters), Bosses: len(p.current.RuleSet.Bosses),
		})
	} else {
		p.bossHpPercents = nil
	}

	return []signal.Signal{{
		Kind:      signal.KindAreaEntered,
		Timestamp: ev.Timestamp,
		Payload:   signal.AreaEnteredPayload{AreaID: areaID, AreaName: areaName, Generation: cache.CurrentArea.Generation},
	}}
}

func (p *Processor) onEnterCombat(cache *session.Cache, ev logline.CombatEvent) []signal.Signal {
	cur := cache.Current()
	if cur == nil || cur.State() == encounter.Ended {
		cur = cache.StartNewEncounter()
		p.rowBuffer = nil
	}
	if cur.State() != encounter.NotStarted {
		return nil
	}
	cur.EnterCombat(ev.Timestamp)
	if ev.Source.Type == logline.EntityPlayer {
		cur.NotePlayerSeen(ev.Source.LogID)
	}
	return []signal.Signal{{
		Kind: signal.KindCombatStarted, Timestamp: ev.Timestamp, EncounterID: cur.EncounterID,
		Payload: signal.CombatStartedPayload{},
	}}
}

func (p *Processor) onExitCombat(ctx context.Context, cache *session.Cache, ev logline.CombatEvent, allPlayersDead bool) []signal.Signal {
	cur := cache.Current()
	if cur == nil || cur.State() != encounter.InCombat {
		return nil
	}
	cur.ExitCombat(ev.Timestamp, allPlayersDead)
	out := []signal.Signal{{
		Kind: signal.KindCombatEnded, Timestamp: ev.Timestamp, EncounterID: cur.EncounterID,
		Payload: signal.CombatEndedPayload{AllPlayersDead: allPlayersDead},
	}}
	p.finalize(ctx, cache, cur)
	return out
}

func (p *Processor) finalize(ctx context.Context, cache *session.Cache, cur *encounter.Encounter) {
	p.pullCounter.ResetForArea(cache.CurrentArea.Generation)
	result := classify.Classify(classify.Input{
		AreaID: cache.CurrentArea.AreaID, AreaName: cache.CurrentArea.AreaName,
		FirstSeenNPCs: cur.FirstSeenOrder, BossDefs: p.current.BossDefs,
	}, p.pullCounter)

	summary := cur.Finalize(result.DisplayName, string(result.PhaseType), result.BossName)
	cache.FinalizeCurrent(summary)

	if p.persist != nil {
		p.persist(p.sessionID, summary, p.rowBuffer)
	}
	p.rowBuffer = nil

	processorlog.EncounterFinalized(ctx, p.pub, processorlog.EncounterFinalizedPayload{
		EncounterID: summary.EncounterID, DisplayName: summary.DisplayName,
		Success: summary.Success, DurationSecs: summary.DurationSecs,
	})
}

func (p *Processor) onDeath(ctx context.Context, cache *session.Cache, ev logline.CombatEvent, target logline.Entity) []signal.Signal {
	isBoss := false
	if enc := cache.Current(); enc != nil {
		for _, b := range p.current.BossDefs {
			if b.ClassID == target.ClassID {
				isBoss = true
			}
		}
		enc.NoteEntitySeen(p.name(target.Name), target.ClassID)
		p.noteEntityInfo(enc, target)
	}

	out := []signal.Signal{{
		Kind: signal.KindEntityDeath, Timestamp: ev.Timestamp,
		Payload: signal.EntityDeathPayload{LogID: target.LogID, ClassID: target.ClassID, IsBoss: isBoss},
	}}

	if target.Type != logline.EntityPlayer {
		return out
	}
	cur := cache.Current()
	if cur == nil || cur.State() != encounter.InCombat {
		return out
	}
	if cur.NotePlayerDeath(target.LogID) {
		out = append(out, p.onExitCombat(ctx, cache, ev, true)...)
	}
	return out
}

func (p *Processor) onApplyEffect(cache *session.Cache, ev logline.CombatEvent, source, target logline.Entity) []signal.Signal {
	enc := cache.Current()
	if enc == nil {
		return nil
	}
	shields := shieldSet(p.current.RuleSet)
	isShield := shields[ev.Effect.EffectID]
	p.noteEntityInfo(enc, source)
	p.noteEntityInfo(enc, target)
	enc.ApplyEffect(ev.Effect.EffectID, source.LogID, target.LogID, ev.Timestamp, shields)
	return []signal.Signal{{
		Kind: signal.KindEffectApplied, Timestamp: ev.Timestamp,
		Payload: signal.EffectAppliedPayload{EffectID: ev.Effect.EffectID, SourceID: source.LogID, TargetID: target.LogID, IsShield: isShield},
	}}
}

func (p *Processor) onRemoveEffect(cache *session.Cache, ev logline.CombatEvent, target logline.Entity) []signal.Signal {
	enc := cache.Current()
	if enc == nil {
		return nil
	}
	inst := enc.RemoveEffect(ev.Effect.EffectID, target.LogID, ev.Timestamp)
	if inst == nil {
		return nil
	}
	if inst.IsShield {
		enc.OnShieldRemoved(inst, ev.Timestamp)
	}
	return []signal.Signal{{
		Kind: signal.KindEffectRemoved, Timestamp: ev.Timestamp,
		Payload: signal.EffectRemovedPayload{EffectID: inst.EffectID, SourceID: inst.SourceID, TargetID: target.LogID, IsShield: inst.IsShield},
	}}
}

func (p *Processor) onModifyCharges(cache *session.Cache, ev logline.CombatEvent, target logline.Entity) []signal.Signal {
	if cache.Current() == nil {
		return nil
	}
	return []signal.Signal{{
		Kind: signal.KindEffectChargesChanged, Timestamp: ev.Timestamp,
		Payload: signal.EffectChargesChangedPayload{EffectID: ev.Effect.EffectID, TargetID: target.LogID, Charges: ev.Details.Charges},
	}}
}

// onGenericEvent handles every line that isn't a named lifecycle marker:
// ability casts, damage, healing, and threat, plus entity-tracking and
// boss-HP mirroring that apply to any event mentioning an entity.
func (p *Processor) onGenericEvent(ctx context.Context, cache *session.Cache, ev logline.CombatEvent, source, target logline.Entity) []signal.Signal {
	var out []signal.Signal

	if source.Type == logline.EntityNpc {
		if cache.NoteNpcInstance(source.LogID) {
			out = append(out, signal.Signal{Kind: signal.KindNpcFirstSeen, Timestamp: ev.Timestamp, Payload: signal.NpcFirstSeenPayload{LogID: source.LogID, ClassID: source.ClassID}})
		}
	}
	if target.Type == logline.EntityNpc {
		if cache.NoteNpcInstance(target.LogID) {
			out = append(out, signal.Signal{Kind: signal.KindNpcFirstSeen, Timestamp: ev.Timestamp, Payload: signal.NpcFirstSeenPayload{LogID: target.LogID, ClassID: target.ClassID}})
		}
	}

	enc := cache.Current()
	if enc == nil || enc.State() != encounter.InCombat {
		return out
	}
	enc.NoteEntitySeen(p.name(source.Name), source.ClassID)
	enc.NoteEntitySeen(p.name(target.Name), target.ClassID)
	p.noteEntityInfo(enc, source)
	p.noteEntityInfo(enc, target)
	if source.Type == logline.EntityPlayer {
		enc.NotePlayerSeen(source.LogID)
	}
	if target.Type == logline.EntityPlayer {
		enc.NotePlayerSeen(target.LogID)
	}

	d := ev.Details
	isDefenseOnly := d.DefenseTypeID != 0 && d.DmgAmount == 0 && d.DmgEffective == 0
	isNaturalRoll := d.DefenseTypeID != 0 && d.DmgAbsorbed > 0 && !isDefenseOnly

	if d.DmgAmount > 0 || isDefenseOnly {
		enc.ApplyDamage(encounter.DamageEvent{
			SourceID: source.LogID, TargetID: target.LogID, Amount: d.DmgAmount, Effective: d.DmgEffective,
			IsCrit: d.IsCrit, Absorbed: d.DmgAbsorbed, IsNaturalRoll: isNaturalRoll, IsDefenseOnly: isDefenseOnly,
		})
		if d.DmgAbsorbed > 0 && !isNaturalRoll {
			pendingBefore := len(enc.Pending[target.LogID])
			credited := enc.OnDamageAbsorbed(target.LogID, d.DmgAbsorbed, d.DmgEffective, ev.Timestamp)
			if credited == 0 && len(enc.Pending[target.LogID]) == pendingBefore {
				processorlog.UnattributedAbsorption(ctx, p.pub, processorlog.UnattributedAbsorptionPayload{TargetID: target.LogID, Amount: d.DmgAbsorbed})
			}
		}
	}
	if d.HealAmount > 0 {
		enc.ApplyHealing(encounter.HealEvent{SourceID: source.LogID, TargetID: target.LogID, Amount: d.HealAmount, Effective: d.HealEffective, IsCrit: d.IsCrit})
	}
	if d.Threat != 0 {
		enc.ApplyThreat(source.LogID, d.Threat)
	}
	if ev.Action.ID != 0 {
		enc.NoteAction(source.LogID)
		out = append(out, signal.Signal{Kind: signal.KindAbilityActivated, Timestamp: ev.Timestamp, Payload: signal.AbilityActivatedPayload{AbilityID: ev.Action.ID, SourceID: source.LogID}})
	}

	if target.Type == logline.EntityNpc && isBossClass(p.current.BossDefs, target.ClassID) {
		oldPct, newPct, changed := enc.UpdateBossHP(target.LogID, target.ClassID, target.HealthCur, target.HealthMax, ev.Timestamp)
		if changed && thresholdCrossed(p.bossHpPercents, oldPct, newPct) {
			out = append(out, signal.Signal{Kind: signal.KindBossHpChanged, Timestamp: ev.Timestamp, Payload: signal.BossHpChangedPayload{EntityID: target.LogID, OldPercent: oldPct, NewPercent: newPct}})
		}
	}

	p.rowBuffer = append(p.rowBuffer, NewRowEvent(ev, enc))
	return out
}

// entityKind maps a wire-level entity form onto the encounter's book.
func entityKind(t logline.EntityType) encounter.EntityKind {
	switch t {
	case logline.EntityPlayer:
		return encounter.EntityPlayer
	case logline.EntityCompanion:
		return encounter.EntityCompanion
	case logline.EntityNpc:
		return encounter.EntityNpc
	default:
		return encounter.EntityUnknown
	}
}

// noteEntityInfo records one wire entity's identity facts into the
// encounter's book for filter resolution.
func (p *Processor) noteEntityInfo(enc *encounter.Encounter, ent logline.Entity) {
	if ent.LogID == 0 || ent.Type == logline.EntityEmpty {
		return
	}
	enc.NoteEntityInfo(ent.LogID, entityKind(ent.Type), ent.ClassID, p.name(ent.Name))
}

func isBossClass(bosses []rules.BossEntry, classID int64) bool {
	for _, b := range bosses {
		if b.ClassID == classID {
			return true
		}
	}
	return false
}

func shieldSet(rs *rules.RuleSet) encounter.ShieldSet {
	if rs == nil {
		return encounter.ShieldSet{}
	}
	return encounter.ShieldSet(rs.ShieldSet())
}

// thresholdCrossed reports whether any configured boss-hp-below
// percentage lies in [newPct, oldPct), i.e. the HP update
// just crossed a threshold a timer or phase trigger cares about.
func thresholdCrossed(percents []float64, oldPct, newPct float64) bool {
	for _, p := range percents {
		if oldPct > p && newPct <= p {
			return true
		}
	}
	return false
}
