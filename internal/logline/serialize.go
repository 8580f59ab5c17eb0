package logline

import (
	"fmt"
	"strconv"
	"strings"

	"combatlogd/internal/istr"
)

// Serialize renders ev back into the line grammar Parse accepts, using in
// to resolve interned names. It supports the documented round-trip subset:
// player/NPC/companion/self/empty entities, a single ability action, an
// optional effect descriptor, and the details keys this package
// recognizes. Position fields are not part of CombatEvent and are written
// as zero.
func Serialize(ev CombatEvent, in *istr.Interner) string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(ev.Timestamp.Format(timeLayout))
	b.WriteByte(']')
	b.WriteByte(' ')
	writeEntity(&b, ev.Source, in)
	b.WriteByte(' ')
	writeEntity(&b, ev.Target, in)
	b.WriteByte(' ')
	fmt.Fprintf(&b, "[%s:%d]", in.MustResolve(ev.Action.Name), ev.Action.ID)
	b.WriteByte(' ')
	writeEffect(&b, ev.Effect, in)
	b.WriteByte(' ')
	writeDetails(&b, ev.Details, in)
	if ev.Details.Charges != 0 {
		fmt.Fprintf(&b, " [(%d)]", ev.Details.Charges)
	}
	return b.String()
}

func writeEntity(b *strings.Builder, e Entity, in *istr.Interner) {
	switch e.Type {
	case EntityEmpty:
		b.WriteString("[]")
	case EntitySelfReference:
		b.WriteString("[=]")
	case EntityPlayer:
		fmt.Fprintf(b, "[@%s#%d|(0,0,0,0)|(%d/%d)]", in.MustResolve(e.Name), e.LogID, e.HealthCur, e.HealthMax)
	case EntityNpc:
		fmt.Fprintf(b, "[%s{%d}:%d|(0,0,0,0)|(%d/%d)]", in.MustResolve(e.Name), e.ClassID, e.LogID, e.HealthCur, e.HealthMax)
	case EntityCompanion:
		fmt.Fprintf(b, "[@%s#%d/%s{%d}:%d|(0,0,0,0)|(%d/%d)]", in.MustResolve(e.Name), e.LogID, in.MustResolve(e.Name), e.ClassID, e.LogID, e.HealthCur, e.HealthMax)
	}
}

func writeEffect(b *strings.Builder, eff EffectInfo, in *istr.Interner) {
	if eff == (EffectInfo{}) {
		b.WriteString("[]")
		return
	}
	fmt.Fprintf(b, "[%s:%d:%s:%d:%s:%d:%s:%d]",
		in.MustResolve(eff.TypeName), eff.TypeID,
		in.MustResolve(eff.EffectName), eff.EffectID,
		in.MustResolve(eff.DifficultyName), eff.DifficultyID,
		in.MustResolve(eff.DisciplineName), eff.DisciplineID,
	)
}

func writeDetails(b *strings.Builder, d Details, in *istr.Interner) {
	var frags []string
	if d.DmgAmount != 0 {
		frags = append(frags, "dmg="+strconv.FormatInt(d.DmgAmount, 10))
	}
	if d.IsCrit {
		frags = append(frags, "crit")
	}
	if d.IsReflect {
		frags = append(frags, "reflect")
	}
	if d.DmgEffective != 0 {
		frags = append(frags, "eff="+strconv.FormatInt(d.DmgEffective, 10))
	}
	if d.DmgTypeID != 0 {
		frags = append(frags, "dmgtype="+strconv.FormatInt(d.DmgTypeID, 10))
	}
	if d.DefenseTypeID != 0 {
		frags = append(frags, "deftype="+strconv.FormatInt(d.DefenseTypeID, 10))
	}
	if d.DmgAbsorbed != 0 {
		frags = append(frags, "abs="+strconv.FormatInt(d.DmgAbsorbed, 10))
	}
	if d.Threat != 0 {
		frags = append(frags, "threat="+strconv.FormatFloat(float64(d.Threat), 'f', -1, 32))
	}
	if d.HealAmount != 0 {
		frags = append(frags, "heal="+strconv.FormatInt(d.HealAmount, 10))
	}
	if d.HealEffective != 0 {
		frags = append(frags, "heff="+strconv.FormatInt(d.HealEffective, 10))
	}
	if d.AbilityID != 0 {
		frags = append(frags, "ability="+strconv.FormatInt(d.AbilityID, 10))
	}
	if d.Spend != 0 {
		frags = append(frags, "spend="+strconv.FormatFloat(float64(d.Spend), 'f', -1, 32))
	}
	fmt.Fprintf(b, "[(%s)]", strings.Join(frags, ","))
}
