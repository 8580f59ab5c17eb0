package overlay

import (
	"sort"

	"combatlogd/internal/encounter"
	"combatlogd/internal/overlaydata"
)

// NameResolver maps a log id to its display name, same contract as
// handlers.NameResolver, duplicated here so this package stays free of a
// dependency on internal/handlers.
type NameResolver func(logID int64) string

// meterValue picks the field of a MetricAccumulator a given overlaydata.Kind
// renders, and whether that field is rate-based (divided by elapsedSecs) or
// a running total.
func meterValue(kind overlaydata.Kind, a *encounter.MetricAccumulator) (value float64, rate bool) {
	switch kind {
	case overlaydata.KindDPS:
		return float64(a.DamageDealt), true
	case overlaydata.KindEDPS:
		return float64(a.DamageDealtEffective), true
	case overlaydata.KindHPS:
		return float64(a.HealingDone), true
	case overlaydata.KindEHPS:
		return float64(a.HealingEffective), true
	case overlaydata.KindTPS:
		return a.ThreatGenerated, true
	case overlaydata.KindDTPS:
		return float64(a.DamageReceivedEffective), true
	case overlaydata.KindAbsorption:
		return float64(a.ShieldingGiven), false
	default:
		return 0, false
	}
}

// BuildMeterRows flattens enc.Accumulated into sorted MeterRow values for
// the given meter kind, normalizing by elapsedSecs for rate-based meters
// and computing each row's Percent relative to the row with the highest
// Value.
func BuildMeterRows(kind overlaydata.Kind, enc *encounter.Encounter, names NameResolver, elapsedSecs float64, localPlayer int64) []overlaydata.MeterRow {
	rows := make([]overlaydata.MeterRow, 0, len(enc.Accumulated))
	for entityID, acc := range enc.Accumulated {
		value, rate := meterValue(kind, acc)
		if rate && elapsedSecs > 0 {
			value /= elapsedSecs
		}
		if value == 0 {
			continue
		}
		rows = append(rows, overlaydata.MeterRow{
			EntityID: entityID,
			Name:     names(entityID),
			Value:    value,
			IsLocal:  entityID == localPlayer,
		})
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })

	var max float64
	if len(rows) > 0 {
		max = rows[0].Value
	}
	for i := range rows {
		if max > 0 {
			rows[i].Percent = rows[i].Value / max * 100
		}
	}
	return rows
}

// BuildBossHealthRow reports the lowest-HP-percent tracked boss NPC, or
// nil if none are known yet.
func BuildBossHealthRow(enc *encounter.Encounter, names NameResolver, bossClassIDs map[int64]bool) *overlaydata.BossHealthRow {
	var best *overlaydata.BossHealthRow
	for entityID, npc := range enc.NPCs {
		if !bossClassIDs[npc.ClassID] {
			continue
		}
		pct := npc.HPPercent()
		if best == nil || pct < best.Percent {
			best = &overlaydata.BossHealthRow{EntityID: entityID, Name: names(entityID), Percent: pct}
		}
	}
	return best
}
