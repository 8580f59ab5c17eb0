package rules

// collectBossHpPercents walks t's AllOf/AnyOf tree, recording every
// BossHpBelow percentage it names.
func collectBossHpPercents(t Trigger, out map[float64]bool) {
	switch t.Kind {
	case TriggerBossHpBelow:
		out[t.Percent] = true
	case TriggerAllOf, TriggerAnyOf:
		for _, child := range t.Children {
			collectBossHpPercents(child, out)
		}
	}
}

// CollectBossHpPercents returns the distinct BossHpBelow percentages
// referenced anywhere in rs's timers and phases, so a caller updating an
// NPC's HP can cheaply tell whether the update crossed a threshold
// anything in the rule set actually reacts to.
func (rs *RuleSet) CollectBossHpPercents() []float64 {
	set := make(map[float64]bool)
	for _, t := range rs.Timers {
		collectBossHpPercents(t.Trigger, set)
		if t.CounterGuard != nil {
			collectBossHpPercents(*t.CounterGuard, set)
		}
	}
	for _, ph := range rs.Phases {
		collectBossHpPercents(ph.StartTrigger, set)
		if ph.EndTrigger != nil {
			collectBossHpPercents(*ph.EndTrigger, set)
		}
		if ph.CounterGuard != nil {
			collectBossHpPercents(*ph.CounterGuard, set)
		}
	}
	out := make([]float64, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	return out
}
