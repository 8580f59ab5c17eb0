package rules

// TimerDefinition describes one configured timer.
type TimerDefinition struct {
	ID             string        `yaml:"id"`
	Name           string        `yaml:"name"`
	Enabled        bool          `yaml:"enabled"`
	Trigger        Trigger       `yaml:"trigger"`
	Source         *EntityFilter `yaml:"source,omitempty"`
	Target         *EntityFilter `yaml:"target,omitempty"`
	DurationSecs   float64       `yaml:"duration_secs"`
	CanBeRefreshed bool          `yaml:"can_be_refreshed"`
	Repeats        bool          `yaml:"repeats"`
	Color          string        `yaml:"color,omitempty"`
	AlertAtSecs    *float64      `yaml:"alert_at_secs,omitempty"`
	AlertText      *string       `yaml:"alert_text,omitempty"`
	AudioFile      *string       `yaml:"audio_file,omitempty"`
	TriggersTimer  *string       `yaml:"triggers_timer,omitempty"`
	EncounterName  string        `yaml:"encounter_name,omitempty"`
	BossName       string        `yaml:"boss_name,omitempty"`
	DifficultyID   string        `yaml:"difficulty_id,omitempty"`
	Phases         []string      `yaml:"phases,omitempty"`
	CounterGuard   *Trigger      `yaml:"counter_condition,omitempty"`
}

// PhaseDefinition describes one named boss-fight segment.
type PhaseDefinition struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	StartTrigger Trigger  `yaml:"start_trigger"`
	EndTrigger   *Trigger `yaml:"end_trigger,omitempty"`
	PrecededBy   string   `yaml:"preceded_by,omitempty"`
	CounterGuard *Trigger `yaml:"counter_condition,omitempty"`
}

// CounterDefinition describes one named integer tracked during an
// encounter.
//
// Older rule files carried a `decrement: bool` flag alongside
// `decrement_on`; only the trigger form is supported here.
type CounterDefinition struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	IncrementOn  Trigger  `yaml:"increment_on"`
	DecrementOn  *Trigger `yaml:"decrement_on,omitempty"`
	ResetOn      *Trigger `yaml:"reset_on,omitempty"`     // defaults to CombatEnd if nil
	InitialValue int64    `yaml:"initial_value"`
	SetValue     *int64   `yaml:"set_value,omitempty"`
}

// EffectiveResetOn returns the configured reset trigger, defaulting to
// CombatEnd
func (c CounterDefinition) EffectiveResetOn() Trigger {
	if c.ResetOn != nil {
		return *c.ResetOn
	}
	return Trigger{Kind: TriggerCombatEnd}
}

// ChallengeDefinition describes one declarative challenge rule consumed
// by the ChallengeTracker handler: a start condition, an aggregation over
// matching signals, and a threshold that decides success or failure.
type ChallengeDefinition struct {
	ID             string            `yaml:"id"`
	Name           string            `yaml:"name"`
	StartTrigger   Trigger           `yaml:"start_trigger"`
	SuccessTrigger *Trigger          `yaml:"success_trigger,omitempty"`
	FailTrigger    *Trigger          `yaml:"fail_trigger,omitempty"`
	AttributeMatch map[string]string `yaml:"attribute_match,omitempty"`
	Aggregation    string            `yaml:"aggregation,omitempty"`     // "sum" | "count"
	Threshold      float64           `yaml:"threshold,omitempty"`
}

// BossEntry registers an NPC class id as a known boss with a content
// type, feeding both the classification registry (internal/classify) and
// the boss-encounter definitions copied into SessionCache.
type BossEntry struct {
	ClassID     int64  `yaml:"class_id"`
	Name        string `yaml:"name"`
	ContentType string `yaml:"content_type"`
}

// RuleSet is one loaded encounter rule file: phases, counters, timers,
// challenges, entity aliases, and the boss/shield registries they
// reference.
type RuleSet struct {
	Timers        []TimerDefinition     `yaml:"timers,omitempty"`
	Phases        []PhaseDefinition     `yaml:"phases,omitempty"`
	Counters      []CounterDefinition   `yaml:"counters,omitempty"`
	Challenges    []ChallengeDefinition `yaml:"challenges,omitempty"`
	EntityAliases map[string][]int64    `yaml:"entity_aliases,omitempty"`
	ShieldEffects []int64               `yaml:"shield_effects,omitempty"`
	Bosses        []BossEntry           `yaml:"bosses,omitempty"`
}
