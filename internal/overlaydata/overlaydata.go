// Package overlaydata defines the typed messages crossing the
// service<->overlay boundary: OverlayData pushed from the core
// to a rendering overlay, OverlayCommand pushed the other way for
// lifecycle control, and PositionEvent reporting a window's geometry
// back to the service. One sum type per direction, carried as a Kind
// tag plus a typed payload.
package overlaydata

// Kind names one overlay window variety; the string doubles as the
// config key and wire tag for that overlay.
type Kind string

const (
	KindDPS         Kind = "dps"
	KindEDPS        Kind = "edps"
	KindBossDPS     Kind = "bossdps"
	KindHPS         Kind = "hps"
	KindEHPS        Kind = "ehps"
	KindTPS         Kind = "tps"
	KindDTPS        Kind = "dtps"
	KindAbsorption  Kind = "abs"
	KindPersonal    Kind = "personal"
	KindRaid        Kind = "raid"
	KindBossHealth  Kind = "boss_health"
	KindTimers      Kind = "timers"
	KindEffects     Kind = "effects"
	KindChallenges  Kind = "challenges"
	KindAlerts      Kind = "alerts"
)

// MeterRow is one entity's line in a DPS/HPS/TPS-style meter overlay.
type MeterRow struct {
	EntityID int64
	Name     string
	Value    float64
	Percent  float64 // relative to the row with the highest Value
	IsLocal  bool
}

// TimerRow is one active timer instance rendered by the timers overlay.
type TimerRow struct {
	DefinitionID  string
	Name          string
	Key           string
	Color         string
	RemainingSecs float64
	DurationSecs  float64
	Alerting      bool
}

// EffectRow is one active effect rendered by the effects overlay.
type EffectRow struct {
	EffectID   int64
	Name       string
	TargetID   int64
	TargetName string
	AppliedAt  float64 // combat_time_secs at application
	IsShield   bool
}

// ChallengeRow is one tracked challenge's live state.
type ChallengeRow struct {
	ID       string
	Name     string
	Progress float64
	Target   float64
	Status   string  // "running" | "succeeded" | "failed"
}

// BossHealthRow is the current boss-health-bar overlay's single subject.
type BossHealthRow struct {
	EntityID int64
	Name     string
	Percent  float64
}

// OverlayData is one snapshot the service pushes into an overlay's
// channel. Only the field matching Kind is populated, matching the
// Kind+payload shape used throughout this codebase (signal.Signal,
// logging.Event).
type OverlayData struct {
	Kind       Kind
	Meter      []MeterRow
	Timers     []TimerRow
	Effects    []EffectRow
	Challenges []ChallengeRow
	BossHealth *BossHealthRow
}

// CommandKind names one OverlayCommand variant.
type CommandKind int

const (
	CommandSetMoveMode CommandKind = iota
	CommandSetRearrangeMode
	CommandUpdateData
	CommandUpdateConfig
	CommandSetPosition
	CommandGetPosition
	CommandShutdown
)

// OverlayConfigUpdate carries a partial appearance/enablement change for
// one overlay, pushed by OverlayCommand{Kind: CommandUpdateConfig}.
type OverlayConfigUpdate struct {
	Enabled      *bool
	Visible      *bool
	Opacity      *float64
	FontScale    *float64
	ClickThrough *bool
}

// OverlayCommand is one message the service sends into an overlay's
// command channel.
type OverlayCommand struct {
	Kind         CommandKind
	Data         OverlayData
	ConfigUpdate OverlayConfigUpdate
	X, Y         float64
	// ReplyTo receives the result of a CommandGetPosition request. It is
	// nil for every other Kind. It is never JSON-encoded.
	ReplyTo      chan PositionEvent `json:"-"`
}

// PositionEvent is one message an overlay window reports back to the
// service: absolute screen
// coordinates plus monitor-relative fields so the service can
// reconstruct position after a monitor layout change.
type PositionEvent struct {
	Kind      Kind
	X, Y      float64
	Width     float64
	Height    float64
	MonitorID *string
	MonitorX  float64
	MonitorY  float64
}
