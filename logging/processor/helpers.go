// Package processor defines the logging events emitted by the event
// processor as it turns a CombatEvent into signals and mutates session
// state.
package processor

import (
	"context"

	"combatlogd/logging"
)

const (
	// EventEncounterStarted is emitted when a new encounter is pushed
	// onto the session's live ring.
	EventEncounterStarted logging.EventType = "processor.encounter_started"
	// EventEncounterFinalized is emitted when an encounter is classified
	// and appended to session history.
	EventEncounterFinalized logging.EventType = "processor.encounter_finalized"
	// EventAreaRulesLoaded is emitted when the boss/timer/phase registry
	// for a newly entered area finishes loading.
	EventAreaRulesLoaded logging.EventType = "processor.area_rules_loaded"
	// EventUnattributedAbsorption is emitted when a shield-absorbed
	// amount could not be attributed to any shield (no shield active on
	// the target and none closed within the grace window) and was dropped.
	EventUnattributedAbsorption logging.EventType = "processor.unattributed_absorption"
)

// EncounterStartedPayload names the new encounter.
type EncounterStartedPayload struct {
	EncounterID uint64 `json:"encounterId"`
}

// EncounterFinalizedPayload summarizes the classification outcome.
type EncounterFinalizedPayload struct {
	EncounterID  uint64  `json:"encounterId"`
	DisplayName  string  `json:"displayName"`
	Success      bool    `json:"success"`
	DurationSecs float64 `json:"durationSecs"`
}

// AreaRulesLoadedPayload names the area and how many definitions loaded.
type AreaRulesLoadedPayload struct {
	AreaID   int64 `json:"areaId"`
	Timers   int   `json:"timers"`
	Phases   int   `json:"phases"`
	Counters int   `json:"counters"`
	Bosses   int   `json:"bosses"`
}

// UnattributedAbsorptionPayload records a dropped absorption remnant.
type UnattributedAbsorptionPayload struct {
	TargetID int64 `json:"targetId"`
	Amount   int64 `json:"amount"`
}

// EncounterStarted publishes a processor.encounter_started event.
func EncounterStarted(ctx context.Context, pub logging.Publisher, payload EncounterStartedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEncounterStarted,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProcessor,
		Payload:  payload,
	})
}

// EncounterFinalized publishes a processor.encounter_finalized event.
func EncounterFinalized(ctx context.Context, pub logging.Publisher, payload EncounterFinalizedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEncounterFinalized,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProcessor,
		Payload:  payload,
	})
}

// AreaRulesLoaded publishes a processor.area_rules_loaded event.
func AreaRulesLoaded(ctx context.Context, pub logging.Publisher, payload AreaRulesLoadedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventAreaRulesLoaded,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryProcessor,
		Payload:  payload,
	})
}

// UnattributedAbsorption publishes a processor.unattributed_absorption
// event at debug severity: expected and silent, but useful for
// diagnosing rule files missing a shield_effects entry.
func UnattributedAbsorption(ctx context.Context, pub logging.Publisher, payload UnattributedAbsorptionPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventUnattributedAbsorption,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryProcessor,
		Payload:  payload,
	})
}
