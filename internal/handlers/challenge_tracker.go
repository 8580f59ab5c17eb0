package handlers

import (
	"strconv"

	"combatlogd/internal/overlaydata"
	"combatlogd/internal/rules"
	"combatlogd/internal/signal"
)

// ChallengeStatus mirrors the ChallengeRow.Status vocabulary.
type ChallengeStatus string

const (
	ChallengeRunning   ChallengeStatus = "running"
	ChallengeSucceeded ChallengeStatus = "succeeded"
	ChallengeFailed    ChallengeStatus = "failed"
)

type challengeState struct {
	def      *rules.ChallengeDefinition
	status   ChallengeStatus
	started  bool
	progress float64
}

// ChallengeTracker evaluates the declarative ChallengeDefinition rules
// against the signal stream: a start trigger opens one,
// matching signals accumulate progress toward its threshold, and an
// explicit success/fail trigger (or the threshold itself, for
// aggregation-only challenges) closes it.
type ChallengeTracker struct {
	ruleSet *rules.RuleSet
	states  map[string]*challengeState
}

// NewChallengeTracker builds a tracker bound to one loaded rule set.
func NewChallengeTracker(rs *rules.RuleSet) *ChallengeTracker {
	states := make(map[string]*challengeState, len(rs.Challenges))
	for i := range rs.Challenges {
		def := &rs.Challenges[i]
		states[def.ID] = &challengeState{def: def, status: ChallengeRunning}
	}
	return &ChallengeTracker{ruleSet: rs, states: states}
}

// OnSignal advances every challenge's state machine against sig.
func (c *ChallengeTracker) OnSignal(sig signal.Signal) {
	for _, st := range c.states {
		c.react(st, sig)
	}
}

func (c *ChallengeTracker) react(st *challengeState, sig signal.Signal) {
	def := st.def

	if !st.started {
		if !rules.Evaluate(def.StartTrigger, sig) {
			return
		}
		st.started = true
		st.status = ChallengeRunning
		st.progress = 0
	}

	if st.status != ChallengeRunning {
		return
	}

	if def.FailTrigger != nil && rules.Evaluate(*def.FailTrigger, sig) {
		st.status = ChallengeFailed
		return
	}
	if def.SuccessTrigger != nil && rules.Evaluate(*def.SuccessTrigger, sig) {
		st.status = ChallengeSucceeded
		return
	}

	if def.Aggregation == "" || !matchAttributes(sig, def.AttributeMatch) {
		return
	}
	st.progress += aggregateValue(sig, def.Aggregation)
	if def.Threshold > 0 && st.progress >= def.Threshold {
		st.status = ChallengeSucceeded
	}
}

// matchAttributes reports whether sig's payload satisfies every
// key/value constraint in match. An empty match imposes no constraint.
// Only the attribute keys a challenge rule plausibly names are
// recognized; unrecognized keys never match, keeping a typo in a rule
// file from silently matching every signal.
func matchAttributes(sig signal.Signal, match map[string]string) bool {
	for key, want := range match {
		var got string
		switch key {
		case "ability_id":
			p, ok := sig.Payload.(signal.AbilityActivatedPayload)
			if !ok {
				return false
			}
			got = strconv.FormatInt(p.AbilityID, 10)
		case "effect_id":
			switch p := sig.Payload.(type) {
			case signal.EffectAppliedPayload:
				got = strconv.FormatInt(p.EffectID, 10)
			case signal.EffectRemovedPayload:
				got = strconv.FormatInt(p.EffectID, 10)
			default:
				return false
			}
		case "counter_id":
			p, ok := sig.Payload.(signal.CounterChangedPayload)
			if !ok {
				return false
			}
			got = p.CounterID
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// aggregateValue returns the increment a matching signal contributes:
// the delta for a counter under "sum", else 1 per occurrence (matching
// the "count" aggregation, and acting as the per-hit unit for "sum" over
// non-counter signals such as ability casts).
func aggregateValue(sig signal.Signal, aggregation string) float64 {
	if aggregation == "sum" {
		if p, ok := sig.Payload.(signal.CounterChangedPayload); ok {
			return float64(p.New - p.Old)
		}
	}
	return 1
}

// Rows renders every started challenge as an overlay row, sorted by id
// for stable display ordering.
func (c *ChallengeTracker) Rows() []overlaydata.ChallengeRow {
	rows := make([]overlaydata.ChallengeRow, 0, len(c.states))
	for _, st := range c.states {
		if !st.started {
			continue
		}
		rows = append(rows, overlaydata.ChallengeRow{
			ID: st.def.ID, Name: st.def.Name, Progress: st.progress,
			Target: st.def.Threshold, Status: string(st.status),
		})
	}
	sortChallengeRows(rows)
	return rows
}

func sortChallengeRows(rows []overlaydata.ChallengeRow) {
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0; j-- {
			if rows[j-1].ID <= rows[j].ID {
				break
			}
			rows[j-1], rows[j] = rows[j], rows[j-1]
		}
	}
}
