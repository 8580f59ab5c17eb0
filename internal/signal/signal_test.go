package signal

import "testing"

func TestKindStringCoversEveryConstant(t *testing.T) {
	kinds := []Kind{
		KindCombatStarted, KindCombatEnded, KindAreaEntered, KindNpcFirstSeen,
		KindEntityDeath, KindEffectApplied, KindEffectRemoved, KindEffectChargesChanged,
		KindBossHpChanged, KindPhaseChanged, KindPhaseEndTriggered, KindCounterChanged,
		KindAbilityActivated, KindTimerStarted, KindTimerExpires, KindTimerAlert,
	}
	seen := make(map[string]bool, len(kinds))
	for _, k := range kinds {
		s := k.String()
		if s == "Unknown" {
			t.Fatalf("Kind %d stringified to Unknown", k)
		}
		if seen[s] {
			t.Fatalf("duplicate String() result %q", s)
		}
		seen[s] = true
	}
}

func TestKindStringUnknown(t *testing.T) {
	if got := Kind(999).String(); got != "Unknown" {
		t.Fatalf("String() for out-of-range Kind = %q, want Unknown", got)
	}
}
