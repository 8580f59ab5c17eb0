package overlay

import (
	"context"
	"testing"

	"combatlogd/internal/overlaydata"
)

func meterSnapshot(value float64) overlaydata.OverlayData {
	return overlaydata.OverlayData{
		Kind:  overlaydata.KindDPS,
		Meter: []overlaydata.MeterRow{{EntityID: 1, Value: value}},
	}
}

func TestManagerDropsOldestWhenChannelFull(t *testing.T) {
	m := NewManager(nil)
	ch := m.Register(overlaydata.KindDPS)

	// One more push than the channel holds: the first snapshot must be
	// gone, the newest must be present.
	for i := 1; i <= commandQueueDepth+1; i++ {
		m.PushData(overlaydata.KindDPS, meterSnapshot(float64(i)))
	}

	got := make([]float64, 0, commandQueueDepth)
	for len(ch) > 0 {
		cmd := <-ch
		if cmd.Kind != overlaydata.CommandUpdateData {
			t.Fatalf("cmd.Kind = %v, want CommandUpdateData", cmd.Kind)
		}
		got = append(got, cmd.Data.Meter[0].Value)
	}
	if len(got) != commandQueueDepth {
		t.Fatalf("received %d commands, want %d", len(got), commandQueueDepth)
	}
	if got[0] != 2 {
		t.Fatalf("oldest surviving snapshot = %v, want 2 (1 dropped)", got[0])
	}
	if got[len(got)-1] != float64(commandQueueDepth+1) {
		t.Fatalf("newest snapshot = %v, want %d", got[len(got)-1], commandQueueDepth+1)
	}
}

func TestManagerShutdownDeliversAndCloses(t *testing.T) {
	m := NewManager(nil)
	ch := m.Register(overlaydata.KindTimers)

	m.PushData(overlaydata.KindTimers, overlaydata.OverlayData{Kind: overlaydata.KindTimers})
	m.Shutdown(context.Background())

	var sawShutdown bool
	for cmd := range ch {
		if cmd.Kind == overlaydata.CommandShutdown {
			sawShutdown = true
		}
	}
	if !sawShutdown {
		t.Fatalf("channel closed without delivering Shutdown")
	}

	// A second shutdown is a no-op on an empty manager.
	m.Shutdown(context.Background())
}

func TestManagerSendToUnknownKindIsNoOp(t *testing.T) {
	m := NewManager(nil)
	m.PushData(overlaydata.KindRaid, overlaydata.OverlayData{Kind: overlaydata.KindRaid})
	m.PushConfig(overlaydata.KindRaid, overlaydata.OverlayConfigUpdate{})
}

func TestManagerUnregisterClosesChannel(t *testing.T) {
	m := NewManager(nil)
	ch := m.Register(overlaydata.KindEffects)
	m.Unregister(overlaydata.KindEffects)
	if _, ok := <-ch; ok {
		t.Fatalf("expected closed channel after Unregister")
	}
}
