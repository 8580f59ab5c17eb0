// Package overlay is the service<->overlay bridge: one
// bounded command channel per overlay window, fed by a single cooperative
// fan-out task, with drop-oldest backpressure so a slow or paused overlay
// never backs up the event pipeline. A single map mutex suffices because
// overlay channels are registered once at startup rather than per
// connection.
package overlay

import (
	"context"
	"strconv"
	"sync"

	"combatlogd/internal/overlaydata"
	"combatlogd/logging"
	overlaylog "combatlogd/logging/overlay"
)

// commandQueueDepth bounds each overlay's command channel. A window that
// is minimized or paused can fall behind; the newest state always wins
// over a complete history.
const commandQueueDepth = 4

type channel struct {
	ch chan overlaydata.OverlayCommand
}

// Manager owns the per-kind command channels and fans state updates out
// to them.
type Manager struct {
	mu       sync.Mutex
	channels map[overlaydata.Kind]*channel
	pub      logging.Publisher
}

// NewManager constructs an empty Manager. pub may be nil, in which case
// bridge events (client connect/disconnect, dropped messages) are not
// published anywhere.
func NewManager(pub logging.Publisher) *Manager {
	return &Manager{channels: make(map[overlaydata.Kind]*channel), pub: pub}
}

// Register creates (or replaces) the command channel for kind and
// returns the receive end for the overlay window's render loop to poll.
func (m *Manager) Register(kind overlaydata.Kind) <-chan overlaydata.OverlayCommand {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := &channel{ch: make(chan overlaydata.OverlayCommand, commandQueueDepth)}
	m.channels[kind] = ch
	overlaylog.ClientConnected(context.Background(), m.pub, overlaylog.ClientConnectedPayload{ClientID: string(kind)})
	return ch.ch
}

// Unregister closes and forgets kind's channel, e.g. when an overlay
// window is permanently closed by the user.
func (m *Manager) Unregister(kind overlaydata.Kind) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.channels[kind]; ok {
		close(ch.ch)
		delete(m.channels, kind)
		overlaylog.ClientDisconnected(context.Background(), m.pub, overlaylog.ClientDisconnectedPayload{
			ClientID: string(kind),
			Reason:   "unregistered",
		})
	}
}

// send enqueues cmd on kind's channel, dropping the oldest pending
// command in favor of it if the channel is full. Shutdown is never
// dropped.
func (m *Manager) send(kind overlaydata.Kind, cmd overlaydata.OverlayCommand) {
	m.mu.Lock()
	ch, ok := m.channels[kind]
	m.mu.Unlock()
	if !ok {
		return
	}
	if cmd.Kind == overlaydata.CommandShutdown {
		ch.ch <- cmd
		return
	}
	select {
	case ch.ch <- cmd:
	default:
		select {
		case <-ch.ch:
		default:
		}
		select {
		case ch.ch <- cmd:
		default:
		}
		overlaylog.MessageDropped(context.Background(), m.pub, overlaylog.MessageDroppedPayload{
			ClientID:    string(kind),
			MessageType: strconv.Itoa(int(cmd.Kind)),
		})
	}
}

// PushData sends a fresh OverlayData snapshot to kind's overlay.
func (m *Manager) PushData(kind overlaydata.Kind, data overlaydata.OverlayData) {
	m.send(kind, overlaydata.OverlayCommand{Kind: overlaydata.CommandUpdateData, Data: data})
}

// PushConfig sends a partial appearance/enablement update to kind's
// overlay.
func (m *Manager) PushConfig(kind overlaydata.Kind, update overlaydata.OverlayConfigUpdate) {
	m.send(kind, overlaydata.OverlayCommand{Kind: overlaydata.CommandUpdateConfig, ConfigUpdate: update})
}

// Shutdown sends every registered overlay a Shutdown command and closes
// its channel. Callers await each window's render-loop exit separately
// with their own bounded timeout; Manager only delivers the
// command.
func (m *Manager) Shutdown(ctx context.Context) {
	m.mu.Lock()
	kinds := make([]overlaydata.Kind, 0, len(m.channels))
	for kind := range m.channels {
		kinds = append(kinds, kind)
	}
	m.mu.Unlock()

	for _, kind := range kinds {
		select {
		case <-ctx.Done():
			return
		default:
		}
		m.send(kind, overlaydata.OverlayCommand{Kind: overlaydata.CommandShutdown})
		m.Unregister(kind)
	}
}
