// Package checkpoint persists and restores the "resume this tailed file
// where we left off" state: the file path, byte offset, encounter id
// counter, and local player identity, written as MessagePack with
// msgpack.Marshal/Unmarshal.
package checkpoint

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"combatlogd/internal/session"
)

// State is what survives a restart: enough to resume tailing without
// reprocessing the whole file and without losing the player's identity
// or the encounter-id sequence (so ids stay monotonic across restarts).
type State struct {
	Path               string             `msgpack:"path"`
	ByteOffset         int64              `msgpack:"byte_offset"`
	EncounterIDCounter uint64             `msgpack:"encounter_id_counter"`
	Player             session.PlayerInfo `msgpack:"player_identity"`
}

// Save encodes state as MessagePack and writes it to path, replacing any
// existing file.
func Save(path string, state State) error {
	data, err := msgpack.Marshal(&state)
	if err != nil {
		return fmt.Errorf("checkpoint: encode: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("checkpoint: write %s: %w", path, err)
	}
	return nil
}

// Load decodes the checkpoint at path. A missing file is reported via
// the returned error (wrapping os.ErrNotExist); callers fall back to a
// fresh State{} rather than treating it as fatal.
func Load(path string) (State, error) {
	var state State
	data, err := os.ReadFile(path)
	if err != nil {
		return state, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	if err := msgpack.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("checkpoint: decode %s: %w", path, err)
	}
	return state, nil
}
