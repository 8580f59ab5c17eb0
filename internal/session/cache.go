// Package session implements SessionCache (player identity, current
// area, a bounded ring of live encounters, and the finalized-summary
// history) and ParsingSession, the read/write-locked owner of one
// tailed file's cache.
package session

import (
	"time"

	"combatlogd/internal/encounter"
)

// PlayerInfo identifies the local player this session belongs to.
type PlayerInfo struct {
	Name    string
	LogID   int64
	ClassID int64
}

// AreaInfo describes the zone the player currently occupies.
type AreaInfo struct {
	AreaID         int64
	AreaName       string
	DifficultyID   int64
	DifficultyName string
	EnteredAt      time.Time
	Generation     uint64
}

// BossEncounterDefinition names an NPC class id recognized as a boss in
// the current area, shared immutably across the session and copied by
// value into each new encounter's classification context.
type BossEncounterDefinition struct {
	ClassID     int64
	Name        string
	ContentType string
}

// defaultRingSize is enough to let a just-finalized encounter still
// answer end-of-fight queries
// while the next one starts, without growing unbounded over a long
// session.
const defaultRingSize = 2

// Cache is SessionCache: player identity, current area, the live
// encounter ring, the per-encounter seen-NPC set, and finalized summary
// history.
type Cache struct {
	Player            PlayerInfo
	PlayerInitialized bool

	CurrentArea AreaInfo
	BossDefs    []BossEncounterDefinition

	ring     []*encounter.Encounter
	ringSize int
	nextID   uint64

	History []encounter.Summary

	// SeenNpcInstances is per-encounter scope: cleared whenever a new
	// encounter is pushed onto the ring.
	SeenNpcInstances map[int64]bool
}

// NewCache constructs a Cache with the default ring size.
func NewCache() *Cache {
	return NewCacheWithRingSize(defaultRingSize)
}

// NewCacheWithRingSize constructs a Cache with an explicit ring size,
// mainly for tests exercising ring eviction.
func NewCacheWithRingSize(ringSize int) *Cache {
	if ringSize < 1 {
		ringSize = 1
	}
	return &Cache{
		ringSize:         ringSize,
		SeenNpcInstances: make(map[int64]bool),
	}
}

// Current returns the live encounter most recently pushed, or nil if none
// has started yet. Per the design notes, all live queries go through
// Current; the ring is a memory bound, not a query cache.
func (c *Cache) Current() *encounter.Encounter {
	if len(c.ring) == 0 {
		return nil
	}
	return c.ring[len(c.ring)-1]
}

// EncounterCounter returns the most recently assigned encounter id, for
// checkpointing.
func (c *Cache) EncounterCounter() uint64 {
	return c.nextID
}

// RestoreEncounterCounter sets the next encounter id source so ids stay
// monotonic across a restart instead of restarting at 1. It must be
// called before the first StartNewEncounter on a freshly constructed
// Cache.
func (c *Cache) RestoreEncounterCounter(n uint64) {
	c.nextID = n
}

// StartNewEncounter appends a new encounter to the ring (evicting the
// oldest if over capacity), clears the per-encounter seen-NPC set, and
// returns the new encounter. Encounter ids are monotonic across the
// Cache's lifetime.
func (c *Cache) StartNewEncounter() *encounter.Encounter {
	c.nextID++
	enc := encounter.New(c.nextID)
	c.ring = append(c.ring, enc)
	if len(c.ring) > c.ringSize {
		c.ring = c.ring[len(c.ring)-c.ringSize:]
	}
	c.SeenNpcInstances = make(map[int64]bool)
	return enc
}

// FinalizeCurrent appends summary to History. It does not remove the
// corresponding Encounter from the ring; the next StartNewEncounter call
// will evict it naturally once the ring is over capacity.
func (c *Cache) FinalizeCurrent(summary encounter.Summary) {
	c.History = append(c.History, summary)
}

// EnterArea records an area transition, incrementing Generation. It
// clears BossDefs; the caller is responsible for lazily loading the new
// area's boss registry before processing the next event.
func (c *Cache) EnterArea(areaID int64, areaName string, difficultyID int64, difficultyName string, at time.Time) {
	c.CurrentArea = AreaInfo{
		AreaID:         areaID,
		AreaName:       areaName,
		DifficultyID:   difficultyID,
		DifficultyName: difficultyName,
		EnteredAt:      at,
		Generation:     c.CurrentArea.Generation + 1,
	}
	c.BossDefs = nil
}

// NoteNpcInstance records logID as seen in the current encounter and
// reports whether this is its first observation (keyed by log_id, not
// class_id, so each spawn is distinct).
func (c *Cache) NoteNpcInstance(logID int64) (firstSeen bool) {
	if c.SeenNpcInstances[logID] {
		return false
	}
	c.SeenNpcInstances[logID] = true
	return true
}
