package handlers

import "sort"

// raidMember is one known participant's identity, as last observed.
type raidMember struct {
	logID   int64
	name    string
	classID int64
}

// RaidRegistry tracks the set of players seen in the current session, so
// rules.FilterContext.IsGroupMember can be answered without the rule
// matcher reaching back into session state itself. It is not reset per
// encounter or per area: group membership persists across pulls for as long as the registry lives, the way a real group does.
type RaidRegistry struct {
	localPlayer int64
	members     map[int64]*raidMember
}

// NewRaidRegistry builds an empty registry.
func NewRaidRegistry() *RaidRegistry {
	return &RaidRegistry{members: make(map[int64]*raidMember)}
}

// SetLocalPlayer records which log id is the local player, for
// IsLocalPlayer / OtherPlayers filter distinctions.
func (r *RaidRegistry) SetLocalPlayer(logID int64) {
	r.localPlayer = logID
}

// NoteMember records or refreshes a player's identity.
func (r *RaidRegistry) NoteMember(logID int64, name string, classID int64) {
	r.members[logID] = &raidMember{logID: logID, name: name, classID: classID}
}

// Forget drops a member, e.g. when a group-disband marker is observed.
func (r *RaidRegistry) Forget(logID int64) {
	delete(r.members, logID)
}

// IsMember reports whether logID has been recorded as a group member.
func (r *RaidRegistry) IsMember(logID int64) bool {
	_, ok := r.members[logID]
	return ok
}

// IsLocalPlayer reports whether logID is the local player.
func (r *RaidRegistry) IsLocalPlayer(logID int64) bool {
	return r.localPlayer != 0 && logID == r.localPlayer
}

// Members returns every known member's log id, sorted for deterministic
// iteration order.
func (r *RaidRegistry) Members() []int64 {
	ids := make([]int64, 0, len(r.members))
	for id := range r.members {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Name returns the last-known display name for logID, or "" if unknown.
func (r *RaidRegistry) Name(logID int64) string {
	if m, ok := r.members[logID]; ok {
		return m.name
	}
	return ""
}
