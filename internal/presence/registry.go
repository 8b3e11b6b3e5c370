package presence

import (
	"sort"
	"time"
)

// Member is the presence entry of one connection inside a room.
type Member struct {
	ConnectionID string    `json:"connectionId"`
	UserID       string    `json:"userId,omitempty"`
	UserName     string    `json:"userName"`
	Color        string    `json:"color"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// LeaveResult describes a removal from a room. Last is set when the room
// became empty and must be torn down.
type LeaveResult struct {
	RoomID string
	Member Member
	Last   bool
}

type JoinResult struct {
	// Roster lists every member of the room after the join, joiner included.
	Roster []Member
	// Created is set on the EMPTY to ACTIVE transition of the room.
	Created bool
	// Rejoin is set when the connection was already a member of the room.
	Rejoin bool
	// Left is the room the connection was in before, if it changed rooms.
	Left *LeaveResult
}

// Registry tracks which connection belongs to which room.
// It is not safe for concurrent use; the relay owns it from a single goroutine.
type Registry struct {
	rooms map[string]map[string]Member
	index map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]map[string]Member),
		index: make(map[string]string),
	}
}

func (r *Registry) Join(roomID string, member Member) JoinResult {
	var result JoinResult

	if current, ok := r.index[member.ConnectionID]; ok && current != roomID {
		left, _ := r.Leave(member.ConnectionID)
		result.Left = &left
	}

	members, ok := r.rooms[roomID]
	if !ok {
		members = make(map[string]Member)
		r.rooms[roomID] = members
		result.Created = true
	}
	if previous, ok := members[member.ConnectionID]; ok {
		result.Rejoin = true
		member.JoinedAt = previous.JoinedAt
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	members[member.ConnectionID] = member
	r.index[member.ConnectionID] = roomID

	result.Roster = r.Members(roomID)
	return result
}

// Leave removes the connection from its room. A second call for the same
// connection reports false and has no effect.
func (r *Registry) Leave(connectionID string) (LeaveResult, bool) {
	roomID, ok := r.index[connectionID]
	if !ok {
		return LeaveResult{}, false
	}
	delete(r.index, connectionID)

	members := r.rooms[roomID]
	member := members[connectionID]
	delete(members, connectionID)

	result := LeaveResult{RoomID: roomID, Member: member}
	if len(members) == 0 {
		delete(r.rooms, roomID)
		result.Last = true
	}
	return result, true
}

func (r *Registry) RoomOf(connectionID string) (string, bool) {
	roomID, ok := r.index[connectionID]
	return roomID, ok
}

func (r *Registry) Member(connectionID string) (Member, bool) {
	roomID, ok := r.index[connectionID]
	if !ok {
		return Member{}, false
	}
	member, ok := r.rooms[roomID][connectionID]
	return member, ok
}

func (r *Registry) Contains(roomID, connectionID string) bool {
	_, ok := r.rooms[roomID][connectionID]
	return ok
}

// Members returns the roster ordered by join time.
func (r *Registry) Members(roomID string) []Member {
	members := make([]Member, 0, len(r.rooms[roomID]))
	for _, m := range r.rooms[roomID] {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].JoinedAt.Equal(members[j].JoinedAt) {
			return members[i].ConnectionID < members[j].ConnectionID
		}
		return members[i].JoinedAt.Before(members[j].JoinedAt)
	})
	return members
}

// Peers returns the connection ids of a room, except the given one.
func (r *Registry) Peers(roomID, except string) []string {
	peers := make([]string, 0, len(r.rooms[roomID]))
	for id := range r.rooms[roomID] {
		if id != except {
			peers = append(peers, id)
		}
	}
	sort.Strings(peers)
	return peers
}

func (r *Registry) RoomSizes() map[string]int {
	sizes := make(map[string]int, len(r.rooms))
	for roomID, members := range r.rooms {
		sizes[roomID] = len(members)
	}
	return sizes
}

func (r *Registry) Len() int {
	return len(r.rooms)
}
