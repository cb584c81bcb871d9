package core

import (
	"sort"
	"sync"
)

// Rooms tracks which live connections are subscribed to which rooms.
// It is not the participant list of a chat, only who is listening right now.
type Rooms struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{} // room -> conn ids
	byConn map[string]map[string]struct{} // conn id -> rooms
}

// NewRooms constructs an empty membership table.
func NewRooms() *Rooms {
	return &Rooms{
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]map[string]struct{}),
	}
}

// Join adds connID to room. Returns true if newly added.
func (r *Rooms) Join(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		r.rooms[room] = members
	}
	if _, exists := members[connID]; exists {
		return false
	}
	members[connID] = struct{}{}

	joined, ok := r.byConn[connID]
	if !ok {
		joined = make(map[string]struct{})
		r.byConn[connID] = joined
	}
	joined[room] = struct{}{}
	return true
}

// Leave removes connID from room. Returns true if it was a member.
func (r *Rooms) Leave(connID, room string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.leaveLocked(connID, room)
}

// LeaveAll drops connID from every room it joined and returns those rooms.
func (r *Rooms) LeaveAll(connID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	joined := r.byConn[connID]
	left := make([]string, 0, len(joined))
	for room := range joined {
		left = append(left, room)
	}
	for _, room := range left {
		r.leaveLocked(connID, room)
	}
	sort.Strings(left)
	return left
}

func (r *Rooms) leaveLocked(connID, room string) bool {
	members, ok := r.rooms[room]
	if !ok {
		return false
	}
	if _, exists := members[connID]; !exists {
		return false
	}

	delete(members, connID)
	if len(members) == 0 {
		delete(r.rooms, room)
	}

	if joined, ok := r.byConn[connID]; ok {
		delete(joined, room)
		if len(joined) == 0 {
			delete(r.byConn, connID)
		}
	}
	return true
}

// MembersOf returns a snapshot of the connections joined to room.
func (r *Rooms) MembersOf(room string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	ids := make([]string, 0, len(members))
	for connID := range members {
		ids = append(ids, connID)
	}
	return ids
}

// IsMember reports whether connID is currently joined to room.
func (r *Rooms) IsMember(connID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.rooms[room][connID]
	return ok
}

// Empty returns true if no connection is joined to room.
func (r *Rooms) Empty(room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room]) == 0
}
