package core

import (
	"sort"
	"sync"
)

// Presence maps a user id to the connection that most recently identified as
// that user. A user has at most one recorded connection at any instant.
type Presence struct {
	mu    sync.RWMutex
	conns map[string]string
}

// NewPresence constructs an empty registry.
func NewPresence() *Presence {
	return &Presence{conns: make(map[string]string)}
}

// Register records connID as the live connection of userID, replacing any
// previous mapping. The previous connection is not touched.
func (p *Presence) Register(userID, connID string) {
	p.mu.Lock()
	p.conns[userID] = connID
	p.mu.Unlock()
}

// Unregister removes the mapping only if it still points at connID, so a
// stale connection going away cannot evict a newer one. Returns true if removed.
func (p *Presence) Unregister(userID, connID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if current, ok := p.conns[userID]; !ok || current != connID {
		return false
	}
	delete(p.conns, userID)
	return true
}

// Lookup returns the recorded connection for userID.
func (p *Presence) Lookup(userID string) (string, bool) {
	p.mu.RLock()
	connID, ok := p.conns[userID]
	p.mu.RUnlock()
	return connID, ok
}

// Snapshot returns the ids of all present users, sorted.
func (p *Presence) Snapshot() []string {
	p.mu.RLock()
	users := make([]string, 0, len(p.conns))
	for userID := range p.conns {
		users = append(users, userID)
	}
	p.mu.RUnlock()

	sort.Strings(users)
	return users
}
