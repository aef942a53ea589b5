// Package presence tracks which users hold a live realtime connection.
package presence

import (
	"sync"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/skillswap/internal/models"
)

// Handle is a live connection that can accept outbound events.
type Handle interface {
	// ID identifies the connection for logging.
	ID() string
	// Send queues ev without blocking and reports whether it was accepted.
	Send(ev models.Event) bool
}

// Registry maps each user to at most one live handle. The latest
// registration wins. Handles must be comparable.
type Registry struct {
	mu      sync.RWMutex
	handles map[uuid.UUID]Handle
	owners  map[Handle]uuid.UUID
}

func NewRegistry() *Registry {
	return &Registry{
		handles: make(map[uuid.UUID]Handle),
		owners:  make(map[Handle]uuid.UUID),
	}
}

// Register binds userID to h and returns the handle it replaced, if any.
// A handle is bound to one user at a time; rebinding h releases its old user.
func (r *Registry) Register(userID uuid.UUID, h Handle) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[h]; ok && owner != userID {
		delete(r.handles, owner)
	}
	prev := r.handles[userID]
	r.handles[userID] = h
	r.owners[h] = userID
	if prev == nil || prev == h {
		return nil
	}
	delete(r.owners, prev)
	return prev
}

// Unregister removes the entry currently holding h and returns its user.
// A superseded handle is no longer stored, so a late disconnect is a no-op.
func (r *Registry) Unregister(h Handle) (uuid.UUID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	userID, ok := r.owners[h]
	if !ok {
		return uuid.Nil, false
	}
	delete(r.owners, h)
	delete(r.handles, userID)
	return userID, true
}

func (r *Registry) Lookup(userID uuid.UUID) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handles[userID]
	return h, ok
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Count returns the number of online users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}
