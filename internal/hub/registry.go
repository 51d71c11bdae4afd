package hub

import (
	"sync"
)

// Registry maps an authenticated user identity to its single live connection.
// A second connection for the same identity replaces the first
// (last-connect-wins); there is no multi-device fan-out.
type Registry struct {
	mu      sync.RWMutex
	clients map[int64]*Client
}

func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[int64]*Client),
	}
}

// Register stores the connection for a user and returns the connection it
// replaced, if any. The caller is responsible for closing the replaced one.
func (r *Registry) Register(userID int64, c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[userID]
	if prev == c {
		return nil
	}
	r.clients[userID] = c
	return prev
}

// Unregister removes the connection for a user, but only if the registered
// connection is the one given. A stale pump tearing down after replacement
// must not evict the newer connection. Idempotent; returns whether an entry
// was removed.
func (r *Registry) Unregister(userID int64, c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.clients[userID]
	if !ok || current != c {
		return false
	}
	delete(r.clients, userID)
	return true
}

// Lookup returns the live connection for a user, if any.
func (r *Registry) Lookup(userID int64) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userID]
	return c, ok
}

// All returns a snapshot of every live connection.
func (r *Registry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	return clients
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
