package server

import "sync"

// Registry maps user ids to their live connections. A user may hold any
// number of connections and is absent once the last one is removed.
type Registry struct {
	mu    sync.RWMutex
	conns map[int]map[*Client]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[int]map[*Client]struct{}),
	}
}

// Register adds c under its bound user and returns the number of
// connections that user now holds.
func (r *Registry) Register(c *Client) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId := c.UserId()
	set, ok := r.conns[userId]
	if !ok {
		set = make(map[*Client]struct{})
		r.conns[userId] = set
	}
	set[c] = struct{}{}

	return len(set)
}

// Unregister removes c. ok is false if c was not registered.
func (r *Registry) Unregister(c *Client) (remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId := c.UserId()
	set, found := r.conns[userId]
	if !found {
		return 0, false
	}
	if _, found = set[c]; !found {
		return len(set), false
	}

	delete(set, c)
	if len(set) == 0 {
		delete(r.conns, userId)
	}

	return len(set), true
}

// Resolve returns the live connections of every given user. Users with no
// connection are skipped.
func (r *Registry) Resolve(userIds []int) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		clients []*Client
		seen    = make(map[int]struct{}, len(userIds))
	)
	for _, id := range userIds {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		for c := range r.conns[id] {
			clients = append(clients, c)
		}
	}

	return clients
}

func (r *Registry) Connected(userId int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.conns[userId]
	return ok
}

func (r *Registry) Clients() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var clients []*Client
	for _, set := range r.conns {
		for c := range set {
			clients = append(clients, c)
		}
	}
	return clients
}

// Users returns the number of users with at least one connection.
func (r *Registry) Users() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.conns)
}
