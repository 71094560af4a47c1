package server

import (
	"slices"
	"sync"
)

// Presence tracks which users are currently viewing chats, along with the
// members that were told about it so they can be told again when the user
// goes away.
type Presence struct {
	mu     sync.RWMutex
	online map[int][]int
}

func NewPresence() *Presence {
	return &Presence{
		online: make(map[int][]int),
	}
}

// MarkOnline records userId as online with audience. It reports whether the
// user was previously offline.
func (p *Presence) MarkOnline(userId int, audience []int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	_, was := p.online[userId]
	p.online[userId] = slices.Clone(audience)
	return !was
}

// MarkOffline removes userId and returns the audience recorded by the last
// MarkOnline.
func (p *Presence) MarkOffline(userId int) ([]int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	audience, ok := p.online[userId]
	if !ok {
		return nil, false
	}
	delete(p.online, userId)
	return audience, true
}

func (p *Presence) IsOnline(userId int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	_, ok := p.online[userId]
	return ok
}

// Snapshot returns the online users in ascending order.
func (p *Presence) Snapshot() []int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	users := make([]int, 0, len(p.online))
	for id := range p.online {
		users = append(users, id)
	}
	slices.Sort(users)
	return users
}
