package server

import "log"

// Router delivers events to the live connections of a set of users.
// Delivery is best effort: offline users are skipped and a connection whose
// send buffer is full drops the event.
type Router struct {
	log      *log.Logger
	registry *Registry
}

func NewRouter(logger *log.Logger, registry *Registry) *Router {
	return &Router{
		log:      logger,
		registry: registry,
	}
}

// Deliver queues an event on every connection of targets except skip and
// returns the number of connections it was queued on.
func (rt *Router) Deliver(targets []int, kind EventKind, payload any, skip *Client) int {
	clients := rt.registry.Resolve(targets)
	if len(clients) == 0 {
		return 0
	}

	msg := NewEvent(kind, payload)
	var queued int
	for _, c := range clients {
		if c == skip {
			continue
		}
		if c.queueMessage(msg) {
			queued++
		} else {
			rt.log.Printf("dropped %s event for user %d", kind, c.UserId())
		}
	}

	return queued
}
