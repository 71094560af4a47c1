package server

import (
	"context"
	"log"
	"sync"

	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/membership"
	"github.com/npezzotti/gossip/internal/stats"
)

const persistQueueSize = 256

// ChatServer coordinates live connections, presence and message delivery
// with the durable store.
type ChatServer struct {
	log      *log.Logger
	db       database.Repository
	blobs    blobstore.ObjectStore
	stats    stats.StatsProvider
	registry *Registry
	presence *Presence
	router   *Router

	// sessionMu serializes changes spanning the registry and presence.
	sessionMu     sync.Mutex
	creatorPolicy membership.CreatorPolicy

	chatLocksMu sync.Mutex
	chatLocks   map[int]*chatLock

	// persistMu guards closed. Enqueuers hold it for reading while they
	// send, so once Shutdown has set closed no job can arrive after the
	// final drain.
	persistMu   sync.RWMutex
	closed      bool
	persistChan chan persistJob
	stop        chan struct{}
	done        chan struct{}
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatServer(logger *log.Logger, db database.Repository, blobs blobstore.ObjectStore, su stats.StatsProvider) (*ChatServer, error) {
	registry := NewRegistry()
	cs := &ChatServer{
		log:           logger,
		db:            db,
		blobs:         blobs,
		stats:         su,
		registry:      registry,
		presence:      NewPresence(),
		router:        NewRouter(logger, registry),
		creatorPolicy: membership.RandomCreator,
		chatLocks:     make(map[int]*chatLock),
		persistChan:   make(chan persistJob, persistQueueSize),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}

	for _, m := range []string{
		stats.NumActiveConnections,
		stats.NumOnlineUsers,
		stats.NumMessagesDelivered,
		stats.NumPersistFailures,
	} {
		su.RegisterMetric(m)
	}

	return cs, nil
}

// SetCreatorPolicy replaces the policy used to pick a new group creator
// when the current one leaves.
func (cs *ChatServer) SetCreatorPolicy(p membership.CreatorPolicy) {
	cs.creatorPolicy = p
}

// Run persists delivered messages in the order they were delivered until
// Shutdown is called, then drains whatever is still queued.
func (cs *ChatServer) Run() {
	for {
		select {
		case job := <-cs.persistChan:
			cs.persist(job)
		case <-cs.stop:
			for {
				select {
				case job := <-cs.persistChan:
					cs.persist(job)
				default:
					close(cs.done)
					return
				}
			}
		}
	}
}

func (cs *ChatServer) Shutdown(ctx context.Context) error {
	cs.log.Println("shutting down chat server")
	for _, c := range cs.registry.Clients() {
		c.stopClient()
	}

	cs.persistMu.Lock()
	if !cs.closed {
		cs.closed = true
		close(cs.stop)
	}
	cs.persistMu.Unlock()

	select {
	case <-cs.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) shuttingDown() bool {
	cs.persistMu.RLock()
	defer cs.persistMu.RUnlock()
	return cs.closed
}

// lockChat serializes read-modify-write sequences on one chat and returns
// the matching unlock. Entries are dropped once nobody holds or waits for
// them.
func (cs *ChatServer) lockChat(chatId int) func() {
	cs.chatLocksMu.Lock()
	l, ok := cs.chatLocks[chatId]
	if !ok {
		l = &chatLock{}
		cs.chatLocks[chatId] = l
	}
	l.refs++
	cs.chatLocksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		cs.chatLocksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(cs.chatLocks, chatId)
		}
		cs.chatLocksMu.Unlock()
	}
}

func (cs *ChatServer) RegisterClient(c *Client) {
	n := cs.registry.Register(c)
	cs.stats.Incr(stats.NumActiveConnections)
	cs.log.Printf("registered connection for user %d (%d open)", c.UserId(), n)
}

// UnregisterClient removes c. When it was the user's last connection the
// user is marked offline and the members they were viewing with receive the
// new presence snapshot. Unknown clients are ignored.
func (cs *ChatServer) UnregisterClient(c *Client) {
	cs.sessionMu.Lock()
	remaining, ok := cs.registry.Unregister(c)
	if !ok {
		cs.sessionMu.Unlock()
		return
	}
	cs.stats.Decr(stats.NumActiveConnections)

	var (
		audience []int
		offline  bool
		snapshot []int
	)
	if remaining == 0 {
		audience, offline = cs.presence.MarkOffline(c.UserId())
		if offline {
			cs.stats.Decr(stats.NumOnlineUsers)
			snapshot = cs.presence.Snapshot()
		}
	}
	cs.sessionMu.Unlock()

	cs.log.Printf("unregistered connection for user %d (%d open)", c.UserId(), remaining)
	if offline {
		cs.router.Deliver(audience, EventOnlineUsers, OnlineUsersEvent{Users: snapshot}, nil)
	}
}

// Notify delivers an event to the live connections of userIds.
func (cs *ChatServer) Notify(userIds []int, kind EventKind, payload any) int {
	return cs.router.Deliver(userIds, kind, payload, nil)
}

// IsOnline reports whether userId is currently marked present.
func (cs *ChatServer) IsOnline(userId int) bool {
	return cs.presence.IsOnline(userId)
}

// DisconnectUser closes every connection of userId. Each connection
// unregisters itself once its reader exits.
func (cs *ChatServer) DisconnectUser(userId int) int {
	clients := cs.registry.Resolve([]int{userId})
	for _, c := range clients {
		c.stopClient()
	}
	return len(clients)
}
