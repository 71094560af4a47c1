package server

import (
	"fmt"
	"testing"

	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/stats"
	"github.com/npezzotti/gossip/internal/testutil"
	"github.com/npezzotti/gossip/internal/types"
	"github.com/stretchr/testify/mock"
)

// newTestChatServer creates a ChatServer backed by the given mocks.
func newTestChatServer(t *testing.T, db *database.MockRepository, blobs *blobstore.MockObjectStore, su *stats.MockStatsUpdater) *ChatServer {
	su.On("RegisterMetric", mock.Anything).Times(4)

	cs, err := NewChatServer(testutil.TestLogger(t), db, blobs, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs
}

// newTestClient returns a client with no websocket attached.
func newTestClient(t *testing.T, cs *ChatServer, userId int) *Client {
	return &Client{
		chatServer: cs,
		log:        testutil.TestLogger(t),
		user: types.User{
			Id:     userId,
			Name:   fmt.Sprintf("user%d", userId),
			Avatar: fmt.Sprintf("http://localhost/uploads/%d.png", userId),
		},
		send: make(chan *ServerMessage, sendBufferSize),
		stop: make(chan struct{}),
	}
}

func registerTestClient(t *testing.T, cs *ChatServer, userId int) *Client {
	c := newTestClient(t, cs, userId)
	cs.RegisterClient(c)
	return c
}

func drain(c *Client) []*ServerMessage {
	return testutil.Drain[*ServerMessage](c.send)
}

func eventsOf(msgs []*ServerMessage, kind EventKind) []*ServerMessage {
	var out []*ServerMessage
	for _, m := range msgs {
		if m.Event == kind {
			out = append(out, m)
		}
	}
	return out
}

func groupChat(id int, members ...int) database.Chat {
	return database.Chat{
		Id:        id,
		Name:      "group",
		IsGroup:   true,
		CreatorId: members[0],
		Members:   members,
	}
}
