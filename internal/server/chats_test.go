package server

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/membership"
	"github.com/npezzotti/gossip/internal/stats"
	"github.com/npezzotti/gossip/internal/testutil"
	"github.com/npezzotti/gossip/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newChatsTestServer(t *testing.T, db *database.MockRepository, blobs *blobstore.MockObjectStore) *ChatServer {
	return newTestChatServer(t, db, blobs, (&stats.MockStatsUpdater{}).Permissive())
}

func TestCreateGroup(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	params := database.CreateChatParams{Name: "climbers", IsGroup: true, CreatorId: 1, Members: []int{1, 2, 3}}
	db.On("CreateChat", params).Return(database.Chat{Id: 5, Name: "climbers", IsGroup: true, CreatorId: 1, Members: []int{1, 2, 3}}, nil).Once()

	cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
	creator := registerTestClient(t, cs, 1)
	member := registerTestClient(t, cs, 2)

	chat, err := cs.CreateGroup(creator.User(), "climbers", []int{2, 3})
	assert.NoError(t, err)
	assert.Equal(t, 5, chat.Id)

	creatorMsgs := drain(creator)
	if alerts := eventsOf(creatorMsgs, EventAlert); assert.Len(t, alerts, 1) {
		assert.Equal(t, AlertEvent{ChatId: 5, Message: "Welcome to climbers group"}, alerts[0].Data)
	}
	assert.Empty(t, eventsOf(creatorMsgs, EventRefetchChats), "expected creator not to be asked to refetch")

	memberMsgs := drain(member)
	assert.Len(t, eventsOf(memberMsgs, EventAlert), 1)
	assert.Len(t, eventsOf(memberMsgs, EventRefetchChats), 1)
}

func TestCreateGroup_TooSmall(t *testing.T) {
	db := &database.MockRepository{}
	cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})

	_, err := cs.CreateGroup(types.User{Id: 1}, "pair", []int{2})
	assert.ErrorIs(t, err, membership.ErrBelowMinimumSize)
	db.AssertNotCalled(t, "CreateChat", mock.Anything)
}

func TestAddMembers(t *testing.T) {
	t.Run("adds and announces new members", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3), nil)
		db.On("UpdateChat", mock.MatchedBy(func(c database.Chat) bool {
			return len(c.Members) == 5
		})).Return(nil).Once()
		db.On("GetAccountsByIds", []int{4, 5}).Return([]database.User{{Id: 4, Name: "dana"}, {Id: 5, Name: "eli"}}, nil)

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		newcomer := registerTestClient(t, cs, 4)

		added, err := cs.AddMembers(1, 5, []int{3, 4, 5})
		assert.NoError(t, err)
		assert.Equal(t, []int{4, 5}, added)

		msgs := drain(newcomer)
		if alerts := eventsOf(msgs, EventAlert); assert.Len(t, alerts, 1) {
			assert.Equal(t, "dana,eli has been added in the group", alerts[0].Data.(AlertEvent).Message)
		}
		assert.Len(t, eventsOf(msgs, EventRefetchChats), 1)
	})

	t.Run("size exceeded", func(t *testing.T) {
		members := make([]int, 99)
		for i := range members {
			members[i] = i + 1
		}

		db := &database.MockRepository{}
		db.On("GetChat", 5).Return(groupChat(5, members...), nil)

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		_, err := cs.AddMembers(1, 5, []int{200, 201})
		assert.ErrorIs(t, err, membership.ErrGroupSizeExceeded)
		db.AssertNotCalled(t, "UpdateChat", mock.Anything)
	})

	t.Run("nothing new", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3), nil)

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		added, err := cs.AddMembers(1, 5, []int{2})
		assert.NoError(t, err)
		assert.Empty(t, added)
		db.AssertNotCalled(t, "UpdateChat", mock.Anything)
	})

	t.Run("chat not found", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChat", 5).Return(database.Chat{}, database.ErrNotFound)

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		_, err := cs.AddMembers(1, 5, []int{4})
		assert.ErrorIs(t, err, database.ErrNotFound)
	})
}

func TestRemoveMember(t *testing.T) {
	t.Run("removed member is told to refetch", func(t *testing.T) {
		db := &database.MockRepository{}
		defer db.AssertExpectations(t)

		db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3, 4), nil)
		db.On("UpdateChat", mock.MatchedBy(func(c database.Chat) bool {
			return len(c.Members) == 3 && !c.IsMember(4)
		})).Return(nil).Once()
		db.On("GetAccountsByIds", []int{4}).Return([]database.User{{Id: 4, Name: "dana"}}, nil)

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		removed := registerTestClient(t, cs, 4)
		remaining := registerTestClient(t, cs, 2)

		assert.NoError(t, cs.RemoveMember(1, 5, 4))

		removedMsgs := drain(removed)
		assert.Empty(t, eventsOf(removedMsgs, EventAlert))
		assert.Len(t, eventsOf(removedMsgs, EventRefetchChats), 1)

		if alerts := eventsOf(drain(remaining), EventAlert); assert.Len(t, alerts, 1) {
			assert.Equal(t, "dana has been removed from the group", alerts[0].Data.(AlertEvent).Message)
		}
	})

	t.Run("below minimum", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3), nil)

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		assert.ErrorIs(t, cs.RemoveMember(1, 5, 3), membership.ErrBelowMinimumSize)
		db.AssertNotCalled(t, "UpdateChat", mock.Anything)
	})

	t.Run("store failure", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3, 4), nil)
		db.On("UpdateChat", mock.Anything).Return(errors.New("connection reset"))

		cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
		member := registerTestClient(t, cs, 2)

		assert.Error(t, cs.RemoveMember(1, 5, 4))
		assert.Empty(t, drain(member), "expected no notification when the update fails")
	})
}

func TestLeaveGroup(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	var updated database.Chat
	db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3, 4), nil)
	db.On("UpdateChat", mock.Anything).Run(func(args mock.Arguments) {
		updated = args.Get(0).(database.Chat)
	}).Return(nil).Once()
	db.On("GetAccountsByIds", []int{1}).Return([]database.User{{Id: 1, Name: "alice"}}, nil)

	cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})
	cs.SetCreatorPolicy(membership.OldestMember)
	member := registerTestClient(t, cs, 3)

	assert.NoError(t, cs.LeaveGroup(1, 5))
	assert.Equal(t, []int{2, 3, 4}, updated.Members)
	assert.Equal(t, 2, updated.CreatorId, "expected creator to be handed over")

	if alerts := eventsOf(drain(member), EventAlert); assert.Len(t, alerts, 1) {
		assert.Equal(t, "alice has left the group", alerts[0].Data.(AlertEvent).Message)
	}
}

func TestRenameGroup(t *testing.T) {
	db := &database.MockRepository{}
	db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3), nil)
	db.On("UpdateChat", mock.MatchedBy(func(c database.Chat) bool { return c.Name == "renamed" })).Return(nil).Once()

	cs := newChatsTestServer(t, db, &blobstore.MockObjectStore{})

	_, err := cs.RenameGroup(2, 5, "renamed")
	assert.ErrorIs(t, err, membership.ErrForbidden)

	chat, err := cs.RenameGroup(1, 5, "renamed")
	assert.NoError(t, err)
	assert.Equal(t, "renamed", chat.Name)
	db.AssertExpectations(t)
}

func TestDeleteChat(t *testing.T) {
	ids := []string{"a.png", "b.png", "c.pdf"}

	for _, deleteErr := range []error{nil, errors.New("object store unavailable")} {
		t.Run("delete error "+errString(deleteErr), func(t *testing.T) {
			db := &database.MockRepository{}
			defer db.AssertExpectations(t)
			blobs := &blobstore.MockObjectStore{}
			defer blobs.AssertExpectations(t)

			db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3), nil)
			db.On("GetChatAttachmentIds", 5).Return(ids, nil).Once()
			db.On("DeleteChat", 5).Return(nil).Once()
			blobs.On("Delete", mock.Anything, ids).Return(deleteErr).Once()

			cs := newChatsTestServer(t, db, blobs)
			member := registerTestClient(t, cs, 3)

			assert.NoError(t, cs.DeleteChat(context.Background(), 1, 5))
			assert.Len(t, eventsOf(drain(member), EventRefetchChats), 1)
		})
	}

	t.Run("not creator", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChat", 5).Return(groupChat(5, 1, 2, 3), nil)
		blobs := &blobstore.MockObjectStore{}

		cs := newChatsTestServer(t, db, blobs)
		assert.ErrorIs(t, cs.DeleteChat(context.Background(), 2, 5), membership.ErrForbidden)
		db.AssertNotCalled(t, "DeleteChat", mock.Anything)
		blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("one to one without attachments", func(t *testing.T) {
		db := &database.MockRepository{}
		db.On("GetChat", 6).Return(database.Chat{Id: 6, Members: []int{1, 2}}, nil)
		db.On("GetChatAttachmentIds", 6).Return([]string{}, nil)
		db.On("DeleteChat", 6).Return(nil).Once()
		blobs := &blobstore.MockObjectStore{}

		cs := newChatsTestServer(t, db, blobs)
		assert.NoError(t, cs.DeleteChat(context.Background(), 2, 6))
		blobs.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})
}

// chatStore keeps a single chat in memory so that the outcome of concurrent
// changes can be checked.
type chatStore struct {
	database.MockRepository
	mu   sync.Mutex
	chat database.Chat
}

func (s *chatStore) GetChat(chatId int) (database.Chat, error) {
	s.mu.Lock()
	chat := s.chat
	chat.Members = slices.Clone(s.chat.Members)
	s.mu.Unlock()

	// give a competing change time to read the same state
	time.Sleep(20 * time.Millisecond)
	return chat, nil
}

func (s *chatStore) UpdateChat(chat database.Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chat = chat
	s.chat.Members = slices.Clone(chat.Members)
	return nil
}

func (s *chatStore) current() database.Chat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chat
}

func newChatStoreServer(t *testing.T, chat database.Chat) (*ChatServer, *chatStore) {
	store := &chatStore{chat: chat}
	store.On("GetAccountsByIds", mock.Anything).Return([]database.User{}, nil).Maybe()

	su := (&stats.MockStatsUpdater{}).Permissive()
	su.On("RegisterMetric", mock.Anything).Times(4)

	cs, err := NewChatServer(testutil.TestLogger(t), store, &blobstore.MockObjectStore{}, su)
	if err != nil {
		t.Fatalf("failed to create test ChatServer: %v", err)
	}
	return cs, store
}

func runConcurrently(fns ...func() error) []error {
	errs := make([]error, len(fns))
	var wg sync.WaitGroup
	for i, fn := range fns {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}
	wg.Wait()
	return errs
}

func TestConcurrentMembershipChanges(t *testing.T) {
	t.Run("two members leave", func(t *testing.T) {
		cs, store := newChatStoreServer(t, groupChat(7, 1, 2, 3, 4, 5))

		errs := runConcurrently(
			func() error { return cs.LeaveGroup(2, 7) },
			func() error { return cs.LeaveGroup(3, 7) },
		)

		assert.Equal(t, []error{nil, nil}, errs)
		assert.Equal(t, []int{1, 4, 5}, store.current().Members)
		assert.Empty(t, cs.chatLocks, "expected chat locks to be released")
	})

	t.Run("creator and member leave", func(t *testing.T) {
		cs, store := newChatStoreServer(t, groupChat(7, 1, 2, 3, 4, 5))

		errs := runConcurrently(
			func() error { return cs.LeaveGroup(1, 7) },
			func() error { return cs.LeaveGroup(2, 7) },
		)

		assert.Equal(t, []error{nil, nil}, errs)
		chat := store.current()
		assert.Equal(t, []int{3, 4, 5}, chat.Members)
		assert.True(t, chat.IsMember(chat.CreatorId), "expected creator %d to be a remaining member", chat.CreatorId)
	})

	t.Run("overlapping additions", func(t *testing.T) {
		cs, store := newChatStoreServer(t, groupChat(7, 1, 2, 3))

		errs := runConcurrently(
			func() error { _, err := cs.AddMembers(1, 7, []int{4}); return err },
			func() error { _, err := cs.AddMembers(1, 7, []int{5}); return err },
			func() error { _, err := cs.RenameGroup(1, 7, "renamed"); return err },
		)

		assert.Equal(t, []error{nil, nil, nil}, errs)
		chat := store.current()
		assert.ElementsMatch(t, []int{1, 2, 3, 4, 5}, chat.Members)
		assert.Equal(t, "renamed", chat.Name)
	})

	t.Run("leave below minimum is refused once", func(t *testing.T) {
		cs, store := newChatStoreServer(t, groupChat(7, 1, 2, 3, 4))

		errs := runConcurrently(
			func() error { return cs.LeaveGroup(2, 7) },
			func() error { return cs.LeaveGroup(3, 7) },
		)

		var refused int
		for _, err := range errs {
			if errors.Is(err, membership.ErrBelowMinimumSize) {
				refused++
			}
		}
		assert.Equal(t, 1, refused, "expected exactly one leave to be refused")
		assert.Len(t, store.current().Members, 3)
	})
}
