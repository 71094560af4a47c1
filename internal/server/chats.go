package server

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/membership"
	"github.com/npezzotti/gossip/internal/types"
)

func (cs *ChatServer) loadChat(chatId int) (database.Chat, error) {
	chat, err := cs.db.GetChat(chatId)
	if err != nil {
		return database.Chat{}, fmt.Errorf("get chat %d: %w", chatId, err)
	}
	return chat, nil
}

func (cs *ChatServer) names(userIds []int) string {
	users, err := cs.db.GetAccountsByIds(userIds)
	if err != nil {
		cs.log.Printf("get accounts %v: %v", userIds, err)
		return ""
	}

	names := make([]string, len(users))
	for i, u := range users {
		names[i] = u.Name
	}
	return strings.Join(names, ",")
}

// CreateGroup creates a group owned by creator with the given members.
func (cs *ChatServer) CreateGroup(creator types.User, name string, others []int) (database.Chat, error) {
	params, err := membership.NewGroup(creator.Id, name, others)
	if err != nil {
		return database.Chat{}, err
	}

	chat, err := cs.db.CreateChat(params)
	if err != nil {
		return database.Chat{}, fmt.Errorf("create chat: %w", err)
	}

	cs.router.Deliver(chat.Members, EventAlert, AlertEvent{
		ChatId:  chat.Id,
		Message: fmt.Sprintf("Welcome to %s group", chat.Name),
	}, nil)
	cs.router.Deliver(without(chat.Members, creator.Id), EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)

	return chat, nil
}

// mutateChat loads a chat, applies change and stores the result while
// holding the chat's lock, so concurrent changes to one chat never overwrite
// each other. change reports whether there is anything to store. The
// members before the change are returned with the updated chat.
func (cs *ChatServer) mutateChat(chatId int, change func(*database.Chat) (bool, error)) (database.Chat, []int, error) {
	unlock := cs.lockChat(chatId)
	defer unlock()

	chat, err := cs.loadChat(chatId)
	if err != nil {
		return database.Chat{}, nil, err
	}
	before := slices.Clone(chat.Members)

	changed, err := change(&chat)
	if err != nil {
		return database.Chat{}, nil, err
	}
	if !changed {
		return chat, before, nil
	}

	if err := cs.db.UpdateChat(chat); err != nil {
		return database.Chat{}, nil, fmt.Errorf("update chat %d: %w", chatId, err)
	}

	return chat, before, nil
}

// AddMembers adds candidates to a group and returns the ids that were not
// already members.
func (cs *ChatServer) AddMembers(actor, chatId int, candidates []int) ([]int, error) {
	var added []int
	chat, _, err := cs.mutateChat(chatId, func(c *database.Chat) (bool, error) {
		var err error
		added, err = membership.AddMembers(c, actor, candidates)
		return len(added) > 0, err
	})
	if err != nil {
		return nil, err
	}
	if len(added) == 0 {
		return added, nil
	}

	cs.router.Deliver(chat.Members, EventAlert, AlertEvent{
		ChatId:  chat.Id,
		Message: fmt.Sprintf("%s has been added in the group", cs.names(added)),
	}, nil)
	cs.router.Deliver(chat.Members, EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)

	return added, nil
}

func (cs *ChatServer) RemoveMember(actor, chatId, target int) error {
	chat, before, err := cs.mutateChat(chatId, func(c *database.Chat) (bool, error) {
		return true, membership.RemoveMember(c, actor, target)
	})
	if err != nil {
		return err
	}

	cs.router.Deliver(chat.Members, EventAlert, AlertEvent{
		ChatId:  chat.Id,
		Message: fmt.Sprintf("%s has been removed from the group", cs.names([]int{target})),
	}, nil)
	cs.router.Deliver(before, EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)

	return nil
}

// LeaveGroup removes actor from a group, handing the group to another
// member if actor created it.
func (cs *ChatServer) LeaveGroup(actor, chatId int) error {
	chat, _, err := cs.mutateChat(chatId, func(c *database.Chat) (bool, error) {
		return true, membership.Leave(c, actor, cs.creatorPolicy)
	})
	if err != nil {
		return err
	}

	cs.router.Deliver(chat.Members, EventAlert, AlertEvent{
		ChatId:  chat.Id,
		Message: fmt.Sprintf("%s has left the group", cs.names([]int{actor})),
	}, nil)
	cs.router.Deliver(chat.Members, EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)

	return nil
}

func (cs *ChatServer) RenameGroup(actor, chatId int, name string) (database.Chat, error) {
	chat, _, err := cs.mutateChat(chatId, func(c *database.Chat) (bool, error) {
		return true, membership.Rename(c, actor, name)
	})
	if err != nil {
		return database.Chat{}, err
	}

	cs.router.Deliver(chat.Members, EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)
	return chat, nil
}

// DeleteChat deletes a chat with its messages, then removes every
// attachment blob of those messages in one call.
func (cs *ChatServer) DeleteChat(ctx context.Context, actor, chatId int) error {
	unlock := cs.lockChat(chatId)
	chat, ids, err := cs.deleteChat(actor, chatId)
	unlock()
	if err != nil {
		return err
	}

	cs.deleteBlobs(ctx, ids)
	cs.router.Deliver(chat.Members, EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)

	return nil
}

func (cs *ChatServer) deleteChat(actor, chatId int) (database.Chat, []string, error) {
	chat, err := cs.loadChat(chatId)
	if err != nil {
		return database.Chat{}, nil, err
	}

	if err := membership.CanDelete(&chat, actor); err != nil {
		return database.Chat{}, nil, err
	}

	ids, err := cs.db.GetChatAttachmentIds(chatId)
	if err != nil {
		return database.Chat{}, nil, fmt.Errorf("get attachments of chat %d: %w", chatId, err)
	}

	if err := cs.db.DeleteChat(chatId); err != nil {
		return database.Chat{}, nil, fmt.Errorf("delete chat %d: %w", chatId, err)
	}

	return chat, ids, nil
}

func without(ids []int, id int) []int {
	out := make([]int, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
