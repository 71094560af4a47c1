// Package membership enforces the group chat membership rules. Every
// function validates before it mutates, so a returned error always leaves
// the chat untouched.
package membership

import (
	"errors"
	"math/rand"
	"slices"
	"strings"

	"github.com/npezzotti/gossip/internal/database"
)

const (
	MaxGroupSize = 100
	MinGroupSize = 3
)

var (
	ErrNotGroupChat      = errors.New("chat is not a group")
	ErrNotMember         = errors.New("user is not a member of the chat")
	ErrTargetNotMember   = errors.New("target user is not a member of the chat")
	ErrForbidden         = errors.New("action not permitted")
	ErrGroupSizeExceeded = errors.New("group size limit exceeded")
	ErrBelowMinimumSize  = errors.New("group would fall below the minimum size")
	ErrInvalidName       = errors.New("invalid group name")
)

// CreatorPolicy picks the next creator from the members remaining after the
// current creator leaves. remaining is never empty.
type CreatorPolicy func(remaining []int) int

// RandomCreator picks any remaining member.
func RandomCreator(remaining []int) int {
	return remaining[rand.Intn(len(remaining))]
}

// OldestMember picks the member who joined first.
func OldestMember(remaining []int) int {
	return remaining[0]
}

func validName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}

// NewGroup returns the parameters for a group created by creator with
// others, deduplicated and in the order given.
func NewGroup(creator int, name string, others []int) (database.CreateChatParams, error) {
	name, err := validName(name)
	if err != nil {
		return database.CreateChatParams{}, err
	}

	members := []int{creator}
	for _, id := range others {
		if !slices.Contains(members, id) {
			members = append(members, id)
		}
	}

	if len(members) < MinGroupSize {
		return database.CreateChatParams{}, ErrBelowMinimumSize
	}
	if len(members) > MaxGroupSize {
		return database.CreateChatParams{}, ErrGroupSizeExceeded
	}

	return database.CreateChatParams{
		Name:      name,
		IsGroup:   true,
		CreatorId: creator,
		Members:   members,
	}, nil
}

func requireGroupCreator(chat *database.Chat, actor int) error {
	if !chat.IsGroup {
		return ErrNotGroupChat
	}
	if !chat.IsMember(actor) {
		return ErrNotMember
	}
	if chat.CreatorId != actor {
		return ErrForbidden
	}
	return nil
}

// AddMembers appends the candidates that are not already members and
// returns them. Nothing is added when the result would exceed MaxGroupSize.
func AddMembers(chat *database.Chat, actor int, candidates []int) ([]int, error) {
	if err := requireGroupCreator(chat, actor); err != nil {
		return nil, err
	}

	var added []int
	for _, id := range candidates {
		if !chat.IsMember(id) && !slices.Contains(added, id) {
			added = append(added, id)
		}
	}
	if len(chat.Members)+len(added) > MaxGroupSize {
		return nil, ErrGroupSizeExceeded
	}

	chat.Members = append(chat.Members, added...)
	return added, nil
}

// RemoveMember removes target at the request of the creator.
func RemoveMember(chat *database.Chat, actor, target int) error {
	if err := requireGroupCreator(chat, actor); err != nil {
		return err
	}
	if target == chat.CreatorId {
		return ErrForbidden
	}
	if !chat.IsMember(target) {
		return ErrTargetNotMember
	}
	if len(chat.Members)-1 < MinGroupSize {
		return ErrBelowMinimumSize
	}

	chat.Members = without(chat.Members, target)
	return nil
}

// Leave removes actor from the chat. If actor was the creator, policy picks
// a successor among the remaining members.
func Leave(chat *database.Chat, actor int, policy CreatorPolicy) error {
	if !chat.IsGroup {
		return ErrNotGroupChat
	}
	if !chat.IsMember(actor) {
		return ErrNotMember
	}
	if len(chat.Members)-1 < MinGroupSize {
		return ErrBelowMinimumSize
	}

	remaining := without(chat.Members, actor)
	if chat.CreatorId == actor {
		if policy == nil {
			policy = RandomCreator
		}
		chat.CreatorId = policy(remaining)
	}
	chat.Members = remaining
	return nil
}

func Rename(chat *database.Chat, actor int, name string) error {
	if err := requireGroupCreator(chat, actor); err != nil {
		return err
	}

	name, err := validName(name)
	if err != nil {
		return err
	}

	chat.Name = name
	return nil
}

// CanDelete reports whether actor may delete the chat: the creator of a
// group, or either participant of a one-to-one chat.
func CanDelete(chat *database.Chat, actor int) error {
	if !chat.IsMember(actor) {
		return ErrNotMember
	}
	if chat.IsGroup && chat.CreatorId != actor {
		return ErrForbidden
	}
	return nil
}

func without(members []int, id int) []int {
	out := make([]int, 0, len(members))
	for _, m := range members {
		if m != id {
			out = append(out, m)
		}
	}
	return out
}
