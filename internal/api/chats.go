package api

import (
	"encoding/json"
	"net/http"

	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/types"
)

type CreateGroupRequest struct {
	Name    string `json:"name"`
	Members []int  `json:"members"`
}

type AddMembersRequest struct {
	Members []int `json:"members"`
}

type RenameGroupRequest struct {
	Name string `json:"name"`
}

// chatViews resolves the members of chats and renders them for userId. A
// one-to-one chat is named after the other participant.
func (s *GoChatApp) chatViews(userId int, chats []database.Chat) ([]types.Chat, error) {
	var ids []int
	seen := make(map[int]struct{})
	for _, c := range chats {
		for _, m := range c.Members {
			if _, ok := seen[m]; !ok {
				seen[m] = struct{}{}
				ids = append(ids, m)
			}
		}
	}

	users := make(map[int]types.User, len(ids))
	if len(ids) > 0 {
		accounts, err := s.db.GetAccountsByIds(ids)
		if err != nil {
			return nil, err
		}
		for _, a := range accounts {
			users[a.Id] = toUser(a)
		}
	}

	views := make([]types.Chat, 0, len(chats))
	for _, c := range chats {
		view := types.Chat{
			Id:        c.Id,
			Name:      c.Name,
			IsGroup:   c.IsGroup,
			CreatorId: c.CreatorId,
			Members:   make([]types.User, 0, len(c.Members)),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		}
		if c.LastMessageId.Valid {
			view.LastMessageId = int(c.LastMessageId.Int64)
		}

		for _, m := range c.Members {
			u, ok := users[m]
			if !ok {
				continue
			}
			view.Members = append(view.Members, u)

			if c.IsGroup {
				if len(view.Avatars) < 3 && u.Avatar != "" {
					view.Avatars = append(view.Avatars, u.Avatar)
				}
			} else if m != userId {
				view.Name = u.Name
				if u.Avatar != "" {
					view.Avatars = []string{u.Avatar}
				}
			}
		}

		views = append(views, view)
	}

	return views, nil
}

func (s *GoChatApp) createGroup(w http.ResponseWriter, r *http.Request) {
	user, _ := User(r.Context())

	var req CreateGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, err := s.cs.CreateGroup(user, req.Name, req.Members)
	if err != nil {
		s.writeError(w, err)
		return
	}

	views, err := s.chatViews(user.Id, []database.Chat{chat})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, views[0])
}

func (s *GoChatApp) listChats(w http.ResponseWriter, r *http.Request, list func(int) ([]database.Chat, error)) {
	userId, _ := UserId(r.Context())

	chats, err := list(userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	views, err := s.chatViews(userId, chats)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, views)
}

func (s *GoChatApp) myChats(w http.ResponseWriter, r *http.Request) {
	s.listChats(w, r, s.db.ListChats)
}

func (s *GoChatApp) myGroups(w http.ResponseWriter, r *http.Request) {
	s.listChats(w, r, s.db.ListOwnedGroups)
}

func (s *GoChatApp) chatDetails(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, err := s.db.GetChat(chatId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !chat.IsMember(userId) {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	views, err := s.chatViews(userId, []database.Chat{chat})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, views[0])
}

func (s *GoChatApp) addMembers(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AddMembersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Members) == 0 {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	added, err := s.cs.AddMembers(userId, chatId, req.Members)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"added": added})
}

func (s *GoChatApp) removeMember(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	target, err := pathId(r, "userId")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.RemoveMember(userId, chatId, target); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) leaveGroup(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.LeaveGroup(userId, chatId); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *GoChatApp) renameGroup(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req RenameGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	chat, err := s.cs.RenameGroup(userId, chatId, req.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusOK, map[string]any{"id": chat.Id, "name": chat.Name})
}

func (s *GoChatApp) deleteChat(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.DeleteChat(r.Context(), userId, chatId); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
