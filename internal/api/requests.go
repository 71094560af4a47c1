package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/server"
	"github.com/npezzotti/gossip/internal/types"
)

type FriendRequestRequest struct {
	UserId int `json:"user_id"`
}

type AnswerFriendRequestRequest struct {
	Accept bool `json:"accept"`
}

func (s *GoChatApp) sendFriendRequest(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	var req FriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserId <= 0 || req.UserId == userId {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if _, err := s.db.GetAccountById(req.UserId); err != nil {
		s.writeError(w, err)
		return
	}

	if s.db.FriendRequestExists(userId, req.UserId) {
		s.writeJson(w, http.StatusBadRequest, NewValidationError(errors.New("request already sent")))
		return
	}

	fr, err := s.db.CreateFriendRequest(userId, req.UserId)
	if err != nil {
		if errors.Is(err, database.ErrConstraintViolation) {
			s.writeJson(w, http.StatusBadRequest, NewValidationError(errors.New("request already sent")))
			return
		}
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusCreated, types.FriendRequest{
		Id: fr.Id,
		Sender: types.Sender{
			Id:     fr.SenderId,
			Name:   fr.SenderName,
			Avatar: fr.SenderAvatar,
		},
		CreatedAt: fr.CreatedAt,
	})
}

// answerFriendRequest accepts or rejects a pending request addressed to the
// current user. Accepting opens a one-to-one chat between both users.
func (s *GoChatApp) answerFriendRequest(w http.ResponseWriter, r *http.Request) {
	user, _ := User(r.Context())

	requestId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var req AnswerFriendRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	fr, err := s.db.GetFriendRequest(requestId)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if fr.ReceiverId != user.Id {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if !req.Accept {
		if err := s.db.DeleteFriendRequest(fr.Id); err != nil {
			s.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	chat, err := s.db.AcceptFriendRequest(fr, fmt.Sprintf("%s-%s", fr.SenderName, user.Name))
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.cs.Notify(chat.Members, server.EventRefetchChats, server.ChatEvent{ChatId: chat.Id})
	s.writeJson(w, http.StatusOK, map[string]any{"chat_id": chat.Id, "sender_id": fr.SenderId})
}

func (s *GoChatApp) listFriendRequests(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	reqs, err := s.db.ListFriendRequests(userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	out := make([]types.FriendRequest, 0, len(reqs))
	for _, fr := range reqs {
		out = append(out, types.FriendRequest{
			Id: fr.Id,
			Sender: types.Sender{
				Id:     fr.SenderId,
				Name:   fr.SenderName,
				Avatar: fr.SenderAvatar,
			},
			CreatedAt: fr.CreatedAt,
		})
	}

	s.writeJson(w, http.StatusOK, out)
}

// listFriends returns the partners of the user's one-to-one chats. With
// chat_id set, members of that chat are left out.
func (s *GoChatApp) listFriends(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chats, err := s.db.ListChats(userId)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var exclude *database.Chat
	if v := r.URL.Query().Get("chat_id"); v != "" {
		chatId, err := strconv.Atoi(v)
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
		exclude = &chat
	}

	var ids []int
	for _, c := range chats {
		if c.IsGroup {
			continue
		}
		for _, m := range c.Members {
			if m != userId && (exclude == nil || !exclude.IsMember(m)) {
				ids = append(ids, m)
			}
		}
	}

	friends := make([]types.User, 0, len(ids))
	if len(ids) > 0 {
		accounts, err := s.db.GetAccountsByIds(ids)
		if err != nil {
			s.writeError(w, err)
			return
		}
		for _, a := range accounts {
			friends = append(friends, toUser(a))
		}
	}

	s.writeJson(w, http.StatusOK, friends)
}
