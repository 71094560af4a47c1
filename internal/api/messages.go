package api

import (
	"math"
	"net/http"
	"slices"
	"strconv"

	"github.com/npezzotti/gossip/internal/types"
)

const messagesPerPage = 20

type MessagesPage struct {
	Messages   []types.Message `json:"messages"`
	TotalPages int             `json:"total_pages"`
}

func (s *GoChatApp) sendAttachments(w http.ResponseWriter, r *http.Request) {
	user, _ := User(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	files, err := readFiles(r.MultipartForm.File["files"])
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	msg, err := s.cs.SendAttachments(r.Context(), user, chatId, r.FormValue("content"), files)
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJson(w, http.StatusAccepted, msg)
}

// getMessages returns one page of a chat's history. Page 1 holds the most
// recent messages; messages within a page are oldest first.
func (s *GoChatApp) getMessages(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	chatId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	page := 1
	if p := r.URL.Query().Get("page"); p != "" {
		page, err = strconv.Atoi(p)
		if err != nil || page < 1 {
			errResp := NewBadRequestError()
			s.writeJson(w, errResp.StatusCode, errResp)
			return
		}
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

	messages, total, err := s.db.GetMessages(chatId, messagesPerPage, (page-1)*messagesPerPage)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := MessagesPage{
		Messages:   make([]types.Message, 0, len(messages)),
		TotalPages: int(math.Ceil(float64(total) / messagesPerPage)),
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, toMessage(m))
	}
	slices.Reverse(resp.Messages)

	s.writeJson(w, http.StatusOK, resp)
}

func (s *GoChatApp) deleteMessage(w http.ResponseWriter, r *http.Request) {
	userId, _ := UserId(r.Context())

	messageId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.cs.DeleteMessage(r.Context(), userId, messageId); err != nil {
		s.writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
