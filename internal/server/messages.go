package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/membership"
	"github.com/npezzotti/gossip/internal/types"
)

type EventKind string

const (
	EventNewMessage      EventKind = "new_message"
	EventNewMessageAlert EventKind = "new_message_alert"
	EventStartTyping     EventKind = "start_typing"
	EventStopTyping      EventKind = "stop_typing"
	EventOnlineUsers     EventKind = "online_users"
	EventAlert           EventKind = "alert"
	EventRefetchChats    EventKind = "refetch_chats"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is a frame received from a client. Exactly one of the
// intent fields is expected to be set.
type ClientMessage struct {
	BaseMessage
	NewMessage  *NewMessage `json:"new_message,omitempty"`
	StartTyping *Typing     `json:"start_typing,omitempty"`
	StopTyping  *Typing     `json:"stop_typing,omitempty"`
	ChatJoined  *ChatView   `json:"chat_joined,omitempty"`
	ChatLeaved  *ChatView   `json:"chat_leaved,omitempty"`
}

type NewMessage struct {
	ChatId  int    `json:"chat_id"`
	Members []int  `json:"members"`
	Content string `json:"content"`
}

type Typing struct {
	ChatId  int   `json:"chat_id"`
	Members []int `json:"members"`
}

type ChatView struct {
	UserId  int   `json:"user_id"`
	Members []int `json:"members"`
}

type ServerMessage struct {
	BaseMessage
	Response *Response `json:"response,omitempty"`
	Event    EventKind `json:"event,omitempty"`
	Data     any       `json:"data,omitempty"`
}

type Response struct {
	ResponseCode int    `json:"response_code"`
	Error        string `json:"error,omitempty"`
	Data         any    `json:"data,omitempty"`
}

type NewMessageEvent struct {
	ChatId  int           `json:"chat_id"`
	Message types.Message `json:"message"`
}

type ChatEvent struct {
	ChatId int `json:"chat_id"`
}

type AlertEvent struct {
	ChatId  int    `json:"chat_id"`
	Message string `json:"message"`
}

type OnlineUsersEvent struct {
	Users []int `json:"users"`
}

func NewEvent(kind EventKind, data any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Event:       kind,
		Data:        data,
	}
}

func newResponse(id, code int, errMsg string, data any) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Error:        errMsg,
			Data:         data,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func NoErrOK(id int, data any) *ServerMessage {
	return newResponse(id, http.StatusOK, "", data)
}

func NoErrAccepted(id int, data any) *ServerMessage {
	return newResponse(id, http.StatusAccepted, "", data)
}

func ErrChatNotFound(id int) *ServerMessage {
	return newResponse(id, http.StatusNotFound, "chat not found", nil)
}

func ErrUnauthorized(id int) *ServerMessage {
	return newResponse(id, http.StatusUnauthorized, "unauthorized", nil)
}

func ErrForbidden(id int) *ServerMessage {
	return newResponse(id, http.StatusForbidden, "forbidden", nil)
}

func ErrInternalError(id int) *ServerMessage {
	return newResponse(id, http.StatusInternalServerError, "internal server error", nil)
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return newResponse(id, http.StatusServiceUnavailable, "service unavailable", nil)
}

func ErrInvalidMessage(id int) *ServerMessage {
	return newResponse(id, http.StatusBadRequest, "invalid message format", nil)
}

func ErrBadRequest(id int, err error) *ServerMessage {
	return newResponse(id, http.StatusBadRequest, err.Error(), nil)
}

// errorResponse maps an error returned by a ChatServer operation to the
// response sent back on the websocket.
func errorResponse(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		return ErrUnauthorized(id)
	case errors.Is(err, database.ErrNotFound):
		return ErrChatNotFound(id)
	case errors.Is(err, ErrNotChatMember), errors.Is(err, ErrNotConnected),
		errors.Is(err, membership.ErrForbidden), errors.Is(err, membership.ErrNotMember):
		return ErrForbidden(id)
	case errors.Is(err, ErrShuttingDown):
		return ErrServiceUnavailable(id)
	case IsValidationError(err):
		return ErrBadRequest(id, err)
	default:
		return ErrInternalError(id)
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
