package types

import (
	"time"
)

type User struct {
	Id        int       `json:"id"`
	Username  string    `json:"username"`
	Name      string    `json:"name"`
	Bio       string    `json:"bio,omitempty"`
	Avatar    string    `json:"avatar,omitempty"`
	Password  string    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

type Chat struct {
	Id            int       `json:"id"`
	Name          string    `json:"name"`
	IsGroup       bool      `json:"is_group"`
	CreatorId     int       `json:"creator_id,omitempty"`
	Avatars       []string  `json:"avatars,omitempty"`
	Members       []User    `json:"members"`
	LastMessageId int       `json:"last_message_id,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
	UpdatedAt     time.Time `json:"updated_at,omitempty"`
}

type Sender struct {
	Id     int    `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

type Attachment struct {
	PublicId string `json:"public_id"`
	Url      string `json:"url"`
}

// Message is the client facing representation of a chat message. Messages
// delivered in real time carry a TransientId assigned at delivery; Id is the
// durable store id and stays zero until the message has been persisted.
type Message struct {
	Id          int          `json:"id,omitempty"`
	TransientId string       `json:"transient_id,omitempty"`
	ChatId      int          `json:"chat_id"`
	Sender      Sender       `json:"sender"`
	Content     string       `json:"content"`
	Attachments []Attachment `json:"attachments"`
	CreatedAt   time.Time    `json:"created_at"`
}

type FriendRequest struct {
	Id        int       `json:"id"`
	Sender    Sender    `json:"sender"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
