package database

import (
	"database/sql"
	"time"
)

type User struct {
	Id           int
	Username     string
	Name         string
	Bio          string
	PasswordHash string
	AvatarId     string
	AvatarUrl    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Chat is a one-to-one or group conversation. Members are kept in the order
// they joined the chat.
type Chat struct {
	Id            int
	Name          string
	IsGroup       bool
	CreatorId     int
	Members       []int
	LastMessageId sql.NullInt64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsMember reports whether userId belongs to the chat.
func (c *Chat) IsMember(userId int) bool {
	for _, m := range c.Members {
		if m == userId {
			return true
		}
	}
	return false
}

type Attachment struct {
	PublicId string
	Url      string
}

type Message struct {
	Id           int
	ChatId       int
	SenderId     int
	SenderName   string
	SenderAvatar string
	Content      string
	Attachments  []Attachment
	CreatedAt    time.Time
}

type FriendRequest struct {
	Id           int
	SenderId     int
	SenderName   string
	SenderAvatar string
	ReceiverId   int
	CreatedAt    time.Time
}

type CreateAccountParams struct {
	Username     string
	Name         string
	Bio          string
	PasswordHash string
}

type UpdateAvatarParams struct {
	UserId    int
	AvatarId  string
	AvatarUrl string
}

type CreateChatParams struct {
	Name      string
	IsGroup   bool
	CreatorId int
	Members   []int
}
