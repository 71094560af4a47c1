package database

import "errors"

var (
	ErrNotFound            = errors.New("record not found")
	ErrConstraintViolation = errors.New("constraint violation")
)

type Repository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	GetAccountById(userId int) (User, error)
	GetAccountByUsername(username string) (User, error)
	GetAccountsByIds(userIds []int) ([]User, error)
	SearchAccounts(userId int, name string) ([]User, error)
	UpdateAvatar(params UpdateAvatarParams) (User, error)
	CreateChat(params CreateChatParams) (Chat, error)
	GetChat(chatId int) (Chat, error)
	ListChats(userId int) ([]Chat, error)
	ListOwnedGroups(userId int) ([]Chat, error)
	UpdateChat(chat Chat) error
	DeleteChat(chatId int) error
	CreateMessage(msg Message) (int, error)
	UpdateChatLastMessage(chatId, messageId int) error
	GetMessage(messageId int) (Message, error)
	GetMessages(chatId, limit, offset int) ([]Message, int, error)
	DeleteMessage(messageId int) error
	GetChatAttachmentIds(chatId int) ([]string, error)
	CreateFriendRequest(senderId, receiverId int) (FriendRequest, error)
	GetFriendRequest(requestId int) (FriendRequest, error)
	FriendRequestExists(userA, userB int) bool
	ListFriendRequests(receiverId int) ([]FriendRequest, error)
	AcceptFriendRequest(req FriendRequest, chatName string) (Chat, error)
	DeleteFriendRequest(requestId int) error
}
