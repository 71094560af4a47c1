package database

import (
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountById(userId int) (User, error) {
	args := m.Called(userId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountByUsername(username string) (User, error) {
	args := m.Called(username)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) GetAccountsByIds(userIds []int) ([]User, error) {
	args := m.Called(userIds)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) SearchAccounts(userId int, name string) ([]User, error) {
	args := m.Called(userId, name)
	if users, ok := args.Get(0).([]User); ok {
		return users, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) UpdateAvatar(params UpdateAvatarParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockRepository) CreateChat(params CreateChatParams) (Chat, error) {
	args := m.Called(params)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) GetChat(chatId int) (Chat, error) {
	args := m.Called(chatId)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) ListChats(userId int) ([]Chat, error) {
	args := m.Called(userId)
	if chats, ok := args.Get(0).([]Chat); ok {
		return chats, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) ListOwnedGroups(userId int) ([]Chat, error) {
	args := m.Called(userId)
	if chats, ok := args.Get(0).([]Chat); ok {
		return chats, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) UpdateChat(chat Chat) error {
	args := m.Called(chat)
	return args.Error(0)
}
func (m *MockRepository) DeleteChat(chatId int) error {
	args := m.Called(chatId)
	return args.Error(0)
}
func (m *MockRepository) CreateMessage(msg Message) (int, error) {
	args := m.Called(msg)
	return args.Int(0), args.Error(1)
}
func (m *MockRepository) UpdateChatLastMessage(chatId, messageId int) error {
	args := m.Called(chatId, messageId)
	return args.Error(0)
}
func (m *MockRepository) GetMessage(messageId int) (Message, error) {
	args := m.Called(messageId)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockRepository) GetMessages(chatId, limit, offset int) ([]Message, int, error) {
	args := m.Called(chatId, limit, offset)
	if msgs, ok := args.Get(0).([]Message); ok {
		return msgs, args.Int(1), args.Error(2)
	}
	return nil, args.Int(1), args.Error(2)
}
func (m *MockRepository) DeleteMessage(messageId int) error {
	args := m.Called(messageId)
	return args.Error(0)
}
func (m *MockRepository) GetChatAttachmentIds(chatId int) ([]string, error) {
	args := m.Called(chatId)
	if ids, ok := args.Get(0).([]string); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) CreateFriendRequest(senderId, receiverId int) (FriendRequest, error) {
	args := m.Called(senderId, receiverId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockRepository) GetFriendRequest(requestId int) (FriendRequest, error) {
	args := m.Called(requestId)
	return args.Get(0).(FriendRequest), args.Error(1)
}
func (m *MockRepository) FriendRequestExists(userA, userB int) bool {
	args := m.Called(userA, userB)
	return args.Bool(0)
}
func (m *MockRepository) ListFriendRequests(receiverId int) ([]FriendRequest, error) {
	args := m.Called(receiverId)
	if reqs, ok := args.Get(0).([]FriendRequest); ok {
		return reqs, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *MockRepository) AcceptFriendRequest(req FriendRequest, chatName string) (Chat, error) {
	args := m.Called(req, chatName)
	return args.Get(0).(Chat), args.Error(1)
}
func (m *MockRepository) DeleteFriendRequest(requestId int) error {
	args := m.Called(requestId)
	return args.Error(0)
}
