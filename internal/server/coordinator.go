package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/npezzotti/gossip/internal/auth"
	"github.com/npezzotti/gossip/internal/blobstore"
	"github.com/npezzotti/gossip/internal/database"
	"github.com/npezzotti/gossip/internal/stats"
	"github.com/npezzotti/gossip/internal/types"
)

const MaxAttachments = 5

// SendState is the progress of a message send intent.
type SendState int

const (
	Received SendState = iota
	Delivered
	PersistAttempted
	Persisted
	PersistFailed
)

func (s SendState) String() string {
	switch s {
	case Received:
		return "received"
	case Delivered:
		return "delivered"
	case PersistAttempted:
		return "persist_attempted"
	case Persisted:
		return "persisted"
	case PersistFailed:
		return "persist_failed"
	default:
		return fmt.Sprintf("SendState(%d)", int(s))
	}
}

type persistJob struct {
	msg types.Message
}

// SendMessage delivers a message from sender to every live connection of
// the chat's members and queues it for persistence. The returned message
// carries its transient id only; the durable id is assigned later.
func (cs *ChatServer) SendMessage(sender types.User, chatId int, content string, attachments []types.Attachment) (types.Message, error) {
	if len(attachments) > MaxAttachments {
		return types.Message{}, ErrTooManyAttachments
	}
	if strings.TrimSpace(content) == "" && len(attachments) == 0 {
		return types.Message{}, ErrEmptyMessage
	}

	chat, err := cs.loadChatForSender(sender.Id, chatId)
	if err != nil {
		return types.Message{}, err
	}

	return cs.deliver(sender, chat, content, attachments), nil
}

// SendAttachments uploads files and sends them as one message. If any
// upload fails nothing is delivered or stored.
func (cs *ChatServer) SendAttachments(ctx context.Context, sender types.User, chatId int, content string, files []blobstore.File) (types.Message, error) {
	if len(files) == 0 {
		return types.Message{}, ErrEmptyMessage
	}
	if len(files) > MaxAttachments {
		return types.Message{}, ErrTooManyAttachments
	}

	chat, err := cs.loadChatForSender(sender.Id, chatId)
	if err != nil {
		return types.Message{}, err
	}

	// uploads made now could never be persisted
	if cs.shuttingDown() {
		return types.Message{}, ErrShuttingDown
	}

	blobs, err := cs.blobs.Upload(ctx, files)
	if err != nil {
		return types.Message{}, fmt.Errorf("upload attachments: %w", err)
	}

	attachments := make([]types.Attachment, len(blobs))
	for i, b := range blobs {
		attachments[i] = types.Attachment{PublicId: b.PublicId, Url: b.Url}
	}

	return cs.deliver(sender, chat, content, attachments), nil
}

func (cs *ChatServer) loadChatForSender(senderId, chatId int) (database.Chat, error) {
	if chatId == 0 {
		return database.Chat{}, ErrMissingChat
	}

	chat, err := cs.db.GetChat(chatId)
	if err != nil {
		return database.Chat{}, fmt.Errorf("get chat %d: %w", chatId, err)
	}
	if !chat.IsMember(senderId) {
		return database.Chat{}, ErrNotChatMember
	}

	return chat, nil
}

func (cs *ChatServer) deliver(sender types.User, chat database.Chat, content string, attachments []types.Attachment) types.Message {
	msg := types.Message{
		TransientId: uuid.NewString(),
		ChatId:      chat.Id,
		Sender: types.Sender{
			Id:     sender.Id,
			Name:   sender.Name,
			Avatar: sender.Avatar,
		},
		Content:     content,
		Attachments: attachments,
		CreatedAt:   Now(),
	}

	cs.router.Deliver(chat.Members, EventNewMessage, NewMessageEvent{ChatId: chat.Id, Message: msg}, nil)
	cs.router.Deliver(chat.Members, EventNewMessageAlert, ChatEvent{ChatId: chat.Id}, nil)
	cs.stats.Incr(stats.NumMessagesDelivered)

	if !cs.enqueuePersist(persistJob{msg: msg}) {
		cs.log.Printf("message %s in chat %d not persisted: %s", msg.TransientId, chat.Id, PersistFailed)
		cs.stats.Incr(stats.NumPersistFailures)
	}

	return msg
}

// enqueuePersist hands job to the persist worker. It fails once Shutdown
// has started; a job it accepts is always seen by the worker's final drain.
func (cs *ChatServer) enqueuePersist(job persistJob) bool {
	cs.persistMu.RLock()
	defer cs.persistMu.RUnlock()

	if cs.closed {
		return false
	}
	cs.persistChan <- job
	return true
}

// persist writes the message and then moves the chat's last message
// pointer to it. Failures are logged and counted, never reported to the
// clients that already received the message.
func (cs *ChatServer) persist(job persistJob) SendState {
	msg := job.msg

	attachments := make([]database.Attachment, len(msg.Attachments))
	for i, a := range msg.Attachments {
		attachments[i] = database.Attachment{PublicId: a.PublicId, Url: a.Url}
	}

	id, err := cs.db.CreateMessage(database.Message{
		ChatId:       msg.ChatId,
		SenderId:     msg.Sender.Id,
		SenderName:   msg.Sender.Name,
		SenderAvatar: msg.Sender.Avatar,
		Content:      msg.Content,
		Attachments:  attachments,
		CreatedAt:    msg.CreatedAt,
	})
	if err != nil {
		cs.log.Printf("persist message %s in chat %d: %v", msg.TransientId, msg.ChatId, err)
		cs.stats.Incr(stats.NumPersistFailures)
		return PersistFailed
	}

	if err := cs.db.UpdateChatLastMessage(msg.ChatId, id); err != nil {
		cs.log.Printf("update last message of chat %d to %d: %v", msg.ChatId, id, err)
		cs.stats.Incr(stats.NumPersistFailures)
		return PersistFailed
	}

	return Persisted
}

// Typing relays a typing indicator to the given members, excluding the
// connection it came from.
func (cs *ChatServer) Typing(c *Client, kind EventKind, t *Typing) {
	if t.ChatId == 0 {
		return
	}
	cs.router.Deliver(t.Members, kind, ChatEvent{ChatId: t.ChatId}, c)
}

// ChatJoined marks the client's user online and sends the presence
// snapshot to members.
func (cs *ChatServer) ChatJoined(c *Client, v *ChatView) error {
	if v.UserId != 0 && v.UserId != c.UserId() {
		return fmt.Errorf("%w: user %d cannot join as %d", auth.ErrUnauthenticated, c.UserId(), v.UserId)
	}

	cs.sessionMu.Lock()
	if !cs.registry.Connected(c.UserId()) {
		cs.sessionMu.Unlock()
		return ErrNotConnected
	}
	if cs.presence.MarkOnline(c.UserId(), v.Members) {
		cs.stats.Incr(stats.NumOnlineUsers)
	}
	snapshot := cs.presence.Snapshot()
	cs.sessionMu.Unlock()

	cs.router.Deliver(v.Members, EventOnlineUsers, OnlineUsersEvent{Users: snapshot}, nil)
	return nil
}

// ChatLeaved marks the client's user offline and sends the presence
// snapshot to members.
func (cs *ChatServer) ChatLeaved(c *Client, v *ChatView) error {
	if v.UserId != 0 && v.UserId != c.UserId() {
		return fmt.Errorf("%w: user %d cannot leave as %d", auth.ErrUnauthenticated, c.UserId(), v.UserId)
	}

	cs.sessionMu.Lock()
	if _, ok := cs.presence.MarkOffline(c.UserId()); ok {
		cs.stats.Decr(stats.NumOnlineUsers)
	}
	snapshot := cs.presence.Snapshot()
	cs.sessionMu.Unlock()

	cs.router.Deliver(v.Members, EventOnlineUsers, OnlineUsersEvent{Users: snapshot}, nil)
	return nil
}

// DeleteMessage removes a message sent by actor and its attachment blobs.
func (cs *ChatServer) DeleteMessage(ctx context.Context, actor, messageId int) error {
	msg, err := cs.db.GetMessage(messageId)
	if err != nil {
		return fmt.Errorf("get message %d: %w", messageId, err)
	}
	if msg.SenderId != actor {
		return ErrNotMessageSender
	}

	chat, err := cs.db.GetChat(msg.ChatId)
	if err != nil {
		return fmt.Errorf("get chat %d: %w", msg.ChatId, err)
	}

	if err := cs.db.DeleteMessage(messageId); err != nil {
		return fmt.Errorf("delete message %d: %w", messageId, err)
	}

	ids := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		ids = append(ids, a.PublicId)
	}
	cs.deleteBlobs(ctx, ids)

	cs.router.Deliver(chat.Members, EventRefetchChats, ChatEvent{ChatId: chat.Id}, nil)
	return nil
}

// deleteBlobs issues a single delete for ids. Failures leave orphaned blobs
// and are only logged.
func (cs *ChatServer) deleteBlobs(ctx context.Context, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := cs.blobs.Delete(ctx, ids); err != nil {
		cs.log.Printf("delete blobs %v: %v", ids, err)
	}
}
