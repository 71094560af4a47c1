package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
)

const (
	accountColumns = "id, username, name, bio, avatar_id, avatar_url, created_at, updated_at"
	chatColumns    = "c.id, c.name, c.is_group, COALESCE(c.creator_id, 0), c.last_message_id, c.created_at, c.updated_at"

	insertMemberQuery = "INSERT INTO chat_members (chat_id, account_id, position) VALUES ($1, $2, $3)"

	searchLimit = 50
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern matches name anywhere in a column, treating LIKE wildcards in
// name literally.
func likePattern(name string) string {
	return "%" + likeEscaper.Replace(name) + "%"
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (User, error) {
	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Name,
		&u.Bio,
		&u.AvatarId,
		&u.AvatarUrl,
		&u.CreatedAt,
		&u.UpdatedAt,
	)

	return u, err
}

func scanChat(row rowScanner) (Chat, error) {
	var c Chat
	err := row.Scan(
		&c.Id,
		&c.Name,
		&c.IsGroup,
		&c.CreatorId,
		&c.LastMessageId,
		&c.CreatedAt,
		&c.UpdatedAt,
	)

	return c, err
}

func (db *PgRepository) CreateAccount(params CreateAccountParams) (User, error) {
	now := time.Now().UTC()
	row := db.conn.QueryRow(
		"INSERT INTO accounts (username, name, bio, password_hash, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+accountColumns,
		params.Username,
		params.Name,
		params.Bio,
		params.PasswordHash,
		now,
		now,
	)

	u, err := scanUser(row)
	return u, mapError(err)
}

func (db *PgRepository) GetAccountById(userId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+accountColumns+" FROM accounts WHERE id = $1 LIMIT 1",
		userId,
	)

	u, err := scanUser(row)
	return u, mapError(err)
}

func (db *PgRepository) GetAccountByUsername(username string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT "+accountColumns+", password_hash FROM accounts WHERE username = $1 LIMIT 1",
		username,
	)

	var u User
	err := row.Scan(
		&u.Id,
		&u.Username,
		&u.Name,
		&u.Bio,
		&u.AvatarId,
		&u.AvatarUrl,
		&u.CreatedAt,
		&u.UpdatedAt,
		&u.PasswordHash,
	)

	return u, mapError(err)
}

func (db *PgRepository) GetAccountsByIds(userIds []int) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+" FROM accounts WHERE id = ANY($1) ORDER BY id",
		pq.Array(userIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]User, 0, len(userIds))
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

// SearchAccounts finds accounts whose name contains name, ignoring case.
// userId and the partners of userId's one-to-one chats are left out.
func (db *PgRepository) SearchAccounts(userId int, name string) ([]User, error) {
	rows, err := db.conn.Query(
		"SELECT "+accountColumns+" FROM accounts "+
			"WHERE id <> $1 AND name ILIKE $2 AND id NOT IN ("+
			"SELECT other.account_id FROM chat_members me "+
			"JOIN chats c ON c.id = me.chat_id AND NOT c.is_group "+
			"JOIN chat_members other ON other.chat_id = c.id "+
			"WHERE me.account_id = $1) "+
			"ORDER BY name, id LIMIT $3",
		userId,
		likePattern(name),
		searchLimit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func (db *PgRepository) UpdateAvatar(params UpdateAvatarParams) (User, error) {
	row := db.conn.QueryRow(
		"UPDATE accounts SET avatar_id = $2, avatar_url = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING "+accountColumns,
		params.UserId,
		params.AvatarId,
		params.AvatarUrl,
		time.Now().UTC(),
	)

	u, err := scanUser(row)
	return u, mapError(err)
}

func (db *PgRepository) CreateChat(params CreateChatParams) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var chat Chat
	chat, err = createChat(tx, params)
	if err != nil {
		return Chat{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func createChat(tx *sql.Tx, params CreateChatParams) (Chat, error) {
	now := time.Now().UTC()
	var creator sql.NullInt64
	if params.IsGroup && params.CreatorId != 0 {
		creator = sql.NullInt64{Int64: int64(params.CreatorId), Valid: true}
	}

	row := tx.QueryRow(
		"INSERT INTO chats AS c (name, is_group, creator_id, created_at, updated_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING "+chatColumns,
		params.Name,
		params.IsGroup,
		creator,
		now,
		now,
	)

	chat, err := scanChat(row)
	if err != nil {
		return Chat{}, err
	}

	for i, member := range params.Members {
		if _, err := tx.Exec(insertMemberQuery, chat.Id, member, i); err != nil {
			return Chat{}, err
		}
	}
	chat.Members = append([]int(nil), params.Members...)

	return chat, nil
}

func (db *PgRepository) chatMembers(chatId int) ([]int, error) {
	rows, err := db.conn.Query(
		"SELECT account_id FROM chat_members WHERE chat_id = $1 ORDER BY position",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		members = append(members, id)
	}

	return members, rows.Err()
}

func (db *PgRepository) GetChat(chatId int) (Chat, error) {
	row := db.conn.QueryRow(
		"SELECT "+chatColumns+" FROM chats c WHERE c.id = $1 LIMIT 1",
		chatId,
	)

	chat, err := scanChat(row)
	if err != nil {
		return Chat{}, mapError(err)
	}

	chat.Members, err = db.chatMembers(chat.Id)
	if err != nil {
		return Chat{}, fmt.Errorf("fetch members: %w", err)
	}

	return chat, nil
}

func (db *PgRepository) listChats(query string, args ...any) ([]Chat, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}

	var chats []Chat
	for rows.Next() {
		chat, err := scanChat(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan chat: %w", err)
		}
		chats = append(chats, chat)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chats {
		chats[i].Members, err = db.chatMembers(chats[i].Id)
		if err != nil {
			return nil, fmt.Errorf("fetch members: %w", err)
		}
	}

	return chats, nil
}

func (db *PgRepository) ListChats(userId int) ([]Chat, error) {
	return db.listChats(
		"SELECT "+chatColumns+" FROM chats c "+
			"JOIN chat_members m ON m.chat_id = c.id WHERE m.account_id = $1 ORDER BY c.updated_at DESC",
		userId,
	)
}

func (db *PgRepository) ListOwnedGroups(userId int) ([]Chat, error) {
	return db.listChats(
		"SELECT "+chatColumns+" FROM chats c "+
			"WHERE c.is_group AND c.creator_id = $1 ORDER BY c.updated_at DESC",
		userId,
	)
}

// UpdateChat saves the chat's name, creator and member list.
func (db *PgRepository) UpdateChat(chat Chat) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var creator sql.NullInt64
	if chat.IsGroup && chat.CreatorId != 0 {
		creator = sql.NullInt64{Int64: int64(chat.CreatorId), Valid: true}
	}

	var res sql.Result
	res, err = tx.Exec(
		"UPDATE chats SET name = $2, creator_id = $3, updated_at = $4 WHERE id = $1",
		chat.Id,
		chat.Name,
		creator,
		time.Now().UTC(),
	)
	if err != nil {
		return mapError(err)
	}

	var n int64
	if n, err = res.RowsAffected(); err == nil && n == 0 {
		err = ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err = tx.Exec("DELETE FROM chat_members WHERE chat_id = $1", chat.Id); err != nil {
		return err
	}

	for i, member := range chat.Members {
		if _, err = tx.Exec(insertMemberQuery, chat.Id, member, i); err != nil {
			return mapError(err)
		}
	}

	return tx.Commit()
}

func (db *PgRepository) DeleteChat(chatId int) error {
	res, err := db.conn.Exec("DELETE FROM chats WHERE id = $1", chatId)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgRepository) CreateMessage(msg Message) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var id int
	err = tx.QueryRow(
		"INSERT INTO messages (chat_id, sender_id, content, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id",
		msg.ChatId,
		msg.SenderId,
		msg.Content,
		msg.CreatedAt,
	).Scan(&id)
	if err != nil {
		return 0, mapError(err)
	}

	for i, a := range msg.Attachments {
		_, err = tx.Exec(
			"INSERT INTO attachments (message_id, position, public_id, url) VALUES ($1, $2, $3, $4)",
			id,
			i,
			a.PublicId,
			a.Url,
		)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}

	return id, nil
}

func (db *PgRepository) UpdateChatLastMessage(chatId, messageId int) error {
	res, err := db.conn.Exec(
		"UPDATE chats SET last_message_id = $2, updated_at = $3 WHERE id = $1",
		chatId,
		messageId,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgRepository) messageAttachments(messageIds []int) (map[int][]Attachment, error) {
	rows, err := db.conn.Query(
		"SELECT message_id, public_id, url FROM attachments WHERE message_id = ANY($1) ORDER BY message_id, position",
		pq.Array(messageIds),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	res := make(map[int][]Attachment)
	for rows.Next() {
		var (
			msgId int
			a     Attachment
		)
		if err := rows.Scan(&msgId, &a.PublicId, &a.Url); err != nil {
			return nil, err
		}
		res[msgId] = append(res[msgId], a)
	}

	return res, rows.Err()
}

const messageQuery = "SELECT m.id, m.chat_id, m.sender_id, a.name, a.avatar_url, m.content, m.created_at " +
	"FROM messages m JOIN accounts a ON a.id = m.sender_id "

func scanMessage(row rowScanner) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.Id,
		&msg.ChatId,
		&msg.SenderId,
		&msg.SenderName,
		&msg.SenderAvatar,
		&msg.Content,
		&msg.CreatedAt,
	)

	return msg, err
}

func (db *PgRepository) GetMessage(messageId int) (Message, error) {
	msg, err := scanMessage(db.conn.QueryRow(messageQuery+"WHERE m.id = $1", messageId))
	if err != nil {
		return Message{}, mapError(err)
	}

	attachments, err := db.messageAttachments([]int{msg.Id})
	if err != nil {
		return Message{}, fmt.Errorf("fetch attachments: %w", err)
	}
	msg.Attachments = attachments[msg.Id]

	return msg, nil
}

// GetMessages returns a page of the chat's messages, newest first, along with
// the total number of messages in the chat.
func (db *PgRepository) GetMessages(chatId, limit, offset int) ([]Message, int, error) {
	var total int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM messages WHERE chat_id = $1", chatId).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := db.conn.Query(
		messageQuery+"WHERE m.chat_id = $1 ORDER BY m.created_at DESC, m.id DESC LIMIT $2 OFFSET $3",
		chatId,
		limit,
		offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]Message, 0, limit)
	ids := make([]int, 0, limit)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, msg)
		ids = append(ids, msg.Id)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	attachments, err := db.messageAttachments(ids)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch attachments: %w", err)
	}
	for i := range messages {
		messages[i].Attachments = attachments[messages[i].Id]
	}

	return messages, total, nil
}

func (db *PgRepository) DeleteMessage(messageId int) error {
	res, err := db.conn.Exec("DELETE FROM messages WHERE id = $1", messageId)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}

func (db *PgRepository) GetChatAttachmentIds(chatId int) ([]string, error) {
	rows, err := db.conn.Query(
		"SELECT a.public_id FROM attachments a JOIN messages m ON m.id = a.message_id "+
			"WHERE m.chat_id = $1 ORDER BY a.id",
		chatId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

const friendRequestQuery = "SELECT r.id, r.sender_id, a.name, a.avatar_url, r.receiver_id, r.created_at " +
	"FROM friend_requests r JOIN accounts a ON a.id = r.sender_id "

func scanFriendRequest(row rowScanner) (FriendRequest, error) {
	var req FriendRequest
	err := row.Scan(
		&req.Id,
		&req.SenderId,
		&req.SenderName,
		&req.SenderAvatar,
		&req.ReceiverId,
		&req.CreatedAt,
	)

	return req, err
}

func (db *PgRepository) CreateFriendRequest(senderId, receiverId int) (FriendRequest, error) {
	req := FriendRequest{SenderId: senderId, ReceiverId: receiverId}
	err := db.conn.QueryRow(
		"INSERT INTO friend_requests (sender_id, receiver_id, created_at) VALUES ($1, $2, $3) "+
			"RETURNING id, created_at",
		senderId,
		receiverId,
		time.Now().UTC(),
	).Scan(&req.Id, &req.CreatedAt)

	return req, mapError(err)
}

func (db *PgRepository) GetFriendRequest(requestId int) (FriendRequest, error) {
	req, err := scanFriendRequest(db.conn.QueryRow(friendRequestQuery+"WHERE r.id = $1", requestId))
	return req, mapError(err)
}

func (db *PgRepository) FriendRequestExists(userA, userB int) bool {
	var id int
	err := db.conn.QueryRow(
		"SELECT id FROM friend_requests WHERE (sender_id = $1 AND receiver_id = $2) "+
			"OR (sender_id = $2 AND receiver_id = $1) LIMIT 1",
		userA,
		userB,
	).Scan(&id)

	return err == nil
}

func (db *PgRepository) ListFriendRequests(receiverId int) ([]FriendRequest, error) {
	rows, err := db.conn.Query(friendRequestQuery+"WHERE r.receiver_id = $1 ORDER BY r.created_at", receiverId)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []FriendRequest
	for rows.Next() {
		req, err := scanFriendRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// AcceptFriendRequest creates the one-to-one chat for the request and deletes
// the request in a single transaction.
func (db *PgRepository) AcceptFriendRequest(req FriendRequest, chatName string) (Chat, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Chat{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.Exec("DELETE FROM friend_requests WHERE id = $1", req.Id)
	if err != nil {
		return Chat{}, err
	}

	var n int64
	if n, err = res.RowsAffected(); err == nil && n == 0 {
		err = ErrNotFound
	}
	if err != nil {
		return Chat{}, err
	}

	var chat Chat
	chat, err = createChat(tx, CreateChatParams{
		Name:    chatName,
		Members: []int{req.SenderId, req.ReceiverId},
	})
	if err != nil {
		return Chat{}, mapError(err)
	}

	if err = tx.Commit(); err != nil {
		return Chat{}, err
	}

	return chat, nil
}

func (db *PgRepository) DeleteFriendRequest(requestId int) error {
	res, err := db.conn.Exec("DELETE FROM friend_requests WHERE id = $1", requestId)
	if err != nil {
		return err
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}

	return nil
}
