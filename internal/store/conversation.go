package store

import (
	"database/sql"
	"time"
)

const conversationConflict = `ON CONFLICT(server_id, tenant) DO UPDATE SET
	snapshot = excluded.snapshot,
	last_message_json = excluded.last_message_json,
	last_message_preview = excluded.last_message_preview,
	last_message_type = excluded.last_message_type,
	last_message_at = excluded.last_message_at,
	unread_count = excluded.unread_count,
	pinned = excluded.pinned,
	archived = excluded.archived,
	muted = excluded.muted,
	assigned_to = excluded.assigned_to,
	tags = excluded.tags,
	updated_at = excluded.updated_at`

// UpsertConversations saves a batch of conversations, one row per
// (server_id, tenant). The messages_loaded flag is deliberately not listed
// in the conflict clause: a server resync must not reset what history the
// client already fetched.
func (db *DB) UpsertConversations(convs []*Conversation, chunkSize int) (int, error) {
	now := time.Now().UnixMilli()
	records := make([]Record, 0, len(convs))
	for _, c := range convs {
		records = append(records, Record{
			"server_id":            c.ServerID,
			"tenant":               c.Tenant,
			"snapshot":             string(c.Snapshot),
			"last_message_json":    string(c.LastMessageJSON),
			"last_message_preview": c.LastMessagePreview,
			"last_message_type":    c.LastMessageType,
			"last_message_at":      c.LastMessageAt,
			"unread_count":         c.UnreadCount,
			"pinned":               c.Pinned,
			"archived":             c.Archived,
			"muted":                c.Muted,
			"assigned_to":          c.AssignedTo,
			"tags":                 c.Tags,
			"updated_at":           now,
		})
	}
	return db.BatchUpsert("conversations", conversationConflict, records, chunkSize)
}

// ListConversations returns conversations for a tenant, pinned first, then
// most recent message first.
func (db *DB) ListConversations(tenant string, limit, offset int) ([]Conversation, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(`
		SELECT id, server_id, tenant, COALESCE(snapshot, ''), COALESCE(last_message_json, ''),
			last_message_preview, last_message_type, last_message_at, unread_count,
			pinned, archived, muted, assigned_to, tags, messages_loaded, updated_at
		FROM conversations
		WHERE tenant = ?
		ORDER BY pinned DESC, last_message_at DESC
		LIMIT ? OFFSET ?`, tenant, limit, offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var convs []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		convs = append(convs, c)
	}
	return convs, rows.Err()
}

// GetConversation returns a single conversation, or nil when absent.
func (db *DB) GetConversation(tenant, serverID string) (*Conversation, error) {
	row := db.QueryRow(`
		SELECT id, server_id, tenant, COALESCE(snapshot, ''), COALESCE(last_message_json, ''),
			last_message_preview, last_message_type, last_message_at, unread_count,
			pinned, archived, muted, assigned_to, tags, messages_loaded, updated_at
		FROM conversations
		WHERE tenant = ? AND server_id = ?`, tenant, serverID)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ConversationCount returns the number of cached conversations for a tenant.
func (db *DB) ConversationCount(tenant string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM conversations WHERE tenant = ?`, tenant).Scan(&count)
	return count, err
}

// ApplyLastMessage updates the denormalized last-message fields when the
// given message is newer than what is currently recorded. The conversation
// row is created if it does not exist yet (first locally-sent message).
func (db *DB) ApplyLastMessage(m *Message) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO conversations (server_id, tenant, last_message_json, last_message_preview, last_message_type, last_message_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(server_id, tenant) DO UPDATE SET
			last_message_json = CASE WHEN excluded.last_message_at >= conversations.last_message_at THEN excluded.last_message_json ELSE conversations.last_message_json END,
			last_message_preview = CASE WHEN excluded.last_message_at >= conversations.last_message_at THEN excluded.last_message_preview ELSE conversations.last_message_preview END,
			last_message_type = CASE WHEN excluded.last_message_at >= conversations.last_message_at THEN excluded.last_message_type ELSE conversations.last_message_type END,
			last_message_at = MAX(conversations.last_message_at, excluded.last_message_at),
			updated_at = excluded.updated_at`,
		m.ChatID, m.Tenant, string(m.Snapshot), truncate(m.Body, 100), m.MessageType, m.Timestamp, now)
	return err
}

// RecomputeLastMessage rebuilds a conversation's denormalized last-message
// fields from the newest row in the messages table. Explicit reconciliation
// for drift after an interrupted write; nothing calls it periodically.
func (db *DB) RecomputeLastMessage(tenant, chatID string) error {
	var m Message
	var snapshot sql.NullString
	err := db.QueryRow(`
		SELECT COALESCE(snapshot, ''), body, message_type, timestamp
		FROM messages
		WHERE tenant = ? AND chat_id = ?
		ORDER BY timestamp DESC
		LIMIT 1`, tenant, chatID).Scan(&snapshot, &m.Body, &m.MessageType, &m.Timestamp)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE conversations
		SET last_message_json = ?, last_message_preview = ?, last_message_type = ?, last_message_at = ?, updated_at = ?
		WHERE tenant = ? AND server_id = ?`,
		snapshot.String, truncate(m.Body, 100), m.MessageType, m.Timestamp, time.Now().UnixMilli(), tenant, chatID)
	return err
}

// MarkMessagesLoaded records that full history has been fetched for a chat.
func (db *DB) MarkMessagesLoaded(tenant, serverID string) error {
	_, err := db.Exec(`
		UPDATE conversations SET messages_loaded = 1, updated_at = ?
		WHERE tenant = ? AND server_id = ?`,
		time.Now().UnixMilli(), tenant, serverID)
	return err
}

// SetUnreadCount sets the unread counter for a conversation.
func (db *DB) SetUnreadCount(tenant, serverID string, count int) error {
	_, err := db.Exec(`
		UPDATE conversations SET unread_count = ?, updated_at = ?
		WHERE tenant = ? AND server_id = ?`,
		count, time.Now().UnixMilli(), tenant, serverID)
	return err
}

// ClearConversations removes all conversations for a tenant.
func (db *DB) ClearConversations(tenant string) error {
	_, err := db.Exec(`DELETE FROM conversations WHERE tenant = ?`, tenant)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		c                 Conversation
		snapshot, lastMsg string
	)
	err := row.Scan(&c.ID, &c.ServerID, &c.Tenant, &snapshot, &lastMsg,
		&c.LastMessagePreview, &c.LastMessageType, &c.LastMessageAt, &c.UnreadCount,
		&c.Pinned, &c.Archived, &c.Muted, &c.AssignedTo, &c.Tags, &c.MessagesLoaded, &c.UpdatedAt)
	if err != nil {
		return Conversation{}, err
	}
	if snapshot != "" {
		c.Snapshot = []byte(snapshot)
	}
	if lastMsg != "" {
		c.LastMessageJSON = []byte(lastMsg)
	}
	return c, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
