package store

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveMessages ingests a batch of server messages for one chat. Rows already
// present (matched by server_id or wire_id) are updated in place; the rest
// are inserted. Locally-managed media columns are never touched by an
// update, so a resync cannot clobber a downloaded attachment.
func (db *DB) SaveMessages(tenant, chatID string, msgs []*Message) (int, error) {
	if len(msgs) == 0 {
		return 0, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	byServer, byWire, err := existingMessageIDs(tx, tenant, chatID)
	if err != nil {
		return 0, err
	}

	now := time.Now().UnixMilli()
	saved := 0
	for _, m := range msgs {
		rowID, exists := int64(0), false
		if m.ServerID != "" {
			rowID, exists = byServer[m.ServerID]
		}
		if !exists && m.WireID != "" {
			rowID, exists = byWire[m.WireID]
		}

		if exists {
			_, err = tx.Exec(`
				UPDATE messages SET
					server_id = COALESCE(?, server_id),
					wire_id = COALESCE(?, wire_id),
					snapshot = ?,
					message_type = ?,
					body = ?,
					direction = ?,
					status = ?,
					timestamp = ?
				WHERE id = ?`,
				nullable(m.ServerID), nullable(m.WireID), string(m.Snapshot),
				m.MessageType, m.Body, m.Direction, m.Status, m.Timestamp, rowID)
		} else {
			var newID int64
			newID, err = insertMessage(tx, tenant, chatID, m, now)
			if err == nil {
				// Later duplicates in the same batch must take the
				// update path, not trip the unique indexes.
				if m.ServerID != "" {
					byServer[m.ServerID] = newID
				}
				if m.WireID != "" {
					byWire[m.WireID] = newID
				}
			}
		}
		if err != nil {
			return saved, fmt.Errorf("save message %q: %w", m.ServerID, err)
		}
		saved++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit messages: %w", err)
	}
	return saved, nil
}

func insertMessage(tx *sql.Tx, tenant, chatID string, m *Message, now int64) (int64, error) {
	res, err := tx.Exec(`
		INSERT INTO messages (tenant, chat_id, server_id, wire_id, temp_id, snapshot,
			message_type, body, direction, status, error_code, error_message,
			media_local_path, media_status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant, chatID, nullable(m.ServerID), nullable(m.WireID), nullable(m.TempID),
		string(m.Snapshot), m.MessageType, m.Body, m.Direction, m.Status,
		m.ErrorCode, m.ErrorMessage, m.MediaLocalPath, m.MediaStatus, m.Timestamp, now)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func existingMessageIDs(tx *sql.Tx, tenant, chatID string) (map[string]int64, map[string]int64, error) {
	rows, err := tx.Query(`
		SELECT id, server_id, wire_id FROM messages
		WHERE tenant = ? AND chat_id = ?`, tenant, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("lookup existing messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byServer := make(map[string]int64)
	byWire := make(map[string]int64)
	for rows.Next() {
		var (
			id               int64
			serverID, wireID sql.NullString
		)
		if err := rows.Scan(&id, &serverID, &wireID); err != nil {
			return nil, nil, err
		}
		if serverID.Valid {
			byServer[serverID.String] = id
		}
		if wireID.Valid {
			byWire[wireID.String] = id
		}
	}
	return byServer, byWire, rows.Err()
}

// ListMessages returns messages for a chat using keyset pagination by timestamp.
func (db *DB) ListMessages(tenant, chatID string, beforeTs int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if beforeTs <= 0 {
		beforeTs = time.Now().UnixMilli() + 1
	}
	rows, err := db.Query(messageSelect+`
		WHERE tenant = ? AND chat_id = ? AND timestamp < ?
		ORDER BY timestamp DESC
		LIMIT ?`, tenant, chatID, beforeTs, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectMessages(rows)
}

// MessageCount returns the number of cached messages for a chat.
func (db *DB) MessageCount(tenant, chatID string) (int, error) {
	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM messages WHERE tenant = ? AND chat_id = ?`,
		tenant, chatID).Scan(&count)
	return count, err
}

// InsertOptimistic persists a locally-composed message before the server has
// acknowledged it. The row carries only a temp id; the server and wire ids
// stay NULL until resolution.
func (db *DB) InsertOptimistic(m *Message) error {
	if m.TempID == "" {
		return fmt.Errorf("optimistic message requires a temp id")
	}
	now := time.Now().UnixMilli()
	if m.Timestamp == 0 {
		m.Timestamp = now
	}
	_, err := db.Exec(`
		INSERT INTO messages (tenant, chat_id, temp_id, snapshot, message_type, body,
			direction, status, timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Tenant, m.ChatID, m.TempID, string(m.Snapshot), m.MessageType, m.Body,
		DirectionOut, MessagePending, m.Timestamp, now)
	return err
}

// ResolveOptimistic assigns server identifiers to a pending message. The row
// is updated in place, never re-created, so insertion order is preserved. If
// a push event already ingested the confirmed message, the optimistic row is
// dropped in favor of the server row.
func (db *DB) ResolveOptimistic(tenant, tempID, serverID, wireID string) error {
	if serverID == "" {
		return fmt.Errorf("resolve requires a server id")
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var chatID string
	err = tx.QueryRow(`SELECT chat_id FROM messages WHERE tenant = ? AND temp_id = ?`,
		tenant, tempID).Scan(&chatID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("optimistic message %q not found", tempID)
	}
	if err != nil {
		return err
	}

	var existing int64
	err = tx.QueryRow(`
		SELECT id FROM messages
		WHERE chat_id = ? AND server_id = ?`, chatID, serverID).Scan(&existing)
	switch {
	case err == nil:
		// Server row arrived first; the optimistic copy is redundant.
		if _, err := tx.Exec(`DELETE FROM messages WHERE tenant = ? AND temp_id = ?`, tenant, tempID); err != nil {
			return err
		}
	case err == sql.ErrNoRows:
		if _, err := tx.Exec(`
			UPDATE messages SET
				server_id = ?,
				wire_id = ?,
				status = ?,
				error_code = '',
				error_message = ''
			WHERE tenant = ? AND temp_id = ?`,
			serverID, nullable(wireID), MessageSent, tenant, tempID); err != nil {
			return err
		}
	default:
		return err
	}

	return tx.Commit()
}

// FailOptimistic marks a pending message as failed with the send error. The
// row stays visible so the UI can offer a retry.
func (db *DB) FailOptimistic(tenant, tempID, code, message string) error {
	res, err := db.Exec(`
		UPDATE messages SET status = ?, error_code = ?, error_message = ?
		WHERE tenant = ? AND temp_id = ? AND status = ?`,
		MessageFailed, code, message, tenant, tempID, MessagePending)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no pending message with temp id %q", tempID)
	}
	return nil
}

// RetryOptimistic moves a failed message back to pending for another send.
func (db *DB) RetryOptimistic(tenant, tempID string) error {
	res, err := db.Exec(`
		UPDATE messages SET status = ?, error_code = '', error_message = ''
		WHERE tenant = ? AND temp_id = ? AND status = ?`,
		MessagePending, tenant, tempID, MessageFailed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no failed message with temp id %q", tempID)
	}
	return nil
}

// GetMessageByTempID returns an optimistic message, or nil when absent.
func (db *DB) GetMessageByTempID(tenant, tempID string) (*Message, error) {
	row := db.QueryRow(messageSelect+` WHERE tenant = ? AND temp_id = ?`, tenant, tempID)
	return scanOneMessage(row)
}

// GetMessageByServerID returns a confirmed message, or nil when absent.
func (db *DB) GetMessageByServerID(tenant, chatID, serverID string) (*Message, error) {
	row := db.QueryRow(messageSelect+` WHERE tenant = ? AND chat_id = ? AND server_id = ?`,
		tenant, chatID, serverID)
	return scanOneMessage(row)
}

// PendingMessageCount counts messages currently sending for a chat. Failed
// messages are excluded: once failed they are no longer "in flight".
func (db *DB) PendingMessageCount(tenant, chatID string) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM messages
		WHERE tenant = ? AND chat_id = ? AND status = ?`,
		tenant, chatID, MessagePending).Scan(&count)
	return count, err
}

// SetMediaState records local media download state for a message. These
// columns are owned by the client and survive server resyncs.
func (db *DB) SetMediaState(tenant, chatID, serverID, localPath, status string) error {
	_, err := db.Exec(`
		UPDATE messages SET media_local_path = ?, media_status = ?
		WHERE tenant = ? AND chat_id = ? AND server_id = ?`,
		localPath, status, tenant, chatID, serverID)
	return err
}

// ClearMessages removes all messages for a tenant.
func (db *DB) ClearMessages(tenant string) error {
	_, err := db.Exec(`DELETE FROM messages WHERE tenant = ?`, tenant)
	return err
}

const messageSelect = `
	SELECT id, tenant, chat_id, server_id, wire_id, temp_id, COALESCE(snapshot, ''),
		message_type, body, direction, status, error_code, error_message,
		media_local_path, media_status, timestamp, created_at
	FROM messages`

func collectMessages(rows *sql.Rows) ([]Message, error) {
	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func scanOneMessage(row rowScanner) (*Message, error) {
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func scanMessage(row rowScanner) (Message, error) {
	var (
		m                        Message
		serverID, wireID, tempID sql.NullString
		snapshot                 string
	)
	err := row.Scan(&m.ID, &m.Tenant, &m.ChatID, &serverID, &wireID, &tempID, &snapshot,
		&m.MessageType, &m.Body, &m.Direction, &m.Status, &m.ErrorCode, &m.ErrorMessage,
		&m.MediaLocalPath, &m.MediaStatus, &m.Timestamp, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	m.ServerID = serverID.String
	m.WireID = wireID.String
	m.TempID = tempID.String
	if snapshot != "" {
		m.Snapshot = []byte(snapshot)
	}
	return m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
