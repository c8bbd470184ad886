package store

import (
	"database/sql"
	"strings"
)

// SearchMessages performs a full-text search on message bodies for one
// tenant. An empty chatID searches across all conversations. When the FTS5
// index is not available (driver built without the sqlite_fts5 tag) the
// search degrades to a LIKE substring scan with the same result shape.
func (db *DB) SearchMessages(tenant, query, chatID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = 50
	}
	if !db.fts.Load() {
		return db.searchMessagesScan(tenant, query, chatID, limit)
	}

	q := `
		SELECT m.id, m.tenant, m.chat_id, m.server_id, m.wire_id, m.temp_id,
		       COALESCE(m.snapshot, ''), m.message_type, m.body, m.direction,
		       m.status, m.error_code, m.error_message, m.media_local_path,
		       m.media_status, m.timestamp, m.created_at,
		       snippet(messages_fts, 0, '<<', '>>', '...', 32)
		FROM messages_fts f
		JOIN messages m ON m.id = f.rowid
		WHERE messages_fts MATCH ? AND m.tenant = ?`

	args := []any{query, tenant}
	if chatID != "" {
		q += " AND m.chat_id = ?"
		args = append(args, chatID)
	}
	q += " ORDER BY rank LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := scanSearchResult(rows, &r); err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchMessagesScan is the indexless fallback: a LIKE substring match with a
// snippet built in Go using the same markers the FTS path emits.
func (db *DB) searchMessagesScan(tenant, query, chatID string, limit int) ([]SearchResult, error) {
	q := `
		SELECT m.id, m.tenant, m.chat_id, m.server_id, m.wire_id, m.temp_id,
		       COALESCE(m.snapshot, ''), m.message_type, m.body, m.direction,
		       m.status, m.error_code, m.error_message, m.media_local_path,
		       m.media_status, m.timestamp, m.created_at, ''
		FROM messages m
		WHERE m.tenant = ? AND m.body LIKE ? ESCAPE '\'`

	args := []any{tenant, "%" + escapeLike(query) + "%"}
	if chatID != "" {
		q += " AND m.chat_id = ?"
		args = append(args, chatID)
	}
	q += " ORDER BY m.timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := scanSearchResult(rows, &r); err != nil {
			return nil, err
		}
		r.Snippet = scanSnippet(r.Message.Body, query)
		results = append(results, r)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// scanSnippet marks the first match in body the way the FTS snippet function
// does, trimming the context around it.
func scanSnippet(body, query string) string {
	const window = 80

	idx := strings.Index(strings.ToLower(body), strings.ToLower(query))
	if idx < 0 {
		if len(body) > 2*window {
			return body[:2*window] + "..."
		}
		return body
	}

	start, prefix := idx-window, ""
	if start > 0 {
		prefix = "..."
	} else {
		start = 0
	}
	end, suffix := idx+len(query)+window, ""
	if end < len(body) {
		suffix = "..."
	} else {
		end = len(body)
	}

	return prefix + body[start:idx] + "<<" + body[idx:idx+len(query)] + ">>" + body[idx+len(query):end] + suffix
}

func scanSearchResult(row rowScanner, r *SearchResult) error {
	var (
		m                        = &r.Message
		serverID, wireID, tempID sql.NullString
		snapshot                 string
	)
	err := row.Scan(&m.ID, &m.Tenant, &m.ChatID, &serverID, &wireID, &tempID, &snapshot,
		&m.MessageType, &m.Body, &m.Direction, &m.Status, &m.ErrorCode, &m.ErrorMessage,
		&m.MediaLocalPath, &m.MediaStatus, &m.Timestamp, &m.CreatedAt, &r.Snippet)
	if err != nil {
		return err
	}
	m.ServerID, m.WireID, m.TempID = serverID.String, wireID.String, tempID.String
	m.Snapshot = []byte(snapshot)
	return nil
}
