package store

import "time"

const quickReplyConflict = `ON CONFLICT(server_id, tenant) DO UPDATE SET
	snapshot = excluded.snapshot,
	shortcut = excluded.shortcut,
	body = excluded.body,
	updated_at = excluded.updated_at`

// SaveQuickReplies upserts a batch of canned responses for a tenant.
func (db *DB) SaveQuickReplies(tenant string, replies []*QuickReply, chunkSize int) (int, error) {
	now := time.Now().UnixMilli()
	records := make([]Record, 0, len(replies))
	for _, r := range replies {
		records = append(records, Record{
			"server_id":  r.ServerID,
			"tenant":     tenant,
			"snapshot":   string(r.Snapshot),
			"shortcut":   r.Shortcut,
			"body":       r.Body,
			"updated_at": now,
		})
	}
	return db.BatchUpsert("quick_replies", quickReplyConflict, records, chunkSize)
}

// ListQuickReplies returns a tenant's canned responses ordered by shortcut.
func (db *DB) ListQuickReplies(tenant string) ([]QuickReply, error) {
	rows, err := db.Query(`
		SELECT id, server_id, tenant, COALESCE(snapshot, ''), shortcut, body, updated_at
		FROM quick_replies
		WHERE tenant = ?
		ORDER BY shortcut ASC`, tenant)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var replies []QuickReply
	for rows.Next() {
		var (
			r        QuickReply
			snapshot string
		)
		if err := rows.Scan(&r.ID, &r.ServerID, &r.Tenant, &snapshot,
			&r.Shortcut, &r.Body, &r.UpdatedAt); err != nil {
			return nil, err
		}
		if snapshot != "" {
			r.Snapshot = []byte(snapshot)
		}
		replies = append(replies, r)
	}
	return replies, rows.Err()
}

// ClearQuickReplies removes all canned responses for a tenant.
func (db *DB) ClearQuickReplies(tenant string) error {
	_, err := db.Exec(`DELETE FROM quick_replies WHERE tenant = ?`, tenant)
	return err
}
