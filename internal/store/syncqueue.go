package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Enqueue records an outbound operation for later dispatch. OpID must be
// unique; a duplicate enqueue of the same op is a no-op rather than an error
// so callers can safely replay.
func (db *DB) Enqueue(e *QueueEntry) error {
	if e.OpID == "" {
		return fmt.Errorf("queue entry requires an op id")
	}
	if e.MaxRetries <= 0 {
		e.MaxRetries = 5
	}
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO sync_queue (op_id, tenant, entity, operation, payload, status, retry_count, max_retries, last_error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, '', ?, ?)
		ON CONFLICT(op_id) DO NOTHING`,
		e.OpID, e.Tenant, e.Entity, e.Operation, string(e.Payload), QueuePending, e.MaxRetries, now, now)
	return err
}

// PendingOps returns queue entries still eligible for dispatch, oldest first.
// Entries that exhausted their retries are terminal and excluded.
func (db *DB) PendingOps(limit int) ([]QueueEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(queueSelect+`
		WHERE status = ? AND retry_count < max_retries
		ORDER BY created_at ASC
		LIMIT ?`, QueuePending, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectQueueEntries(rows)
}

// MarkOpCompleted flips a queue entry to completed.
func (db *DB) MarkOpCompleted(opID string) error {
	_, err := db.Exec(`UPDATE sync_queue SET status = ?, updated_at = ? WHERE op_id = ?`,
		QueueCompleted, time.Now().UnixMilli(), opID)
	return err
}

// MarkOpFailed records a dispatch failure. The retry counter is incremented;
// once retries are exhausted the entry flips to the terminal failed status.
func (db *DB) MarkOpFailed(opID, errMsg string) error {
	_, err := db.Exec(`
		UPDATE sync_queue SET
			retry_count = retry_count + 1,
			last_error = ?,
			status = CASE WHEN retry_count + 1 >= max_retries THEN ? ELSE status END,
			updated_at = ?
		WHERE op_id = ?`,
		errMsg, QueueFailed, time.Now().UnixMilli(), opID)
	return err
}

// FailedOps returns terminally failed entries awaiting manual intervention.
func (db *DB) FailedOps(tenant string) ([]QueueEntry, error) {
	rows, err := db.Query(queueSelect+`
		WHERE status = ? AND tenant = ?
		ORDER BY updated_at DESC`, QueueFailed, tenant)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return collectQueueEntries(rows)
}

// GetOp returns one queue entry by op id, or nil when absent.
func (db *DB) GetOp(opID string) (*QueueEntry, error) {
	rows, err := db.Query(queueSelect+` WHERE op_id = ?`, opID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	entries, err := collectQueueEntries(rows)
	if err != nil || len(entries) == 0 {
		return nil, err
	}
	return &entries[0], nil
}

// CleanupQueue removes completed entries immediately and failed entries
// older than failedMaxAge. Returns the number of rows removed.
func (db *DB) CleanupQueue(failedMaxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-failedMaxAge).UnixMilli()
	res, err := db.Exec(`
		DELETE FROM sync_queue
		WHERE status = ? OR (status = ? AND updated_at < ?)`,
		QueueCompleted, QueueFailed, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ClearQueue removes every queue entry for a tenant.
func (db *DB) ClearQueue(tenant string) error {
	_, err := db.Exec(`DELETE FROM sync_queue WHERE tenant = ?`, tenant)
	return err
}

const queueSelect = `
	SELECT id, op_id, tenant, entity, operation, COALESCE(payload, ''), status,
		retry_count, max_retries, last_error, created_at, updated_at
	FROM sync_queue`

func collectQueueEntries(rows *sql.Rows) ([]QueueEntry, error) {
	var entries []QueueEntry
	for rows.Next() {
		var (
			e       QueueEntry
			payload string
		)
		if err := rows.Scan(&e.ID, &e.OpID, &e.Tenant, &e.Entity, &e.Operation, &payload,
			&e.Status, &e.RetryCount, &e.MaxRetries, &e.LastError, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if payload != "" {
			e.Payload = []byte(payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
