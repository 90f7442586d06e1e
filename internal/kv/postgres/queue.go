package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"taskplane/internal/kv"
)

// EnqueueBack appends value to the queue. BIGSERIAL ids give FIFO order.
func (s *Store) EnqueueBack(ctx context.Context, queueKey string, value string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO kv_queue (queue_key, value) VALUES ($1, $2)",
		queueKey, value,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue to %s: %w", queueKey, err)
	}
	return nil
}

// DequeueFront claims and deletes the oldest row of the queue atomically
// using SELECT ... FOR UPDATE SKIP LOCKED. Concurrent callers never lock the
// same row, so each element is returned at most once.
func (s *Store) DequeueFront(ctx context.Context, queueKey string) (string, error) {
	query := `
		DELETE FROM kv_queue
		WHERE id = (
			SELECT id FROM kv_queue
			WHERE queue_key = $1
			ORDER BY id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING value
	`

	var value string
	err := s.db.QueryRowxContext(ctx, query, queueKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", kv.ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("failed to dequeue from %s: %w", queueKey, err)
	}
	return value, nil
}

// Len counts the rows still queued under queueKey.
func (s *Store) Len(ctx context.Context, queueKey string) (int64, error) {
	var n int64
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM kv_queue WHERE queue_key = $1", queueKey); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", queueKey, err)
	}
	return n, nil
}
