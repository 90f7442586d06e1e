package dispatch

import (
	"context"
	"errors"
	"fmt"

	"taskplane/internal/kv"
	"taskplane/internal/store"
)

// Queue holds one FIFO of pending task ids per job.
type Queue struct {
	kv kv.Store
}

// NewQueue creates a queue on s.
func NewQueue(s kv.Store) *Queue {
	return &Queue{kv: s}
}

// Enqueue appends taskID to the job's queue.
func (q *Queue) Enqueue(ctx context.Context, jobID, taskID string) error {
	if err := q.kv.EnqueueBack(ctx, store.QueueKey(jobID), taskID); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", taskID, err)
	}
	return nil
}

// Dequeue pops the earliest task id. ok is false when the queue is drained.
// Concurrent callers never receive the same id.
func (q *Queue) Dequeue(ctx context.Context, jobID string) (taskID string, ok bool, err error) {
	id, err := q.kv.DequeueFront(ctx, store.QueueKey(jobID))
	if errors.Is(err, kv.ErrEmpty) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to dequeue from job %s: %w", jobID, err)
	}
	return id, true, nil
}

// Depth returns the number of ids still queued for the job.
func (q *Queue) Depth(ctx context.Context, jobID string) (int64, error) {
	return q.kv.Len(ctx, store.QueueKey(jobID))
}
