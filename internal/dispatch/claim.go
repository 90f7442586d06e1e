package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskplane/internal/events"
	"taskplane/internal/store"
)

// ClaimNext hands the agent the next pending task of the first runnable job
// whose site is in caps. Jobs are scanned oldest first. A nil task with a nil
// error means nothing is available, which includes the paused state.
func (e *Engine) ClaimNext(ctx context.Context, agentID string, caps []string) (*store.Task, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, fmt.Errorf("%w: agent_id required", ErrInvalidInput)
	}

	paused, err := e.repo.Paused(ctx)
	if err != nil {
		return nil, err
	}
	if paused {
		return nil, nil
	}

	capSet := make(map[string]struct{}, len(caps))
	for _, c := range caps {
		if c = strings.TrimSpace(c); c != "" {
			capSet[c] = struct{}{}
		}
	}
	if len(capSet) == 0 {
		e.metrics.emptyClaims.Add(ctx, 1)
		return nil, nil
	}

	jobs, err := e.repo.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	for _, job := range jobs {
		if !job.Status.Runnable() {
			continue
		}
		if _, ok := capSet[job.Site]; !ok {
			continue
		}

		task, err := e.claimFromJob(ctx, job, agentID)
		if err != nil {
			return nil, err
		}
		if task == nil {
			continue
		}

		e.metrics.claimed.Add(ctx, 1)
		e.log(ctx).Info("task claimed", "task_id", task.ID, "job_id", job.ID, "agent_id", agentID)
		e.publish(ctx, events.Event{Type: events.TaskClaimed, JobID: job.ID, TaskID: task.ID, AgentID: agentID})
		return task, nil
	}

	e.metrics.emptyClaims.Add(ctx, 1)
	return nil, nil
}

// claimFromJob pops ids from the job's queue until one refers to a pending
// task. Stale ids are dropped. Returns nil when the queue is drained.
func (e *Engine) claimFromJob(ctx context.Context, job *store.Job, agentID string) (*store.Task, error) {
	for {
		id, ok, err := e.queue.Dequeue(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}

		task, err := e.repo.GetTask(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			e.log(ctx).Warn("dropping queued id without task record", "task_id", id, "job_id", job.ID)
			continue
		}
		if err != nil {
			e.log(ctx).Error("task lost after dequeue", "task_id", id, "job_id", job.ID, "error", err)
			return nil, err
		}
		if task.Status != store.TaskStatusPending {
			e.log(ctx).Warn("dropping queued id for non-pending task", "task_id", id, "status", task.Status)
			continue
		}

		claimedAt := e.now()
		task.Status = store.TaskStatusRunning
		task.AssignedTo = agentID
		task.Site = job.Site
		task.ClaimedAt = &claimedAt
		if err := e.repo.UpdateTask(ctx, task); err != nil {
			return nil, err
		}
		return task, nil
	}
}
