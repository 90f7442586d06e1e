package dispatch

import (
	"context"

	"taskplane/internal/store"
)

// Stats counts a job's tasks by status. Total is always the sum of the
// other four.
type Stats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Finished reports whether no task is pending or running.
func (s Stats) Finished() bool {
	return s.Pending == 0 && s.Running == 0
}

func (s *Stats) add(status store.TaskStatus) {
	s.Total++
	switch status {
	case store.TaskStatusSuccess:
		s.Success++
	case store.TaskStatusFailed:
		s.Failed++
	case store.TaskStatusRunning:
		s.Running++
	default:
		s.Pending++
	}
}

// JobStats buckets the job's tasks by status. It scans every task in the
// store. A job without tasks, or an unknown job id, yields zero stats.
func (e *Engine) JobStats(ctx context.Context, jobID string) (Stats, error) {
	tasks, err := e.repo.ListTasksForJob(ctx, jobID)
	if err != nil {
		return Stats{}, err
	}

	var s Stats
	for _, t := range tasks {
		s.add(t.Status)
	}
	return s, nil
}

// JobReport is a job record with its task statistics.
type JobReport struct {
	Job        *store.Job
	Stats      Stats
	QueueDepth int64
}

// JobStatus returns the job and its statistics, or ErrNotFound.
func (e *Engine) JobStatus(ctx context.Context, jobID string) (*JobReport, error) {
	job, err := e.repo.GetJob(ctx, jobID)
	if err != nil {
		return nil, notFound(err, "job", jobID)
	}

	stats, err := e.JobStats(ctx, jobID)
	if err != nil {
		return nil, err
	}

	depth, err := e.queue.Depth(ctx, jobID)
	if err != nil {
		return nil, err
	}

	return &JobReport{Job: job, Stats: stats, QueueDepth: depth}, nil
}

// PendingDepth sums the queue depth of every runnable job.
func (e *Engine) PendingDepth(ctx context.Context) (int64, error) {
	jobs, err := e.repo.ListJobs(ctx)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, job := range jobs {
		if !job.Status.Runnable() {
			continue
		}
		n, err := e.queue.Depth(ctx, job.ID)
		if err != nil {
			return 0, err
		}
		total += n
	}
	return total, nil
}
