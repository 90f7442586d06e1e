package dispatch

import (
	"context"
	"fmt"
	"strings"

	"taskplane/internal/catalog"
	"taskplane/internal/events"
	"taskplane/internal/ingest"
	"taskplane/internal/store"
)

// CreateJobRequest describes a new job. Rows are expected to be sampled
// already; rows beyond Requested are dropped.
type CreateJobRequest struct {
	Site      string
	Price     int
	Requested int
	Rows      []ingest.Row
}

// CreateJobResult identifies the created job.
type CreateJobResult struct {
	JobID     string
	TaskCount int
}

// CreateJob writes a job, its tasks and its queue. The job record is written
// last so claimers never see a partially populated queue.
func (e *Engine) CreateJob(ctx context.Context, req CreateJobRequest) (*CreateJobResult, error) {
	site := strings.TrimSpace(req.Site)
	link, ok := e.catalog.ProductLink(site, req.Price)
	if !ok {
		return nil, fmt.Errorf("%w: no product configured for site %q at price %d", ErrInvalidInput, site, req.Price)
	}
	if req.Requested <= 0 {
		return nil, fmt.Errorf("%w: total must be positive", ErrInvalidInput)
	}

	rows := make([]ingest.Row, 0, len(req.Rows))
	for _, r := range req.Rows {
		r.FirstName = strings.TrimSpace(r.FirstName)
		r.LastName = strings.TrimSpace(r.LastName)
		if r.Blank() {
			continue
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no rows with first_name or last_name", ErrInvalidInput)
	}
	if len(rows) > req.Requested {
		rows = rows[:req.Requested]
	}

	now := e.now()
	job := &store.Job{
		ID:        e.config.NewID(),
		Site:      site,
		Price:     req.Price,
		Requested: req.Requested,
		Total:     len(rows),
		Status:    store.JobStatusRunning,
		CreatedAt: now,
	}
	qty := catalog.QtyForPrice(req.Price)

	for _, r := range rows {
		task := &store.Task{
			ID:          e.config.NewID(),
			JobID:       job.ID,
			FirstName:   r.FirstName,
			LastName:    r.LastName,
			ProductLink: link,
			Qty:         qty,
			Status:      store.TaskStatusPending,
			CreatedAt:   now,
		}
		if err := e.repo.CreateTask(ctx, task); err != nil {
			return nil, err
		}
		if err := e.queue.Enqueue(ctx, job.ID, task.ID); err != nil {
			return nil, err
		}
	}
	if err := e.repo.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	e.log(ctx).Info("job created", "job_id", job.ID, "site", job.Site, "price", job.Price, "tasks", job.Total)
	e.publish(ctx, events.Event{Type: events.JobCreated, JobID: job.ID})

	return &CreateJobResult{JobID: job.ID, TaskCount: job.Total}, nil
}
