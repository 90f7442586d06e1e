package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"taskplane/internal/events"
	"taskplane/internal/export"
	"taskplane/internal/store"
)

// ReportRequest is an agent's verdict on a task.
type ReportRequest struct {
	TaskID     string
	AgentID    string
	Status     string // "success" in any case, anything else is a failure
	ResultLink string
	Error      string
}

// NormalizeStatus maps a reported status to a terminal one.
func NormalizeStatus(s string) store.TaskStatus {
	if strings.EqualFold(strings.TrimSpace(s), string(store.TaskStatusSuccess)) {
		return store.TaskStatusSuccess
	}
	return store.TaskStatusFailed
}

// ReportStatus records the terminal status of a task. Only running or
// already terminal tasks accept a report; on a terminal task the last report
// wins. A task that was never claimed is rejected with ErrInvalidInput.
//
// Successful results are forwarded to the export sink. An export failure is
// noted on the task's error field and does not fail the report.
func (e *Engine) ReportStatus(ctx context.Context, req ReportRequest) (*store.Task, error) {
	task, err := e.repo.GetTask(ctx, req.TaskID)
	if err != nil {
		return nil, notFound(err, "task", req.TaskID)
	}
	if task.Status != store.TaskStatusRunning && !task.Status.Terminal() {
		return nil, fmt.Errorf("%w: task %s has not been claimed", ErrInvalidInput, task.ID)
	}

	reportedAt := e.now()
	task.Status = NormalizeStatus(req.Status)
	task.ResultLink = req.ResultLink
	task.Error = req.Error
	task.ReportedAt = &reportedAt
	if task.AssignedTo == "" && req.AgentID != "" {
		task.AssignedTo = req.AgentID
	}
	if err := e.repo.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	log := e.log(ctx).With("task_id", task.ID, "job_id", task.JobID, "status", task.Status)
	e.metrics.recordReport(ctx, string(task.Status))
	log.Info("task reported")

	if task.Status == store.TaskStatusSuccess {
		if err := e.exportResult(ctx, task, reportedAt); err != nil {
			e.metrics.exportFailures.Add(ctx, 1)
			log.Error("result export failed", "error", err)

			note := fmt.Sprintf("saved but export error: %v", err)
			superseded, err := e.reportSuperseded(ctx, task.ID, reportedAt)
			if err != nil {
				return nil, err
			}
			if !superseded {
				if err := e.repo.AnnotateTaskError(ctx, task.ID, note); err != nil {
					return nil, err
				}
				task.Error = note
			}
		}
	}

	e.publish(ctx, events.Event{
		Type:    events.TaskReported,
		JobID:   task.JobID,
		TaskID:  task.ID,
		AgentID: task.AssignedTo,
		Status:  string(task.Status),
	})
	return task, nil
}

// reportSuperseded reports whether another report was stored after the one
// made at reportedAt.
func (e *Engine) reportSuperseded(ctx context.Context, taskID string, reportedAt time.Time) (bool, error) {
	current, err := e.repo.GetTask(ctx, taskID)
	if err != nil {
		return false, notFound(err, "task", taskID)
	}
	return current.ReportedAt == nil || !current.ReportedAt.Equal(reportedAt), nil
}

func (e *Engine) exportResult(ctx context.Context, task *store.Task, at time.Time) error {
	job, err := e.repo.GetJob(ctx, task.JobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", task.JobID, err)
	}

	return e.config.Sink.Append(ctx, export.Row{
		Timestamp:  at,
		AgentID:    task.AssignedTo,
		FirstName:  task.FirstName,
		LastName:   task.LastName,
		ResultLink: task.ResultLink,
		Price:      job.Price,
	})
}
