// Package store contains the entity layer for taskplane: typed access to
// agents, jobs and tasks on top of a kv.Store.
package store

import "time"

// Agent is a remote worker process that claims tasks.
type Agent struct {
	ID       string
	Name     string
	Sites    []string
	Status   string // status declared by the agent's last heartbeat
	LastSeen time.Time
}

// HasSite reports whether the agent advertises the capability.
func (a *Agent) HasSite(site string) bool {
	for _, s := range a.Sites {
		if s == site {
			return true
		}
	}
	return false
}

// JobStatus represents the state of a job.
type JobStatus string

const (
	JobStatusQueued  JobStatus = "queued"
	JobStatusRunning JobStatus = "running"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// Runnable reports whether tasks of a job in this status may be claimed.
func (s JobStatus) Runnable() bool {
	return s == JobStatusQueued || s == JobStatusRunning
}

// Job is a batch of tasks created together for one site and price.
type Job struct {
	ID        string
	Site      string
	Price     int
	Requested int // total asked for at creation
	Total     int // tasks actually created
	Status    JobStatus
	CreatedAt time.Time
}

// TaskStatus represents the state of a task.
// Transitions only go pending → running → success|failed.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusRunning TaskStatus = "running"
	TaskStatusSuccess TaskStatus = "success"
	TaskStatusFailed  TaskStatus = "failed"
)

// Terminal reports whether the status is final.
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusSuccess || s == TaskStatusFailed
}

// Task is the smallest unit of assignable work.
type Task struct {
	ID          string
	JobID       string
	FirstName   string
	LastName    string
	ProductLink string
	Qty         int
	Site        string // copied from the job when claimed
	Status      TaskStatus
	AssignedTo  string
	ResultLink  string
	Error       string
	CreatedAt   time.Time
	ClaimedAt   *time.Time
	ReportedAt  *time.Time
}
