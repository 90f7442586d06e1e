package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// AgentStore handles agent registration and heartbeats.
type AgentStore interface {
	// RegisterAgent creates or overwrites the agent's record.
	RegisterAgent(ctx context.Context, agent *Agent) error

	// TouchAgentHeartbeat records a heartbeat, creating the agent if absent.
	TouchAgentHeartbeat(ctx context.Context, agentID, status string, at time.Time) error

	// GetAgent returns an agent by its ID.
	GetAgent(ctx context.Context, id string) (*Agent, error)

	// ListAgents returns every known agent, ordered by ID.
	ListAgents(ctx context.Context) ([]*Agent, error)
}

// JobStore handles the persistence of jobs.
type JobStore interface {
	// CreateJob writes a new job record.
	CreateJob(ctx context.Context, job *Job) error

	// GetJob returns a job by its ID.
	GetJob(ctx context.Context, id string) (*Job, error)

	// ListJobs returns every job, oldest first.
	ListJobs(ctx context.Context) ([]*Job, error)
}

// TaskStore handles the persistence of tasks.
type TaskStore interface {
	// CreateTask writes a new task record.
	CreateTask(ctx context.Context, task *Task) error

	// GetTask returns a task by its ID.
	GetTask(ctx context.Context, id string) (*Task, error)

	// UpdateTask overwrites the mutable fields of an existing task.
	UpdateTask(ctx context.Context, task *Task) error

	// AnnotateTaskError replaces the task's error field and leaves every
	// other field as it is.
	AnnotateTaskError(ctx context.Context, id, msg string) error

	// ListTasksForJob scans every task and keeps those belonging to jobID.
	// Cost is proportional to the total number of tasks in the system.
	ListTasksForJob(ctx context.Context, jobID string) ([]*Task, error)
}

// ControlStore holds global switches.
type ControlStore interface {
	SetPaused(ctx context.Context, paused bool) error
	Paused(ctx context.Context) (bool, error)
}
