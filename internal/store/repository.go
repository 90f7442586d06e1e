package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"taskplane/internal/kv"
)

// Repository implements AgentStore, JobStore, TaskStore and ControlStore on
// any kv.Store. Every call is a small, fixed number of store round trips
// except the List methods, which scan.
type Repository struct {
	kv kv.Store
}

var (
	_ AgentStore   = (*Repository)(nil)
	_ JobStore     = (*Repository)(nil)
	_ TaskStore    = (*Repository)(nil)
	_ ControlStore = (*Repository)(nil)
)

// NewRepository creates a repository backed by s.
func NewRepository(s kv.Store) *Repository {
	return &Repository{kv: s}
}

// KV exposes the underlying store for components that address queues directly.
func (r *Repository) KV() kv.Store {
	return r.kv
}

// RegisterAgent implements AgentStore.
func (r *Repository) RegisterAgent(ctx context.Context, agent *Agent) error {
	if err := r.kv.Put(ctx, AgentKey(agent.ID), encodeAgent(agent)); err != nil {
		return fmt.Errorf("failed to register agent %s: %w", agent.ID, err)
	}
	return nil
}

// TouchAgentHeartbeat implements AgentStore.
func (r *Repository) TouchAgentHeartbeat(ctx context.Context, agentID, status string, at time.Time) error {
	err := r.kv.Put(ctx, AgentKey(agentID), map[string]string{
		fieldID:       agentID,
		fieldStatus:   status,
		fieldLastSeen: formatTime(at),
	})
	if err != nil {
		return fmt.Errorf("failed to record heartbeat for %s: %w", agentID, err)
	}
	return nil
}

// GetAgent implements AgentStore.
func (r *Repository) GetAgent(ctx context.Context, id string) (*Agent, error) {
	m, err := r.kv.GetAll(ctx, AgentKey(id))
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return decodeAgent(id, m), nil
}

// ListAgents implements AgentStore.
func (r *Repository) ListAgents(ctx context.Context) ([]*Agent, error) {
	keys, err := r.kv.ScanKeys(ctx, AgentPrefix)
	if err != nil {
		return nil, err
	}

	agents := make([]*Agent, 0, len(keys))
	for _, k := range keys {
		m, err := r.kv.GetAll(ctx, k)
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			continue
		}
		agents = append(agents, decodeAgent(idFromKey(k, AgentPrefix), m))
	}

	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

// CreateJob implements JobStore.
func (r *Repository) CreateJob(ctx context.Context, job *Job) error {
	if err := r.kv.Put(ctx, JobKey(job.ID), encodeJob(job)); err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// GetJob implements JobStore.
func (r *Repository) GetJob(ctx context.Context, id string) (*Job, error) {
	m, err := r.kv.GetAll(ctx, JobKey(id))
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return decodeJob(id, m), nil
}

// ListJobs implements JobStore. Jobs are ordered by creation time, then ID,
// so the order is stable no matter how the backend reports its keys.
func (r *Repository) ListJobs(ctx context.Context) ([]*Job, error) {
	keys, err := r.kv.ScanKeys(ctx, JobPrefix)
	if err != nil {
		return nil, err
	}

	jobs := make([]*Job, 0, len(keys))
	for _, k := range keys {
		m, err := r.kv.GetAll(ctx, k)
		if err != nil {
			return nil, err
		}
		if len(m) == 0 {
			continue
		}
		jobs = append(jobs, decodeJob(idFromKey(k, JobPrefix), m))
	}

	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].CreatedAt.Before(jobs[j].CreatedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs, nil
}

// CreateTask implements TaskStore.
func (r *Repository) CreateTask(ctx context.Context, task *Task) error {
	if err := r.kv.Put(ctx, TaskKey(task.ID), encodeTask(task)); err != nil {
		return fmt.Errorf("failed to create task %s: %w", task.ID, err)
	}
	return nil
}

// GetTask implements TaskStore.
func (r *Repository) GetTask(ctx context.Context, id string) (*Task, error) {
	m, err := r.kv.GetAll(ctx, TaskKey(id))
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, ErrNotFound
	}
	return decodeTask(id, m), nil
}

// UpdateTask implements TaskStore.
func (r *Repository) UpdateTask(ctx context.Context, task *Task) error {
	if err := r.kv.Put(ctx, TaskKey(task.ID), encodeTask(task)); err != nil {
		return fmt.Errorf("failed to update task %s: %w", task.ID, err)
	}
	return nil
}

// AnnotateTaskError implements TaskStore. Only the error field is written.
func (r *Repository) AnnotateTaskError(ctx context.Context, id, msg string) error {
	if err := r.kv.Put(ctx, TaskKey(id), map[string]string{fieldError: msg}); err != nil {
		return fmt.Errorf("failed to annotate task %s: %w", id, err)
	}
	return nil
}

// ListTasksForJob implements TaskStore.
func (r *Repository) ListTasksForJob(ctx context.Context, jobID string) ([]*Task, error) {
	keys, err := r.kv.ScanKeys(ctx, TaskPrefix)
	if err != nil {
		return nil, err
	}

	var tasks []*Task
	for _, k := range keys {
		m, err := r.kv.GetAll(ctx, k)
		if err != nil {
			return nil, err
		}
		if m[fieldJobID] != jobID {
			continue
		}
		tasks = append(tasks, decodeTask(idFromKey(k, TaskPrefix), m))
	}
	return tasks, nil
}

// SetPaused implements ControlStore.
func (r *Repository) SetPaused(ctx context.Context, paused bool) error {
	return r.kv.Put(ctx, controlKey, map[string]string{fieldPaused: strconv.FormatBool(paused)})
}

// Paused implements ControlStore. An unset flag means not paused.
func (r *Repository) Paused(ctx context.Context) (bool, error) {
	m, err := r.kv.GetAll(ctx, controlKey)
	if err != nil {
		return false, err
	}
	paused, _ := strconv.ParseBool(m[fieldPaused])
	return paused, nil
}
