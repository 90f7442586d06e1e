// Package events publishes task lifecycle notifications.
package events

import (
	"context"
	"time"
)

// Event types.
const (
	JobCreated   = "job.created"
	TaskClaimed  = "task.claimed"
	TaskReported = "task.reported"
)

// Event is a lifecycle notification. Fields not relevant to Type are empty.
type Event struct {
	Type    string    `json:"type"`
	JobID   string    `json:"job_id,omitempty"`
	TaskID  string    `json:"task_id,omitempty"`
	AgentID string    `json:"agent_id,omitempty"`
	Status  string    `json:"status,omitempty"`
	At      time.Time `json:"at"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event.
type Nop struct{}

// Publish implements Publisher.
func (Nop) Publish(context.Context, Event) error { return nil }
