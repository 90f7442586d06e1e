package store

import "strings"

// Key prefixes. Queue keys must not share the job: prefix so a
// scan over jobs never returns list keys.
const (
	AgentPrefix = "agent:"
	JobPrefix   = "job:"
	TaskPrefix  = "task:"
	QueuePrefix = "queue:"

	controlKey = "control:global"
)

func AgentKey(id string) string { return AgentPrefix + id }
func JobKey(id string) string   { return JobPrefix + id }
func TaskKey(id string) string  { return TaskPrefix + id }

// QueueKey is the list holding a job's pending task ids.
func QueueKey(jobID string) string { return QueuePrefix + jobID }

// idFromKey strips prefix from key.
func idFromKey(key, prefix string) string {
	return strings.TrimPrefix(key, prefix)
}
