// Package api contains shared JSON request/response structs.
// This package is shared between the controller, the agent and the CLI.
package api

import "time"

// APIKeyHeader carries the shared secret on every protected request.
const APIKeyHeader = "X-API-Key"

// RequestIDHeader carries the correlation id of a request.
const RequestIDHeader = "X-Request-ID"

// Multipart form fields of POST /jobs/create.
const (
	FormSite         = "site"
	FormPrice        = "price"
	FormTotal        = "total"
	FormRandomSample = "random_sample"
	FormCSVFile      = "csv_file"
)

// RegisterAgentRequest is the request body for POST /agents/register.
type RegisterAgentRequest struct {
	AgentID string   `json:"agent_id"`
	Name    string   `json:"name"`
	Sites   []string `json:"sites"`
}

// HeartbeatRequest is the request body for POST /agents/heartbeat.
type HeartbeatRequest struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status,omitempty"`
}

// HeartbeatResponse tells the agent whether dispatch is paused.
type HeartbeatResponse struct {
	OK     bool `json:"ok"`
	Paused bool `json:"paused"`
}

// AgentResponse represents an agent in API responses.
type AgentResponse struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Sites    []string  `json:"sites"`
	Status   string    `json:"status"`
	Online   bool      `json:"online"`
	LastSeen time.Time `json:"last_seen"`
}

// ListAgentsResponse is the response body for GET /agents/online.
type ListAgentsResponse struct {
	Agents []AgentResponse `json:"agents"`
	Paused bool            `json:"paused"`
}

// CreateJobResponse is the response body after creating a job.
type CreateJobResponse struct {
	JobID      string `json:"job_id"`
	TotalTasks int    `json:"total_tasks"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID        string    `json:"id"`
	Site      string    `json:"site"`
	Price     int       `json:"price"`
	Requested int       `json:"requested"`
	Total     int       `json:"total"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// JobStats counts a job's tasks by status.
type JobStats struct {
	Total   int `json:"total"`
	Pending int `json:"pending"`
	Running int `json:"running"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// JobStatusResponse is the response body for GET /jobs/{id}/status.
type JobStatusResponse struct {
	Job        JobResponse `json:"job"`
	Stats      JobStats    `json:"stats"`
	QueueDepth int64       `json:"queue_depth"`
}

// ClaimRequest is the request body for POST /tasks/claim-auto.
type ClaimRequest struct {
	AgentID string   `json:"agent_id"`
	Sites   []string `json:"sites"`
}

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID          string     `json:"task_id"`
	JobID       string     `json:"job_id"`
	FirstName   string     `json:"first_name"`
	LastName    string     `json:"last_name"`
	ProductLink string     `json:"product_link"`
	Qty         int        `json:"qty"`
	Site        string     `json:"site"`
	Status      string     `json:"status"`
	AssignedTo  string     `json:"assigned_to"`
	ResultLink  string     `json:"result_link"`
	Error       string     `json:"error"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	ReportedAt  *time.Time `json:"reported_at,omitempty"`
}

// ClaimResponse carries the claimed task, or null when none is available.
type ClaimResponse struct {
	Task *TaskResponse `json:"task"`
}

// ReportRequest is the request body for POST /tasks/report.
type ReportRequest struct {
	TaskID     string `json:"task_id"`
	AgentID    string `json:"agent_id"`
	Status     string `json:"status"`
	ResultLink string `json:"result_link,omitempty"`
	Error      string `json:"error,omitempty"`
}

// OKResponse acknowledges a write.
type OKResponse struct {
	OK bool `json:"ok"`
}

// ControlResponse is the response body for POST /control/{action}.
type ControlResponse struct {
	Paused bool `json:"paused"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
