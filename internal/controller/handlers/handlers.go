// Package handlers contains HTTP handlers for the controller API.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"taskplane/internal/dispatch"
	"taskplane/internal/logger"
	"taskplane/internal/store"
	"taskplane/pkg/api"
)

// Dispatcher is the engine surface the handlers need.
type Dispatcher interface {
	RegisterAgent(ctx context.Context, agentID, name string, sites []string) error
	Heartbeat(ctx context.Context, agentID, status string) (bool, error)
	ListOnlineAgents(ctx context.Context, onlyAlive bool) ([]dispatch.AgentSummary, error)
	CreateJob(ctx context.Context, req dispatch.CreateJobRequest) (*dispatch.CreateJobResult, error)
	JobStatus(ctx context.Context, jobID string) (*dispatch.JobReport, error)
	ClaimNext(ctx context.Context, agentID string, caps []string) (*store.Task, error)
	ReportStatus(ctx context.Context, req dispatch.ReportRequest) (*store.Task, error)
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Paused(ctx context.Context) (bool, error)
	Ping(ctx context.Context) error
}

var _ Dispatcher = (*dispatch.Engine)(nil)

// Handlers holds all HTTP handlers and their dependencies.
type Handlers struct {
	engine Dispatcher
	logger *slog.Logger
}

// New creates a new Handlers instance.
func New(engine Dispatcher, logger *slog.Logger) *Handlers {
	return &Handlers{engine: engine, logger: logger}
}

// A helper function to write standard JSON responses.
func (h *Handlers) respondJson(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

// A helper function to return consistent error messages.
func (h *Handlers) httpError(w http.ResponseWriter, message string, code int) {
	h.respondJson(w, code, api.ErrorResponse{
		Error: message,
		Code:  strconv.Itoa(code),
	})
}

// engineError maps engine errors onto status codes. Unexpected errors are
// logged and hidden behind a generic message.
func (h *Handlers) engineError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, dispatch.ErrNotFound):
		h.httpError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, dispatch.ErrInvalidInput):
		h.httpError(w, err.Error(), http.StatusBadRequest)
	default:
		logger.FromContext(r.Context(), h.logger).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		h.httpError(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}
