package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"taskplane/internal/catalog"
	"taskplane/internal/dispatch"
	"taskplane/internal/kv"
	"taskplane/internal/store"
)

// Mock Dispatcher
type mockDispatcher struct {
	// Hooks
	registerErr  error
	heartbeatErr error
	paused       bool
	pausedErr    error
	agents       []dispatch.AgentSummary
	listErr      error
	createResp   *dispatch.CreateJobResult
	createErr    error
	statusResp   *dispatch.JobReport
	statusErr    error
	claimResp    *store.Task
	claimErr     error
	reportErr    error
	controlErr   error
	pingErr      error

	// Spies (to verify arguments passed by handlers)
	capturedAgentID   string
	capturedSites     []string
	capturedCreate    dispatch.CreateJobRequest
	capturedReport    dispatch.ReportRequest
	capturedOnlyAlive bool
}

func (m *mockDispatcher) RegisterAgent(ctx context.Context, agentID, name string, sites []string) error {
	m.capturedAgentID = agentID
	m.capturedSites = sites
	return m.registerErr
}

func (m *mockDispatcher) Heartbeat(ctx context.Context, agentID, status string) (bool, error) {
	m.capturedAgentID = agentID
	return m.paused, m.heartbeatErr
}

func (m *mockDispatcher) ListOnlineAgents(ctx context.Context, onlyAlive bool) ([]dispatch.AgentSummary, error) {
	m.capturedOnlyAlive = onlyAlive
	return m.agents, m.listErr
}

func (m *mockDispatcher) CreateJob(ctx context.Context, req dispatch.CreateJobRequest) (*dispatch.CreateJobResult, error) {
	m.capturedCreate = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.createResp != nil {
		return m.createResp, nil
	}
	return &dispatch.CreateJobResult{JobID: "job-1", TaskCount: len(req.Rows)}, nil
}

func (m *mockDispatcher) JobStatus(ctx context.Context, jobID string) (*dispatch.JobReport, error) {
	return m.statusResp, m.statusErr
}

func (m *mockDispatcher) ClaimNext(ctx context.Context, agentID string, caps []string) (*store.Task, error) {
	m.capturedAgentID = agentID
	m.capturedSites = caps
	return m.claimResp, m.claimErr
}

func (m *mockDispatcher) ReportStatus(ctx context.Context, req dispatch.ReportRequest) (*store.Task, error) {
	m.capturedReport = req
	if m.reportErr != nil {
		return nil, m.reportErr
	}
	return &store.Task{ID: req.TaskID, Status: dispatch.NormalizeStatus(req.Status)}, nil
}

func (m *mockDispatcher) Pause(ctx context.Context) error {
	if m.controlErr == nil {
		m.paused = true
	}
	return m.controlErr
}

func (m *mockDispatcher) Resume(ctx context.Context) error {
	if m.controlErr == nil {
		m.paused = false
	}
	return m.controlErr
}

func (m *mockDispatcher) Paused(ctx context.Context) (bool, error) {
	return m.paused, m.pausedErr
}

func (m *mockDispatcher) Ping(ctx context.Context) error {
	return m.pingErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEngineHandlers wires the handlers to a real engine on the memory store.
func newEngineHandlers(t *testing.T) (*Handlers, *dispatch.Engine) {
	t.Helper()
	engine := dispatch.New(kv.NewMemory(), catalog.Default(), dispatch.Config{
		LivenessWindow: 30 * time.Second,
	})
	return New(engine, testLogger()), engine
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rr.Body.String())
	}
}
